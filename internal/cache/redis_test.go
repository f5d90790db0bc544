package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttl    map[string]time.Duration
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	b, ok := m.data[key]
	return b, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttl[key] = ttl
	return nil
}

type countingSource struct {
	calls  int
	series models.Series
	err    error
}

func (s *countingSource) GetDailyCandles(context.Context, string, int) (models.Series, error) {
	s.calls++
	return s.series, s.err
}

var cacheCfg = config.CacheConfig{Prefix: "test", TTL: time.Hour}

func fixedNow() time.Time {
	return time.Date(2024, 5, 6, 15, 0, 0, 0, time.UTC)
}

func testSeries() models.Series {
	return models.Series{Symbol: "sh600000", Candles: []models.Candle{
		{Time: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
	}}
}

func TestSeriesCacheMissThenHit(t *testing.T) {
	src := &countingSource{series: testSeries()}
	store := newMemStore()
	c := NewSeriesCache(src, store, cacheCfg)
	c.now = fixedNow

	first, err := c.GetDailyCandles(context.Background(), "sh600000", 120)
	require.NoError(t, err)
	second, err := c.GetDailyCandles(context.Background(), "sh600000", 120)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Hour, store.ttl["test:series:sh600000:120:20240506"])
}

func TestSeriesCacheKeyIncludesCount(t *testing.T) {
	src := &countingSource{series: testSeries()}
	c := NewSeriesCache(src, newMemStore(), cacheCfg)
	c.now = fixedNow

	_, _ = c.GetDailyCandles(context.Background(), "sh600000", 120)
	_, _ = c.GetDailyCandles(context.Background(), "sh600000", 60)
	assert.Equal(t, 2, src.calls)
}

func TestSeriesCacheStoreFailures(t *testing.T) {
	src := &countingSource{series: testSeries()}
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	c := NewSeriesCache(src, store, cacheCfg)

	s, err := c.GetDailyCandles(context.Background(), "sh600000", 120)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestSeriesCacheCorruptEntry(t *testing.T) {
	src := &countingSource{series: testSeries()}
	store := newMemStore()
	c := NewSeriesCache(src, store, cacheCfg)
	c.now = fixedNow
	store.data["test:series:sh600000:120:20240506"] = []byte("{broken")

	s, err := c.GetDailyCandles(context.Background(), "sh600000", 120)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, s.Len())
}

func TestSeriesCacheSkipsEmptyAndErrors(t *testing.T) {
	store := newMemStore()

	empty := &countingSource{series: models.Series{Symbol: "x"}}
	c := NewSeriesCache(empty, store, cacheCfg)
	_, err := c.GetDailyCandles(context.Background(), "x", 10)
	require.NoError(t, err)
	assert.Empty(t, store.data)

	failing := &countingSource{err: errors.New("timeout")}
	c = NewSeriesCache(failing, store, cacheCfg)
	_, err = c.GetDailyCandles(context.Background(), "x", 10)
	assert.EqualError(t, err, "timeout")
	assert.Empty(t, store.data)
}
