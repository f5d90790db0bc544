package exchange

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Catker/ashare-llm-analyst/internal/config"
)

const klinesJSON = `[
 [1704153600000,"42000.10","43000.00","41500.00","42800.50","1234.5",1704239999999,"0",100,"0","0","0"],
 [1704240000000,"42800.50","44000.00","42700.00","43900.00","2345.25",1704326399999,"0",120,"0","0","0"]
]`

func TestBinanceSourceGetDailyCandles(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/klines", r.URL.Path)
		gotQuery = map[string]string{
			"symbol":   r.URL.Query().Get("symbol"),
			"interval": r.URL.Query().Get("interval"),
			"limit":    r.URL.Query().Get("limit"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(klinesJSON))
	}))
	defer srv.Close()

	src := NewBinanceSource(config.BinanceConfig{BaseURL: srv.URL}, "")
	series, err := src.GetDailyCandles(context.Background(), "btcusdt", 2)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"symbol": "BTCUSDT", "interval": "1d", "limit": "2"}, gotQuery)
	assert.Equal(t, "btcusdt", series.Symbol)
	require.Equal(t, 2, series.Len())

	first := series.Candles[0]
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), first.Time)
	assert.Equal(t, 42000.10, first.Open)
	assert.Equal(t, 43000.0, first.High)
	assert.Equal(t, 41500.0, first.Low)
	assert.Equal(t, 42800.50, first.Close)
	assert.Equal(t, 1234.5, first.Volume)
	assert.Equal(t, 2345.25, series.Candles[1].Volume)
}

func TestBinanceSourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	src := NewBinanceSource(config.BinanceConfig{BaseURL: srv.URL}, "1d")
	_, err := src.GetDailyCandles(context.Background(), "nope", 10)
	assert.Error(t, err)
}

func TestBinanceSourceTestnet(t *testing.T) {
	src := NewBinanceSource(config.BinanceConfig{Testnet: true}, "1d")
	assert.Equal(t, testnetURL, src.spot.BaseURL)
}

func writeCSV(t *testing.T, dir, code, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, code+".csv"), []byte(content), 0o644))
}

func TestCSVSource(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sh600000", `date,open,high,low,close,volume
2024-01-02,10.0,10.5,9.8,10.2,100000
2024-01-03,10.2,10.8,10.1,10.7,120000
2024-01-04,10.7,10.9,10.4,10.5,90000
`)

	src := NewCSVSource(dir)

	series, err := src.GetDailyCandles(context.Background(), "sh600000", 120)
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())
	assert.Equal(t, "sh600000", series.Symbol)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), series.Candles[1].Time)
	assert.Equal(t, 10.7, series.Candles[1].Close)
	assert.Equal(t, 120000.0, series.Candles[1].Volume)

	last2, err := src.GetDailyCandles(context.Background(), "sh600000", 2)
	require.NoError(t, err)
	require.Equal(t, 2, last2.Len())
	assert.Equal(t, 10.5, last2.Candles[1].Close)
}

func TestCSVSourceColumnOrderAndEmpty(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "reordered", "Volume,Close,Low,High,Open,Date\n500,2,1,3,1.5,2024-02-01\n")
	writeCSV(t, dir, "header_only", "date,open,high,low,close,volume\n")
	writeCSV(t, dir, "blank", "")

	src := NewCSVSource(dir)

	s, err := src.GetDailyCandles(context.Background(), "reordered", 10)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, 1.5, s.Candles[0].Open)
	assert.Equal(t, 500.0, s.Candles[0].Volume)

	s, err = src.GetDailyCandles(context.Background(), "header_only", 10)
	require.NoError(t, err)
	assert.True(t, s.Empty())

	s, err = src.GetDailyCandles(context.Background(), "blank", 10)
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestCSVSourceErrors(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "no_volume", "date,open,high,low,close\n2024-01-02,1,1,1,1\n")
	writeCSV(t, dir, "bad_number", "date,open,high,low,close,volume\n2024-01-02,1,x,1,1,1\n")
	writeCSV(t, dir, "bad_date", "date,open,high,low,close,volume\n02.01.2024,1,1,1,1,1\n")

	src := NewCSVSource(dir)

	_, err := src.GetDailyCandles(context.Background(), "missing", 10)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	for _, code := range []string{"no_volume", "bad_number", "bad_date"} {
		_, err := src.GetDailyCandles(context.Background(), code, 10)
		assert.Error(t, err, code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.GetDailyCandles(ctx, "no_volume", 10)
	assert.ErrorIs(t, err, context.Canceled)
}
