package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

// Store хранилище байтовых значений с временем жизни
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Source источник дневных свечей
type Source interface {
	GetDailyCandles(ctx context.Context, code string, count int) (models.Series, error)
}

// RedisStore реализует Store поверх Redis
type RedisStore struct {
	cli *redis.Client
}

// NewRedisStore создает клиент Redis и проверяет соединение
func NewRedisStore(ctx context.Context, cfg config.CacheConfig) (*RedisStore, error) {
	cli := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("ошибка соединения с Redis %s: %w", cfg.Addr, err)
	}
	return &RedisStore{cli: cli}, nil
}

// Get возвращает значение, ok=false при отсутствии ключа
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.cli.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Set сохраняет значение
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.cli.Set(ctx, key, value, ttl).Err()
}

// Close закрывает соединение
func (r *RedisStore) Close() error {
	return r.cli.Close()
}

// SeriesCache кеширует ответы источника свечей.
// Сбой кеша не прерывает анализ, запрос уходит в источник.
type SeriesCache struct {
	source Source
	store  Store
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewSeriesCache оборачивает источник кешем
func NewSeriesCache(source Source, store Store, cfg config.CacheConfig) *SeriesCache {
	return &SeriesCache{
		source: source,
		store:  store,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

// GetDailyCandles отдает ряд из кеша или запрашивает источник
func (c *SeriesCache) GetDailyCandles(ctx context.Context, code string, count int) (models.Series, error) {
	key := c.key(code, count)

	raw, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn("Предупреждение: кеш недоступен", zap.String("key", key), zap.Error(err))
	case ok:
		var series models.Series
		if err := json.Unmarshal(raw, &series); err == nil {
			logger.Debug("Ряд получен из кеша", zap.String("key", key))
			return series, nil
		}
		logger.Warn("Поврежденная запись кеша", zap.String("key", key))
	}

	series, err := c.source.GetDailyCandles(ctx, code, count)
	if err != nil {
		return models.Series{}, err
	}
	// Пустой ряд не кешируем, источник может вскоре его отдать
	if series.Empty() {
		return series, nil
	}

	payload, err := json.Marshal(series)
	if err != nil {
		return series, nil
	}
	if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
		logger.Warn("Предупреждение: не удалось записать кеш", zap.String("key", key), zap.Error(err))
	}
	return series, nil
}

// key включает дату, чтобы ряд обновлялся хотя бы раз в сутки
func (c *SeriesCache) key(code string, count int) string {
	return fmt.Sprintf("%s:series:%s:%d:%s", c.prefix, code, count, c.now().UTC().Format("20060102"))
}
