// internal/storage/influxdb.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/report"
	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

const (
	measurementCandles   = "candles"
	measurementSnapshots = "snapshots"
)

// SnapshotRecord сохраненный снимок анализа
type SnapshotRecord struct {
	RunID    string
	Time     time.Time
	Status   string
	Signals  int
	Snapshot *report.Snapshot
}

// Storage интерфейс для работы с хранилищем данных
type Storage interface {
	// Методы для свечей
	SaveCandles(ctx context.Context, series models.Series) error
	GetDailyCandles(ctx context.Context, code string, count int) (models.Series, error)

	// Методы для снимков анализа
	SaveSnapshot(ctx context.Context, runID string, snap *report.Snapshot) error
	GetSnapshotHistory(ctx context.Context, code string, limit int) ([]SnapshotRecord, error)

	Close()
}

var _ Storage = (*InfluxDBStorage)(nil)

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveCandles сохраняет свечи инструмента
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, series models.Series) error {
	if series.Empty() {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, candlePoints(series)...); err != nil {
		return fmt.Errorf("ошибка записи свечей %s: %w", series.Symbol, err)
	}
	return nil
}

// GetDailyCandles получает последние count дневных свечей в порядке возрастания времени
func (s *InfluxDBStorage) GetDailyCandles(ctx context.Context, code string, count int) (models.Series, error) {
	result, err := s.queryAPI.Query(ctx, candlesQuery(s.bucket, code, count))
	if err != nil {
		return models.Series{}, fmt.Errorf("ошибка запроса свечей: %w", err)
	}
	defer result.Close()

	// Обрабатываем результаты
	series := models.Series{Symbol: code}
	for result.Next() {
		record := result.Record()
		series.Candles = append(series.Candles, models.Candle{
			Time:   record.Time().UTC(),
			Open:   floatValue(record.ValueByKey("open")),
			High:   floatValue(record.ValueByKey("high")),
			Low:    floatValue(record.ValueByKey("low")),
			Close:  floatValue(record.ValueByKey("close")),
			Volume: floatValue(record.ValueByKey("volume")),
		})
	}

	// Проверяем на ошибки при обработке результатов
	if result.Err() != nil {
		return models.Series{}, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	logger.Debug("Свечи прочитаны из InfluxDB", zap.String("symbol", code), zap.Int("count", series.Len()))
	return series, nil
}

// SaveSnapshot сохраняет снимок анализа
func (s *InfluxDBStorage) SaveSnapshot(ctx context.Context, runID string, snap *report.Snapshot) error {
	point, err := snapshotPoint(runID, snap, time.Now())
	if err != nil {
		return err
	}
	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("ошибка записи снимка %s: %w", snap.Code, err)
	}
	return nil
}

// GetSnapshotHistory получает последние снимки инструмента, новые первыми
func (s *InfluxDBStorage) GetSnapshotHistory(ctx context.Context, code string, limit int) ([]SnapshotRecord, error) {
	result, err := s.queryAPI.Query(ctx, snapshotsQuery(s.bucket, code, limit))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории снимков: %w", err)
	}
	defer result.Close()

	var records []SnapshotRecord
	for result.Next() {
		record := result.Record()

		payload, _ := record.ValueByKey("payload").(string)
		var snap report.Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			logger.Warn("Поврежденный снимок в хранилище", zap.String("symbol", code), zap.Error(err))
			continue
		}

		runID, _ := record.ValueByKey("run_id").(string)
		status, _ := record.ValueByKey("status").(string)
		signals, _ := record.ValueByKey("signals").(int64)

		records = append(records, SnapshotRecord{
			RunID:    runID,
			Time:     record.Time(),
			Status:   status,
			Signals:  int(signals),
			Snapshot: &snap,
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return records, nil
}

// candlePoints переводит свечи в точки InfluxDB
func candlePoints(series models.Series) []*write.Point {
	points := make([]*write.Point, 0, series.Len())
	for _, c := range series.Candles {
		points = append(points, influxdb2.NewPoint(
			measurementCandles,
			map[string]string{
				"symbol":   series.Symbol,
				"interval": "1d",
			},
			map[string]interface{}{
				"open":   c.Open,
				"high":   c.High,
				"low":    c.Low,
				"close":  c.Close,
				"volume": c.Volume,
			},
			c.Time,
		))
	}
	return points
}

// snapshotPoint сериализует снимок в одну точку
func snapshotPoint(runID string, snap *report.Snapshot, ts time.Time) (*write.Point, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации снимка %s: %w", snap.Code, err)
	}

	return influxdb2.NewPoint(
		measurementSnapshots,
		map[string]string{
			"symbol": snap.Code,
		},
		map[string]interface{}{
			"run_id":  runID,
			"status":  snap.Status,
			"signals": len(snap.Signals),
			"payload": string(payload),
		},
		ts,
	), nil
}

func candlesQuery(bucket, code string, count int) string {
	return fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: 0)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.symbol == "%s")
			|> filter(fn: (r) => r.interval == "1d")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"])
			|> tail(n: %d)
	`, fluxString(bucket), measurementCandles, fluxString(code), count)
}

func snapshotsQuery(bucket, code string, limit int) string {
	return fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -365d)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.symbol == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, fluxString(bucket), measurementSnapshots, fluxString(code), limit)
}

// fluxString экранирует значение для строкового литерала Flux
func fluxString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func floatValue(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	default:
		return 0
	}
}
