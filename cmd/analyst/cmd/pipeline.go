package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/aggregator"
	"github.com/Catker/ashare-llm-analyst/internal/cache"
	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/internal/exchange"
	"github.com/Catker/ashare-llm-analyst/internal/metrics"
	"github.com/Catker/ashare-llm-analyst/internal/narrative"
	"github.com/Catker/ashare-llm-analyst/internal/render"
	"github.com/Catker/ashare-llm-analyst/internal/storage"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
)

// pipeline собранная цепочка анализа и ее внешние ресурсы
type pipeline struct {
	analyzer *aggregator.Analyzer
	recorder *metrics.Recorder
	registry *prometheus.Registry
	closers  []func()
}

// Close освобождает ресурсы в обратном порядке
func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// buildPipeline подключает источник, кеш, хранилище, метрики, LLM и графики
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	p := &pipeline{}

	var store *storage.InfluxDBStorage
	if cfg.Storage.Enabled || cfg.Source.Type == config.SourceInfluxDB {
		var err error
		store, err = storage.NewInfluxDBStorage(cfg.Storage)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, store.Close)
	}

	// Выбираем источник свечей
	var source aggregator.DataSource
	switch cfg.Source.Type {
	case config.SourceBinance:
		source = exchange.NewBinanceSource(cfg.Binance, cfg.Source.Interval)
	case config.SourceCSV:
		source = exchange.NewCSVSource(cfg.Source.CSVDir)
	case config.SourceInfluxDB:
		source = store
	default:
		p.Close()
		return nil, fmt.Errorf("неизвестный источник данных %q", cfg.Source.Type)
	}

	// Архивируем свечи внешних источников
	if store != nil && cfg.Storage.Enabled && cfg.Source.Type != config.SourceInfluxDB {
		source = storage.NewArchivingSource(source, store)
	}

	if cfg.Cache.Enabled {
		redisStore, err := cache.NewRedisStore(ctx, cfg.Cache)
		if err != nil {
			// Без кеша анализ продолжается напрямую из источника
			logger.Warn("Предупреждение: кеш Redis отключен", zap.Error(err))
		} else {
			p.closers = append(p.closers, func() { _ = redisStore.Close() })
			source = cache.NewSeriesCache(source, redisStore, cfg.Cache)
		}
	}

	opts := []aggregator.Option{aggregator.WithCount(cfg.Source.Count)}

	if !cfg.Report.DisableCharts {
		opts = append(opts, aggregator.WithChartRenderer(render.NewChartRenderer()))
	}
	if cfg.LLM.Enabled() {
		opts = append(opts, aggregator.WithNarrative(narrative.NewClient(cfg.LLM)))
	} else {
		logger.Info("LLM не настроен, аналитический текст пропущен")
	}
	if store != nil && cfg.Storage.Enabled {
		opts = append(opts, aggregator.WithStorage(store))
	}

	p.registry = prometheus.NewRegistry()
	p.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	p.recorder = metrics.New(p.registry)
	opts = append(opts, aggregator.WithMetrics(p.recorder))

	p.analyzer = aggregator.NewAnalyzer(cfg.Analysis, source, opts...)
	return p, nil
}

// serveMetrics запускает сервер метрик, если он включен
func (p *pipeline) serveMetrics(ctx context.Context, cfg config.MetricsConfig) {
	if !cfg.Enabled {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, cfg.Addr, p.registry); err != nil {
			logger.Error("Сервер метрик остановлен", zap.Error(err))
		}
	}()
}
