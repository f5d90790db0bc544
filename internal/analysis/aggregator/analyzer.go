package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/report"
	"github.com/Catker/ashare-llm-analyst/internal/analysis/signals"
	"github.com/Catker/ashare-llm-analyst/internal/analysis/technical"
	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

// Статусы инструмента для метрик
const (
	StatusOK          = "ok"
	StatusFetchFailed = "fetch_failed"
	StatusEmpty       = "empty"
	StatusCalcFailed  = "calc_failed"
	StatusPanic       = "panic"
)

// Этапы обработки инструмента
const (
	StageFetch     = "fetch"
	StageIndicator = "indicators"
	StageNarrative = "narrative"
	StageChart     = "chart"
	StageTotal     = "total"
)

const defaultCount = 120

// DataSource источник дневных свечей
type DataSource interface {
	GetDailyCandles(ctx context.Context, code string, count int) (models.Series, error)
}

// ChartRenderer рисует график по таблице индикаторов
type ChartRenderer interface {
	Render(inst models.Instrument, table *technical.Table) ([]byte, error)
}

// NarrativeGenerator готовит аналитический текст по рассчитанным данным
type NarrativeGenerator interface {
	Generate(ctx context.Context, inst models.Instrument, series models.Series, table *technical.Table) ([]report.Section, error)
}

// SnapshotStore сохраняет снимки анализа
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, runID string, snap *report.Snapshot) error
}

// Recorder принимает метрики пакетного анализа
type Recorder interface {
	InstrumentDone(status string)
	ObserveStage(stage string, d time.Duration)
	SignalsEmitted(n int)
}

// Result итог анализа одного инструмента
type Result struct {
	RunID      string
	Instrument models.Instrument
	Snapshot   *report.Snapshot
	Chart      []byte
}

// Option настраивает Analyzer
type Option func(*Analyzer)

// WithCount задает число запрашиваемых свечей
func WithCount(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.count = n
		}
	}
}

// WithChartRenderer подключает построение графиков
func WithChartRenderer(r ChartRenderer) Option {
	return func(a *Analyzer) { a.chart = r }
}

// WithNarrative подключает генератор аналитического текста
func WithNarrative(n NarrativeGenerator) Option {
	return func(a *Analyzer) { a.narrative = n }
}

// WithStorage подключает сохранение снимков
func WithStorage(s SnapshotStore) Option {
	return func(a *Analyzer) { a.store = s }
}

// WithMetrics подключает запись метрик
func WithMetrics(r Recorder) Option {
	return func(a *Analyzer) { a.metrics = r }
}

// Analyzer проводит инструменты через цепочку
// данные -> индикаторы -> сигналы -> снимок
type Analyzer struct {
	config    config.AnalysisConfig
	count     int
	source    DataSource
	assembler *technical.Assembler
	generator *signals.Generator
	builder   *report.Builder
	chart     ChartRenderer
	narrative NarrativeGenerator
	store     SnapshotStore
	metrics   Recorder
}

// NewAnalyzer создает анализатор
func NewAnalyzer(cfg config.AnalysisConfig, source DataSource, opts ...Option) *Analyzer {
	a := &Analyzer{
		config:    cfg,
		count:     defaultCount,
		source:    source,
		assembler: technical.NewAssembler(cfg),
		generator: signals.NewGenerator(cfg.Thresholds),
		builder:   report.NewBuilder(cfg.Indicators),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run анализирует все инструменты и возвращает результаты в порядке входа.
// Ошибка одного инструмента превращается в снимок-заглушку и не прерывает пакет.
func (a *Analyzer) Run(ctx context.Context, instruments []models.Instrument) []*Result {
	runID := uuid.NewString()
	results := make([]*Result, len(instruments))

	var g errgroup.Group
	if a.config.Workers > 0 {
		g.SetLimit(a.config.Workers)
	}

	for i, inst := range instruments {
		g.Go(func() error {
			results[i] = a.analyzeInstrument(ctx, runID, inst)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Snapshot.Failed() {
			failed++
		}
	}
	logger.Info("Пакетный анализ завершен",
		zap.String("run_id", runID),
		zap.Int("instruments", len(instruments)),
		zap.Int("failed", failed))

	return results
}

// analyzeInstrument выполняет цепочку для одного инструмента
func (a *Analyzer) analyzeInstrument(ctx context.Context, runID string, inst models.Instrument) (res *Result) {
	start := time.Now()
	res = &Result{RunID: runID, Instrument: inst}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("паника: %v", r)
			logger.Error("Сбой анализа инструмента", zap.String("symbol", inst.Code), zap.Error(err))
			res.Snapshot = a.builder.Failed(inst, report.FailureAnalysis, err)
			res.Chart = nil
			a.done(StatusPanic)
		}
		a.observe(StageTotal, start)
	}()

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	// Получаем исторические свечи
	fetchStart := time.Now()
	series, err := a.source.GetDailyCandles(ctx, inst.Code, a.count)
	a.observe(StageFetch, fetchStart)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// истекшее время приравнивается к ошибке расчета
			return a.fail(res, report.FailureCalc, StatusCalcFailed, &technical.AnalysisFailedError{Indicator: StageFetch, Err: err})
		}
		return a.fail(res, report.FailureFetch, StatusFetchFailed, err)
	}
	if series.Empty() {
		return a.fail(res, report.FailureEmpty, StatusEmpty, nil)
	}
	if series.Symbol == "" {
		series.Symbol = inst.Code
	}

	// Рассчитываем индикаторы
	calcStart := time.Now()
	table, err := a.assembler.Assemble(ctx, series)
	a.observe(StageIndicator, calcStart)
	if err != nil {
		return a.fail(res, report.FailureCalc, StatusCalcFailed, err)
	}

	sigs := a.generator.Generate(table)
	snap, err := a.builder.Build(inst, series, table, sigs)
	if err != nil {
		return a.fail(res, report.FailureCalc, StatusCalcFailed, err)
	}
	res.Snapshot = snap

	if a.narrative != nil {
		narrativeStart := time.Now()
		sections, err := a.narrative.Generate(ctx, inst, series, table)
		a.observe(StageNarrative, narrativeStart)
		if err != nil {
			logger.Warn("Предупреждение: аналитический текст недоступен", zap.String("symbol", inst.Code), zap.Error(err))
		} else {
			report.MergeNarrative(snap, sections)
		}
	}

	if a.chart != nil {
		chartStart := time.Now()
		img, err := a.chart.Render(inst, table)
		a.observe(StageChart, chartStart)
		if err != nil {
			logger.Warn("Предупреждение: график не построен", zap.String("symbol", inst.Code), zap.Error(err))
		} else {
			res.Chart = img
		}
	}

	// Сохраняем снимок в хранилище
	if a.store != nil {
		if err := a.store.SaveSnapshot(ctx, runID, snap); err != nil {
			logger.Warn("Предупреждение: не удалось сохранить снимок", zap.String("symbol", inst.Code), zap.Error(err))
		}
	}

	a.done(StatusOK)
	if a.metrics != nil {
		a.metrics.SignalsEmitted(len(sigs))
	}

	logger.Info("Инструмент проанализирован",
		zap.String("symbol", inst.Code),
		zap.Int("rows", series.Len()),
		zap.Int("signals", len(sigs)),
		zap.Duration("elapsed", time.Since(start)))

	return res
}

func (a *Analyzer) fail(res *Result, f report.Failure, status string, cause error) *Result {
	logger.Warn("Анализ инструмента не выполнен",
		zap.String("symbol", res.Instrument.Code),
		zap.String("status", status),
		zap.Error(cause))
	res.Snapshot = a.builder.Failed(res.Instrument, f, cause)
	a.done(status)
	return res
}

func (a *Analyzer) done(status string) {
	if a.metrics != nil {
		a.metrics.InstrumentDone(status)
	}
}

func (a *Analyzer) observe(stage string, start time.Time) {
	if a.metrics != nil {
		a.metrics.ObserveStage(stage, time.Since(start))
	}
}
