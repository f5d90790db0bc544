package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/pkg/logger"
)

// Recorder записывает метрики пакетного анализа в Prometheus
type Recorder struct {
	instruments *prometheus.CounterVec
	stages      *prometheus.HistogramVec
	signals     prometheus.Counter
	lastRun     prometheus.Gauge
}

// New регистрирует метрики в reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		instruments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ashare_instruments_total",
				Help: "Проанализированные инструменты по статусу",
			},
			[]string{"status"},
		),
		stages: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ashare_stage_duration_seconds",
				Help:    "Длительность этапов обработки инструмента",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		signals: factory.NewCounter(prometheus.CounterOpts{
			Name: "ashare_signals_total",
			Help: "Выданные технические сигналы",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ashare_last_run_timestamp_seconds",
			Help: "Время завершения последнего пакетного анализа",
		}),
	}
}

// InstrumentDone учитывает завершение анализа инструмента
func (r *Recorder) InstrumentDone(status string) {
	r.instruments.WithLabelValues(status).Inc()
}

// ObserveStage записывает длительность этапа
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// SignalsEmitted учитывает выданные сигналы
func (r *Recorder) SignalsEmitted(n int) {
	r.signals.Add(float64(n))
}

// RunFinished отмечает время завершения пакета
func (r *Recorder) RunFinished(t time.Time) {
	r.lastRun.Set(float64(t.Unix()))
}

// Handler отдает метрики из g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve запускает HTTP-сервер метрик до отмены ctx
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Сервер метрик запущен", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка сервера метрик: %w", err)
	}
	return nil
}
