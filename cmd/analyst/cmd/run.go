package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/internal/render"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
)

var outputPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Проанализировать инструменты и сохранить HTML-отчет",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if outputPath != "" {
			cfg.Report.Output = outputPath
		}

		htmlReport, err := render.NewHTMLReport(cfg.Report)
		if err != nil {
			return err
		}

		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return fmt.Errorf("ошибка инициализации: %w", err)
		}
		defer p.Close()
		p.serveMetrics(ctx, cfg.Metrics)

		start := time.Now()
		results := p.analyzer.Run(ctx, cfg.Instruments)
		p.recorder.RunFinished(time.Now())

		if err := htmlReport.Write(results, time.Now()); err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.Snapshot.Failed() {
				failed++
			}
		}
		logger.Info("Анализ завершен",
			zap.Int("instruments", len(results)),
			zap.Int("failed", failed),
			zap.Duration("elapsed", time.Since(start)))

		fmt.Fprintf(cmd.OutOrStdout(), "Отчет: %s (инструментов %d, с ошибкой %d)\n",
			cfg.Report.Output, len(results), failed)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "путь к HTML-отчету вместо report.output")
}
