package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/aggregator"
	"github.com/Catker/ashare-llm-analyst/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Показать снимки анализа в терминальном интерфейсе",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return fmt.Errorf("ошибка инициализации: %w", err)
		}
		defer p.Close()
		p.serveMetrics(ctx, cfg.Metrics)

		uiCfg := cfg.UI
		if uiCfg.LogFile == "" {
			uiCfg.LogFile = cfg.Log.JSONFile
		}

		run := func(ctx context.Context) []*aggregator.Result {
			results := p.analyzer.Run(ctx, cfg.Instruments)
			p.recorder.RunFinished(time.Now())
			return results
		}

		return ui.NewTermUI(ctx, uiCfg, run).Start()
	},
}
