// Package cmd команды CLI анализатора
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

var (
	// Общие флаги
	cfgFile     string
	verbose     bool
	instruments []string

	// cfg загружается перед выполнением любой команды, кроме version
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "analyst",
	Short: "Технический анализ дневных свечей с HTML-отчетом",
	Long: `analyst рассчитывает технические индикаторы по дневным свечам,
формирует сигналы и сохраняет HTML-отчет по списку инструментов.

Источники данных: Binance, каталог CSV-файлов, архив InfluxDB.
При заданном LLM_API_KEY к отчету добавляется аналитический текст.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute выполняет корневую команду
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "путь к файлу конфигурации")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "подробный вывод в консоль")
	rootCmd.PersistentFlags().StringSliceVarP(&instruments, "instrument", "i", nil,
		"инструменты вместо списка из конфигурации, формат code или code:name")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig загружает .env, конфигурацию и настраивает логгер
func initConfig(cmd *cobra.Command) error {
	// .env может отсутствовать, переменные окружения задаются и без него
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка чтения .env: %w", err)
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if len(instruments) > 0 {
		loaded.Instruments = parseInstruments(instruments)
	}

	logCfg := loaded.Log
	if verbose {
		logCfg.Console = true
		logCfg.Level = "debug"
	}
	// Терминальный интерфейс занимает экран, лог уходит только в файлы
	if cmd.Name() == watchCmd.Name() {
		logCfg.Console = false
	}
	if err := logger.Init(logCfg); err != nil {
		return err
	}

	logger.Info("Конфигурация загружена",
		zap.String("path", cfgFile),
		zap.String("source", loaded.Source.Type),
		zap.Int("instruments", len(loaded.Instruments)))

	cfg = loaded
	return nil
}

// parseInstruments разбирает значения флага --instrument
func parseInstruments(values []string) []models.Instrument {
	out := make([]models.Instrument, 0, len(values))
	for _, v := range values {
		code, name, _ := strings.Cut(strings.TrimSpace(v), ":")
		if code == "" {
			continue
		}
		out = append(out, models.Instrument{Code: code, Name: name})
	}
	return out
}
