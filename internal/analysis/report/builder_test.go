package report

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/technical"
	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

func fixture(t *testing.T, rows int) (config.AnalysisConfig, models.Series, *technical.Table) {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)

	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, rows)
	for i := range candles {
		p := 20 + math.Sin(float64(i)/5)
		candles[i] = models.Candle{
			Time: start.AddDate(0, 0, i), Open: p, High: p + 0.4, Low: p - 0.4, Close: p + 0.1, Volume: 1234567,
		}
	}
	candles[rows-2].Close = 20
	candles[rows-1].Close = 21
	candles[rows-1].High = 21.456
	candles[rows-1].Low = 19.994

	series := models.Series{Symbol: "sh600519", Candles: candles}
	table, err := technical.NewAssembler(cfg.Analysis).Assemble(context.Background(), series)
	require.NoError(t, err)
	return cfg.Analysis, series, table
}

func TestBuildSnapshot(t *testing.T) {
	cfg, series, table := fixture(t, 80)
	inst := models.Instrument{Code: "sh600519", Name: "Гуйчжоу Маотай"}
	signals := []string{"Золотой крест MACD, возможен рост"}

	snap, err := NewBuilder(cfg.Indicators).Build(inst, series, table, signals)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, snap.Status)
	assert.False(t, snap.Failed())
	assert.Equal(t, series.Candles[79].Time, snap.AsOf)
	assert.Equal(t, signals, snap.Signals)

	basic := snap.Map()[BasicFamily]
	assert.Equal(t, "sh600519", basic["Код"])
	assert.Equal(t, "Гуйчжоу Маотай", basic["Название"])
	assert.Equal(t, "21.00", basic["Последнее закрытие"])
	assert.Equal(t, "5.00%", basic["Изменение"])
	assert.Equal(t, "21.46", basic["Максимум"])
	assert.Equal(t, "19.99", basic["Минимум"])
	assert.Equal(t, "1,234,567", basic["Объем"])

	names := make([]string, 0, len(snap.Families))
	for _, f := range snap.Families {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"Скользящие средние", "Трендовые индикаторы", "Осцилляторы",
		"Индикаторы объема", "Индикаторы импульса", "Полосы Боллинджера",
	}, names)

	ma := snap.Map()["Скользящие средние"]
	assert.Len(t, ma, 4)
	ma5, _ := table.Last(technical.ColMA5)
	assert.Equal(t, FormatNumber(ma5), ma["MA5"])

	rsi, _ := table.Last(technical.ColRSI)
	assert.Equal(t, FormatNumber(rsi), snap.Map()["Осцилляторы"]["RSI (индекс относительной силы)"])
}

func TestBuildIsIdempotent(t *testing.T) {
	cfg, series, table := fixture(t, 70)
	b := NewBuilder(cfg.Indicators)
	inst := models.Instrument{Code: "sz000001"}

	first, err := b.Build(inst, series, table, []string{"a"})
	require.NoError(t, err)
	second, err := b.Build(inst, series, table, []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildUndefinedValues(t *testing.T) {
	cfg, series, table := fixture(t, 10)

	snap, err := NewBuilder(cfg.Indicators).Build(models.Instrument{Code: "x"}, series, table, nil)
	require.NoError(t, err)
	assert.Equal(t, NotAvailable, snap.Map()["Скользящие средние"]["MA60"])
	assert.Equal(t, "x", snap.Name)
}

func TestBuildErrors(t *testing.T) {
	cfg, series, table := fixture(t, 10)
	b := NewBuilder(cfg.Indicators)

	_, err := b.Build(models.Instrument{Code: "x"}, series, nil, nil)
	assert.Error(t, err)

	short := models.Series{Candles: series.Candles[:1]}
	_, err = b.Build(models.Instrument{Code: "x"}, short, table, nil)
	assert.ErrorIs(t, err, technical.ErrInsufficientData)
}

func TestFailedSnapshot(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	b := NewBuilder(cfg.Analysis.Indicators)

	snap := b.Failed(models.Instrument{Code: "sh000000", Name: "Тест"}, FailureFetch, errors.New("timeout"))
	assert.True(t, snap.Failed())
	assert.Equal(t, FailureFetch.Status, snap.StatusMessage)
	assert.Empty(t, snap.Families)
	assert.Equal(t, []string{FailureFetch.Signal}, snap.Signals)

	basic := snap.Map()[BasicFamily]
	assert.Equal(t, FailureFetch.Status, basic["Статус данных"])
	assert.Equal(t, FailureFetch.Hint, basic["Подсказка"])
	assert.Equal(t, "timeout", basic["Подробности"])

	calc := b.Failed(models.Instrument{Code: "a"}, FailureCalc, nil)
	_, hasHint := calc.Map()[BasicFamily]["Подсказка"]
	assert.False(t, hasHint)
}

func TestMergeNarrative(t *testing.T) {
	snap := &Snapshot{Status: StatusOK}

	MergeNarrative(snap, nil)
	assert.Empty(t, snap.Narrative)

	MergeNarrative(snap, []Section{
		{Title: "Тренд", Content: "Восходящий"},
		{Title: StatusSection, Content: "Анализ не выполнен"},
		{Title: "Пусто", Content: "  "},
		{Title: "Риски", Content: "Высокая волатильность"},
	})
	assert.Equal(t, []Section{
		{Title: "Тренд", Content: "Восходящий"},
		{Title: "Риски", Content: "Высокая волатильность"},
	}, snap.Narrative)

	assert.NotPanics(t, func() { MergeNarrative(nil, []Section{{Title: "a", Content: "b"}}) })
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"округление", FormatNumber(1.005), "1.01"},
		{"отрицательное", FormatNumber(-3.14159), "-3.14"},
		{"половина по десятичной записи", FormatNumber(2.675), "2.68"},
		{"отрицательная половина", FormatNumber(-2.675), "-2.68"},
		{"точная половина", FormatNumber(0.125), "0.13"},
		{"целое", FormatNumber(42), "42.00"},
		{"NaN", FormatNumber(math.NaN()), NotAvailable},
		{"бесконечность", FormatNumber(math.Inf(-1)), NotAvailable},
		{"процент", FormatPercent(-1.234), "-1.23%"},
		{"процент NaN", FormatPercent(math.NaN()), NotAvailable},
		{"объем", FormatVolume(1234567.89), "1,234,567"},
		{"малый объем", FormatVolume(999), "999"},
		{"ровно тысяча", FormatVolume(1000), "1,000"},
		{"нулевой объем", FormatVolume(0), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
