package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/aggregator"
	"github.com/Catker/ashare-llm-analyst/internal/analysis/report"
	"github.com/Catker/ashare-llm-analyst/internal/config"
)

func sampleResults() []*aggregator.Result {
	return []*aggregator.Result{
		{Snapshot: &report.Snapshot{
			Code: "sh600000", Name: "Пудун", Status: report.StatusOK,
			Basic:   []report.Entry{{Label: "Последнее закрытие", Value: "10.25"}},
			Signals: []string{"MACD: бычье пересечение"},
		}},
		{Snapshot: &report.Snapshot{
			Code: "bad", Name: "bad", Status: report.StatusFailed,
			StatusMessage: report.FailureFetch.Status,
			Signals:       []string{report.FailureFetch.Signal},
		}},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelNavigationAndView(t *testing.T) {
	ui := NewTermUI(context.Background(), config.UIConfig{RefreshRate: 100}, nil)
	m := bubbleModel{ui: ui}

	assert.Contains(t, m.View(), "Ожидание данных")

	_, _ = m.Update(resultsMsg(sampleResults()))
	view := m.View()
	assert.Contains(t, view, "sh600000")
	assert.Contains(t, view, "MACD: бычье пересечение")
	assert.Contains(t, view, "10.25")

	_, _ = m.Update(key("down"))
	assert.Equal(t, 1, ui.selected)
	assert.Contains(t, m.View(), report.FailureFetch.Signal)

	_, _ = m.Update(key("down"))
	assert.Equal(t, 1, ui.selected)
	_, _ = m.Update(key("up"))
	_, _ = m.Update(key("up"))
	assert.Equal(t, 0, ui.selected)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModelRerun(t *testing.T) {
	calls := 0
	run := func(context.Context) []*aggregator.Result {
		calls++
		return sampleResults()
	}
	ui := NewTermUI(context.Background(), config.UIConfig{RefreshRate: 100}, run)
	m := bubbleModel{ui: ui}

	_, cmd := m.Update(key("r"))
	require.NotNil(t, cmd)

	// Повторный запуск игнорируется, пока идет анализ
	_, again := m.Update(key("r"))
	assert.Nil(t, again)

	_, _ = m.Update(cmd())
	assert.Equal(t, 1, calls)
	assert.Len(t, ui.results, 2)
	assert.False(t, ui.running)
}

func TestSetResultsClampsSelection(t *testing.T) {
	ui := NewTermUI(context.Background(), config.UIConfig{}, nil)
	ui.SetResults(sampleResults())
	ui.selected = 1
	ui.SetResults(sampleResults()[:1])
	assert.Equal(t, 0, ui.selected)
}

func TestFormatLogLine(t *testing.T) {
	line := `{"level":"WARN","ts":"06.05.2024 - 15:30:00.000000000+08:00","caller":"x.go:1","msg":"Данные пусты","symbol":"sh600000","count":0}`
	assert.Equal(t, "[15:30:00] [WARN] Данные пусты (count: 0) (symbol: sh600000)", formatLogLine(line))
	assert.Equal(t, "plain text", formatLogLine("plain text"))
}

func TestLoadLogsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json.log")
	var lines []string
	for i := 0; i < maxLogs+5; i++ {
		lines = append(lines, `{"level":"INFO","msg":"строка"}`)
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))

	ui := NewTermUI(context.Background(), config.UIConfig{LogFile: path}, nil)
	require.NoError(t, ui.loadLogsFromFile())
	assert.Len(t, ui.logs, maxLogs)
	assert.Equal(t, "[] [INFO] строка", ui.logs[0])

	missing := NewTermUI(context.Background(), config.UIConfig{LogFile: filepath.Join(t.TempDir(), "none")}, nil)
	assert.NoError(t, missing.loadLogsFromFile())
}
