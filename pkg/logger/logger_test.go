package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetLoggerWithoutInit(t *testing.T) {
	prev := Replace(nil)
	defer Replace(prev)

	assert.NotPanics(t, func() {
		Info("без инициализации")
	})
}

func TestReplaceCapturesMessages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Replace(zap.New(core))
	defer Replace(prev)

	Warn("мало данных", zap.String("symbol", "sh600000"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "sh600000", entry.ContextMap()["symbol"])
}

func TestInitWritesFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:    "info",
		File:     filepath.Join(dir, "app.log"),
		JSONFile: filepath.Join(dir, "app.json.log"),
	}
	prev := GetLogger()
	defer Replace(prev)

	require.NoError(t, Init(cfg))
	Info("запуск", zap.Int("instruments", 2))
	Debug("не попадет в файл")
	Sync()

	data, err := os.ReadFile(cfg.JSONFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"запуск"`))
	assert.False(t, strings.Contains(string(data), "не попадет"))
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(Config{Level: "verbose"})
	assert.Error(t, err)
}
