package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

func TestParseInstruments(t *testing.T) {
	got := parseInstruments([]string{"sh600000:Пудун", " sz000001 ", "", ":без кода"})
	assert.Equal(t, []models.Instrument{
		{Code: "sh600000", Name: "Пудун"},
		{Code: "sz000001"},
	}, got)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "analyst version dev\n", out.String())
}

func TestRunCommandWithCSV(t *testing.T) {
	dir := t.TempDir()
	csv := "date,open,high,low,close,volume\n"
	for i, c := range []string{"10", "10.5", "10.2", "10.8", "11", "10.9", "11.4", "11.1"} {
		csv += "2024-01-0" + string(rune('1'+i)) + "," + c + "," + c + "," + c + "," + c + ",1000\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sh600000.csv"), []byte(csv), 0o644))

	output := filepath.Join(dir, "out", "index.html")
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
source:
  type: csv
  csv_dir: `+dir+`
instruments:
  - code: sh600000
    name: Пудун
  - code: missing
report:
  output: `+output+`
`), 0o644))

	t.Setenv("LLM_API_KEY", "")
	t.Chdir(dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--config", configPath})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "инструментов 2, с ошибкой 1")

	html, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Пудун (sh600000)")
	assert.Contains(t, string(html), "missing")
}
