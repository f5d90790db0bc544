package render

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/aggregator"
	"github.com/Catker/ashare-llm-analyst/internal/analysis/report"
	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
)

const generatedLayout = "2006-01-02 15:04:05 MST"

// codeHints показываются в блоке ошибки
var codeHints = []string{
	"A-акции: префикс биржи и шесть цифр, например sh600000 или sz000001",
	"Binance: торговая пара без разделителя, например BTCUSDT",
	"CSV: имя файла без расширения в каталоге source.csv_dir",
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"valueClass":   valueClass,
	"percentClass": percentClass,
}).Parse(`<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f3f4f6;color:#111827}
header{background:#1f2937;color:#fff;padding:16px 24px}
main{max-width:1100px;margin:0 auto;padding:16px}
.card{background:#fff;border-radius:8px;padding:16px 20px;margin-bottom:20px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(240px,1fr));gap:12px}
table{border-collapse:collapse;width:100%}
td{padding:2px 6px;border-bottom:1px solid #f3f4f6}
td.v{text-align:right;font-variant-numeric:tabular-nums}
td.up{color:#dc2626}
td.down{color:#16a34a}
.error{border-left:4px solid #dc2626}
.error h3{color:#dc2626}
.signals li{margin:2px 0}
img{max-width:100%}
</style>
</head>
<body>
<header><h1>{{.Title}}</h1><div>Сформирован: {{.Generated}}</div></header>
<main>
{{range .Items}}{{with .Snapshot}}
<section class="card{{if .Failed}} error{{end}}" id="{{.Code}}">
<h2>{{.Name}} ({{.Code}})</h2>
{{if .Failed}}
<h3>{{.StatusMessage}}</h3>
<table>{{range .Basic}}<tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>{{end}}</table>
<p>Форматы кодов:</p>
<ul>{{range $.Hints}}<li>{{.}}</li>{{end}}</ul>
{{else}}
<div>Данные на {{$.Date .AsOf}}</div>
<table>{{range .Basic}}<tr><td>{{.Label}}</td><td class="v {{percentClass .Value}}">{{.Value}}</td></tr>{{end}}</table>
{{end}}
{{end}}
{{if .Chart}}<p><img src="{{.Chart}}" alt="График {{.Snapshot.Code}}"></p>{{end}}
{{with .Snapshot}}
{{if .Families}}
<div class="grid">
{{range .Families}}<div><h3>{{.Name}}</h3><table>{{range .Entries}}<tr><td>{{.Label}}</td><td class="v {{valueClass .Value}}">{{.Value}}</td></tr>{{end}}</table></div>{{end}}
</div>
{{end}}
<h3>Технические сигналы</h3>
<ul class="signals">{{range .Signals}}<li>{{.}}</li>{{end}}</ul>
{{range .Narrative}}<h3>{{.Title}}</h3><p>{{.Content}}</p>{{end}}
</section>
{{end}}
{{else}}
<p>Нет инструментов для отчета.</p>
{{end}}
</main>
</body>
</html>
`))

// valueClass возвращает up для положительного числа и down для отрицательного;
// нечисловые значения и ноль без класса
func valueClass(value string) string {
	v := strings.ReplaceAll(strings.TrimSuffix(strings.TrimSpace(value), "%"), ",", "")
	d, err := decimal.NewFromString(v)
	if err != nil {
		return ""
	}
	switch d.Sign() {
	case 1:
		return "up"
	case -1:
		return "down"
	}
	return ""
}

// percentClass окрашивает только процентные значения, цены и объем остаются нейтральными
func percentClass(value string) string {
	if !strings.HasSuffix(value, "%") {
		return ""
	}
	return valueClass(value)
}

type itemView struct {
	Snapshot *report.Snapshot
	Chart    template.URL
}

type pageView struct {
	Title     string
	Generated string
	Hints     []string
	Items     []itemView
	loc       *time.Location
}

// Date форматирует дату снимка
func (p pageView) Date(t time.Time) string {
	if t.IsZero() {
		return report.NotAvailable
	}
	return t.In(p.loc).Format("2006-01-02")
}

// HTMLReport формирует HTML-отчет по результатам пакетного анализа
type HTMLReport struct {
	config config.ReportConfig
	loc    *time.Location
}

// NewHTMLReport создает формирователь отчета
func NewHTMLReport(cfg config.ReportConfig) (*HTMLReport, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("неизвестный часовой пояс %q: %w", cfg.Timezone, err)
	}
	return &HTMLReport{config: cfg, loc: loc}, nil
}

// Render пишет отчет в w
func (h *HTMLReport) Render(w io.Writer, results []*aggregator.Result, generated time.Time) error {
	page := pageView{
		Title:     h.config.Title,
		Generated: generated.In(h.loc).Format(generatedLayout),
		Hints:     codeHints,
		Items:     make([]itemView, 0, len(results)),
		loc:       h.loc,
	}

	for _, r := range results {
		if r == nil || r.Snapshot == nil {
			continue
		}
		item := itemView{Snapshot: r.Snapshot}
		if len(r.Chart) > 0 && !h.config.DisableCharts {
			item.Chart = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(r.Chart))
		}
		page.Items = append(page.Items, item)
	}

	if err := reportTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("ошибка формирования отчета: %w", err)
	}
	return nil
}

// Write сохраняет отчет в файл report.output
func (h *HTMLReport) Write(results []*aggregator.Result, generated time.Time) error {
	if err := os.MkdirAll(filepath.Dir(h.config.Output), 0o755); err != nil {
		return fmt.Errorf("ошибка создания каталога отчета: %w", err)
	}

	f, err := os.Create(h.config.Output)
	if err != nil {
		return fmt.Errorf("ошибка создания файла отчета: %w", err)
	}

	if err := h.Render(f, results, generated); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("ошибка записи отчета: %w", err)
	}

	logger.Info("Отчет сохранен", zap.String("path", h.config.Output), zap.Int("instruments", len(results)))
	return nil
}
