package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/technical"
	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

// Статусы снимка
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// NotAvailable выводится вместо неопределенного значения
const NotAvailable = "н/д"

// BasicFamily имя группы базовых данных в Map
const BasicFamily = "Базовые данные"

// StatusSection служебный раздел аналитического текста, в отчет не попадает
const StatusSection = "Статус анализа"

// Failure описывает причину, по которой инструмент не проанализирован
type Failure struct {
	Status string
	Hint   string
	Signal string
}

// Причины отказа
var (
	FailureFetch = Failure{
		Status: "Не удалось получить данные",
		Hint:   "Проверьте формат кода инструмента",
		Signal: "Данные не получены, технический анализ невозможен",
	}
	FailureEmpty = Failure{
		Status: "Данные пусты",
		Hint:   "Источник вернул пустой ряд, проверьте код инструмента",
		Signal: "Данные пусты, анализ невозможен",
	}
	FailureCalc = Failure{
		Status: "Ошибка расчета индикаторов",
		Signal: "Технические индикаторы не рассчитаны",
	}
	FailureAnalysis = Failure{
		Status: "Ошибка анализа",
		Signal: "Анализ прерван из-за внутренней ошибки",
	}
)

// Entry подпись и отформатированное значение
type Entry struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Family группа индикаторов
type Family struct {
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
}

// Section раздел аналитического текста
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Snapshot готовые к выводу данные одного инструмента
type Snapshot struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	StatusMessage string    `json:"status_message,omitempty"`
	AsOf          time.Time `json:"as_of"`
	Basic         []Entry   `json:"basic"`
	Families      []Family  `json:"families"`
	Signals       []string  `json:"signals"`
	Narrative     []Section `json:"narrative,omitempty"`
}

// Failed сообщает, что анализ инструмента не выполнен
func (s *Snapshot) Failed() bool {
	return s.Status == StatusFailed
}

// Map возвращает группы в виде вложенных словарей, базовые данные под ключом BasicFamily
func (s *Snapshot) Map() map[string]map[string]string {
	out := make(map[string]map[string]string, len(s.Families)+1)
	out[BasicFamily] = entriesMap(s.Basic)
	for _, f := range s.Families {
		out[f.Name] = entriesMap(f.Entries)
	}
	return out
}

func entriesMap(entries []Entry) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Label] = e.Value
	}
	return m
}

type item struct {
	label  string
	column string
}

type familyDef struct {
	name  string
	items []item
}

// Builder собирает снимок из последней строки расширенной таблицы
type Builder struct {
	families []familyDef
}

// NewBuilder создает сборщик снимков
func NewBuilder(cfg config.IndicatorConfig) *Builder {
	maItems := make([]item, 0, len(cfg.MA.Windows))
	for _, w := range cfg.MA.Windows {
		name := technical.MAColumn(w)
		maItems = append(maItems, item{name, name})
	}

	return &Builder{families: []familyDef{
		{"Скользящие средние", maItems},
		{"Трендовые индикаторы", []item{
			{"MACD (схождение-расхождение средних)", technical.ColMACD},
			{"DIF (разность EMA)", technical.ColDIF},
			{"DEA (сигнальная линия)", technical.ColDEA},
			{"TRIX (тройная EMA)", technical.ColTRIX},
			{"PDI (линия роста)", technical.ColPDI},
			{"MDI (линия падения)", technical.ColMDI},
			{"ADX (сила тренда)", technical.ColADX},
		}},
		{"Осцилляторы", []item{
			{"RSI (индекс относительной силы)", technical.ColRSI},
			{"KDJ-K", technical.ColK},
			{"KDJ-D", technical.ColD},
			{"KDJ-J", technical.ColJ},
			{"BIAS (отклонение от средней)", technical.ColBIAS1},
			{"CCI (индекс товарного канала)", technical.ColCCI},
		}},
		{"Индикаторы объема", []item{
			{"VR (коэффициент объема)", technical.ColVR},
			{"AR (индикатор настроения)", technical.ColAR},
			{"BR (индикатор желания)", technical.ColBR},
		}},
		{"Индикаторы импульса", []item{
			{"ROC (скорость изменения)", technical.ColROC},
			{"MTM (импульс)", technical.ColMTM},
			{"DPO (осциллятор без тренда)", technical.ColDPO},
		}},
		{"Полосы Боллинджера", []item{
			{"Верхняя полоса", technical.ColBollUp},
			{"Средняя линия", technical.ColBollMid},
			{"Нижняя полоса", technical.ColBollLow},
		}},
	}}
}

// Build собирает снимок по исходному ряду, таблице индикаторов и сигналам
func (b *Builder) Build(inst models.Instrument, series models.Series, table *technical.Table, signals []string) (*Snapshot, error) {
	if table == nil {
		return nil, fmt.Errorf("нет таблицы индикаторов для %s", inst.Code)
	}
	if series.Len() < 2 {
		return nil, &technical.InsufficientDataError{Rows: series.Len(), Required: 2}
	}

	last := series.Candles[series.Len()-1]
	prev := series.Candles[series.Len()-2]

	change := math.NaN()
	if prev.Close != 0 {
		change = (last.Close - prev.Close) / prev.Close * 100
	}

	snap := &Snapshot{
		Code:   inst.Code,
		Name:   inst.Label(),
		Status: StatusOK,
		AsOf:   last.Time,
		Basic: []Entry{
			{"Код", inst.Code},
			{"Название", inst.Label()},
			{"Последнее закрытие", FormatNumber(last.Close)},
			{"Изменение", FormatPercent(change)},
			{"Максимум", FormatNumber(last.High)},
			{"Минимум", FormatNumber(last.Low)},
			{"Объем", FormatVolume(last.Volume)},
		},
		Families: make([]Family, 0, len(b.families)),
		Signals:  append([]string(nil), signals...),
	}

	for _, def := range b.families {
		f := Family{Name: def.name, Entries: make([]Entry, 0, len(def.items))}
		for _, it := range def.items {
			value := NotAvailable
			if v, err := table.Last(it.column); err == nil {
				value = FormatNumber(v)
			}
			f.Entries = append(f.Entries, Entry{it.label, value})
		}
		snap.Families = append(snap.Families, f)
	}

	return snap, nil
}

// Failed создает снимок-заглушку для инструмента, который не удалось проанализировать
func (b *Builder) Failed(inst models.Instrument, f Failure, cause error) *Snapshot {
	basic := []Entry{
		{"Код", inst.Code},
		{"Название", inst.Label()},
		{"Статус данных", f.Status},
	}
	if f.Hint != "" {
		basic = append(basic, Entry{"Подсказка", f.Hint})
	}
	if cause != nil {
		basic = append(basic, Entry{"Подробности", cause.Error()})
	}

	return &Snapshot{
		Code:          inst.Code,
		Name:          inst.Label(),
		Status:        StatusFailed,
		StatusMessage: f.Status,
		Basic:         basic,
		Families:      []Family{},
		Signals:       []string{f.Signal},
	}
}

// MergeNarrative добавляет разделы аналитического текста к снимку.
// Служебный раздел статуса и пустые разделы пропускаются.
func MergeNarrative(s *Snapshot, sections []Section) {
	if s == nil {
		return
	}
	for _, sec := range sections {
		if sec.Title == StatusSection || strings.TrimSpace(sec.Content) == "" {
			continue
		}
		s.Narrative = append(s.Narrative, sec)
	}
}

// FormatNumber форматирует число с двумя знаками после запятой.
// Округляется кратчайшая десятичная запись числа, половина уходит от нуля: 2.675 -> 2.68
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotAvailable
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatPercent форматирует изменение в процентах
func FormatPercent(v float64) string {
	s := FormatNumber(v)
	if s == NotAvailable {
		return s
	}
	return s + "%"
}

// FormatVolume форматирует объем целым числом с разделителями тысяч
func FormatVolume(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotAvailable
	}
	digits := decimal.NewFromFloat(v).Truncate(0).String()

	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}

	var sb strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sign + sb.String()
}
