package signals

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/technical"
	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
)

// Тексты сигналов
const (
	MsgMACDGolden    = "Золотой крест MACD, возможен рост"
	MsgMACDDead      = "Мертвый крест MACD, возможно снижение"
	MsgKDJOversold   = "KDJ в зоне перепроданности, возможен отскок"
	MsgKDJOverbought = "KDJ в зоне перекупленности, возможна коррекция"
	MsgRSIOversold   = "RSI в зоне перепроданности, возможен отскок"
	MsgRSIOverbought = "RSI в зоне перекупленности, возможна коррекция"
	MsgBollUpper     = "Цена пробила верхнюю полосу Боллинджера, перекупленность"
	MsgBollLower     = "Цена пробила нижнюю полосу Боллинджера, перепроданность"
	MsgDMIGolden     = "Золотой крест DMI, формируется восходящий тренд"
	MsgDMIDead       = "Мертвый крест DMI, формируется нисходящий тренд"
	MsgVRHigh        = "VR выше %g, высокая активность рынка"
	MsgVRLow         = "VR ниже %g, низкая активность рынка"
	MsgROCUp         = "ROC пересек среднюю снизу вверх, импульс усиливается"
	MsgROCDown       = "ROC пересек среднюю сверху вниз, импульс ослабевает"

	MsgNoSignal     = "Явных торговых сигналов нет"
	MsgInsufficient = "Недостаточно данных для технического анализа"
	MsgRuleError    = "Ошибка расчета технических сигналов: %v"
)

// Source последние строки расширенной таблицы
type Source interface {
	Len() int
	Value(name string, i int) (float64, error)
}

var _ Source = (*technical.Table)(nil)

// Generator применяет фиксированный набор правил к двум последним строкам таблицы
type Generator struct {
	config config.ThresholdConfig
	rules  []rule
}

type rule struct {
	name  string
	check func(w window) (string, error)
}

// NewGenerator создает генератор сигналов
func NewGenerator(cfg config.ThresholdConfig) *Generator {
	g := &Generator{config: cfg}
	g.rules = []rule{
		{"MACD", g.macd},
		{"KDJ", g.kdj},
		{"RSI", g.rsi},
		{"BOLL", g.boll},
		{"DMI", g.dmi},
		{"VR", g.vr},
		{"ROC", g.roc},
	}
	return g
}

// Generate возвращает сигналы в порядке правил. Результат никогда не пуст:
// при отсутствии сигналов возвращается MsgNoSignal, ошибки правил сводятся
// в одно диагностическое сообщение в конце.
func (g *Generator) Generate(src Source) []string {
	if src == nil || src.Len() < 2 {
		return []string{MsgInsufficient}
	}

	w := window{src: src, prev: src.Len() - 2, last: src.Len() - 1}
	var (
		out  []string
		errs []error
	)
	for _, r := range g.rules {
		msg, err := evaluate(r, w)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if msg != "" {
			out = append(out, msg)
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		logger.Warn("Ошибка в правилах сигналов", zap.Error(err))
		return append(out, fmt.Sprintf(MsgRuleError, strings.ReplaceAll(err.Error(), "\n", "; ")))
	}
	if len(out) == 0 {
		return []string{MsgNoSignal}
	}
	return out
}

// evaluate выполняет правило, перехватывая панику
func evaluate(r rule, w window) (msg string, err error) {
	defer func() {
		if p := recover(); p != nil {
			msg, err = "", fmt.Errorf("%s: паника: %v", r.name, p)
		}
	}()
	msg, err = r.check(w)
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.name, err)
	}
	return msg, nil
}

// window две последние строки таблицы
type window struct {
	src        Source
	prev, last int
}

// pair читает значения колонки в предпоследней и последней строках
func (w window) pair(name string) (prev, last float64, err error) {
	if prev, err = w.src.Value(name, w.prev); err != nil {
		return 0, 0, err
	}
	if last, err = w.src.Value(name, w.last); err != nil {
		return 0, 0, err
	}
	return prev, last, nil
}

func (w window) latest(name string) (float64, error) {
	return w.src.Value(name, w.last)
}

func (g *Generator) macd(w window) (string, error) {
	h0, h1, err := w.pair(technical.ColMACD)
	if err != nil {
		return "", err
	}
	switch {
	case h1 > 0 && h0 <= 0:
		return MsgMACDGolden, nil
	case h1 < 0 && h0 >= 0:
		return MsgMACDDead, nil
	}
	return "", nil
}

func (g *Generator) kdj(w window) (string, error) {
	k, err := w.latest(technical.ColK)
	if err != nil {
		return "", err
	}
	d, err := w.latest(technical.ColD)
	if err != nil {
		return "", err
	}
	switch {
	case k < g.config.KDJOversold && d < g.config.KDJOversold:
		return MsgKDJOversold, nil
	case k > g.config.KDJOverbought && d > g.config.KDJOverbought:
		return MsgKDJOverbought, nil
	}
	return "", nil
}

func (g *Generator) rsi(w window) (string, error) {
	v, err := w.latest(technical.ColRSI)
	if err != nil {
		return "", err
	}
	switch {
	case v < g.config.RSIOversold:
		return MsgRSIOversold, nil
	case v > g.config.RSIOverbought:
		return MsgRSIOverbought, nil
	}
	return "", nil
}

func (g *Generator) boll(w window) (string, error) {
	c, err := w.latest(technical.ColClose)
	if err != nil {
		return "", err
	}
	up, err := w.latest(technical.ColBollUp)
	if err != nil {
		return "", err
	}
	low, err := w.latest(technical.ColBollLow)
	if err != nil {
		return "", err
	}
	switch {
	case c > up:
		return MsgBollUpper, nil
	case c < low:
		return MsgBollLower, nil
	}
	return "", nil
}

func (g *Generator) dmi(w window) (string, error) {
	p0, p1, err := w.pair(technical.ColPDI)
	if err != nil {
		return "", err
	}
	m0, m1, err := w.pair(technical.ColMDI)
	if err != nil {
		return "", err
	}
	switch {
	case p1 > m1 && p0 <= m0:
		return MsgDMIGolden, nil
	case p1 < m1 && p0 >= m0:
		return MsgDMIDead, nil
	}
	return "", nil
}

func (g *Generator) vr(w window) (string, error) {
	v, err := w.latest(technical.ColVR)
	if err != nil {
		return "", err
	}
	switch {
	case v > g.config.VRHigh:
		return fmt.Sprintf(MsgVRHigh, g.config.VRHigh), nil
	case v < g.config.VRLow:
		return fmt.Sprintf(MsgVRLow, g.config.VRLow), nil
	}
	return "", nil
}

func (g *Generator) roc(w window) (string, error) {
	r0, r1, err := w.pair(technical.ColROC)
	if err != nil {
		return "", err
	}
	a0, a1, err := w.pair(technical.ColMAROC)
	if err != nil {
		return "", err
	}
	switch {
	case r1 > a1 && r0 <= a0:
		return MsgROCUp, nil
	case r1 < a1 && r0 >= a0:
		return MsgROCDown, nil
	}
	return "", nil
}
