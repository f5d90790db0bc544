package technical

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// Базовые операции над рядами. Неопределенная позиция всегда NaN.
// Для рядов без NaN используется talib, у которого начальный участок
// заполнен нулями; эти нули заменяются на NaN.

// input именованный входной ряд для проверки
type input struct {
	field string
	data  []float64
}

// checkInputs проверяет, что ряды не пусты и имеют одинаковую длину
func checkInputs(in ...input) error {
	if len(in) == 0 {
		return &MalformedSeriesError{Field: "input", Reason: "нет входных рядов"}
	}
	n := len(in[0].data)
	for _, c := range in {
		if len(c.data) == 0 {
			return &MalformedSeriesError{Field: c.field, Reason: "пустой ряд"}
		}
		if len(c.data) != n {
			return &MalformedSeriesError{
				Field:  c.field,
				Reason: fmt.Sprintf("длина %d не совпадает с %d", len(c.data), n),
			}
		}
	}
	return nil
}

// checkPeriods проверяет, что все периоды не меньше 1
func checkPeriods(periods ...int) error {
	for _, p := range periods {
		if p < 1 {
			return &MalformedSeriesError{Field: "period", Reason: fmt.Sprintf("период %d меньше 1", p)}
		}
	}
	return nil
}

// MA простая скользящая средняя
func MA(x []float64, p int) ([]float64, error) {
	if err := checkPeriods(p); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"x", x}); err != nil {
		return nil, err
	}
	return ma(x, p), nil
}

// EMA экспоненциальная средняя с коэффициентом 2/(p+1)
func EMA(x []float64, p int) ([]float64, error) {
	if err := checkPeriods(p); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"x", x}); err != nil {
		return nil, err
	}
	return ema(x, p), nil
}

// SMA взвешенная средняя с коэффициентом m/n
func SMA(x []float64, n, m int) ([]float64, error) {
	if err := checkPeriods(n, m); err != nil {
		return nil, err
	}
	if m > n {
		return nil, &MalformedSeriesError{Field: "period", Reason: fmt.Sprintf("вес %d больше периода %d", m, n)}
	}
	if err := checkInputs(input{"x", x}); err != nil {
		return nil, err
	}
	return sma(x, n, m), nil
}

// STD скользящее стандартное отклонение генеральной совокупности
func STD(x []float64, p int) ([]float64, error) {
	if err := checkPeriods(p); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"x", x}); err != nil {
		return nil, err
	}
	return std(x, p), nil
}

// HHV скользящий максимум
func HHV(x []float64, p int) ([]float64, error) {
	if err := checkPeriods(p); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"x", x}); err != nil {
		return nil, err
	}
	return hhv(x, p), nil
}

// LLV скользящий минимум
func LLV(x []float64, p int) ([]float64, error) {
	if err := checkPeriods(p); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"x", x}); err != nil {
		return nil, err
	}
	return llv(x, p), nil
}

// REF сдвигает ряд на n позиций назад
func REF(x []float64, n int) ([]float64, error) {
	if n < 0 {
		return nil, &MalformedSeriesError{Field: "period", Reason: fmt.Sprintf("сдвиг %d меньше 0", n)}
	}
	if err := checkInputs(input{"x", x}); err != nil {
		return nil, err
	}
	return ref(x, n), nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func defined(v float64) bool {
	return !math.IsNaN(v)
}

// div делит a на b, деление на ноль дает NaN
func div(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}

// maskLookback заменяет первые lookback значений результата talib на NaN
func maskLookback(out []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}

// useTalib сообщает, можно ли посчитать окно p через talib
func useTalib(x []float64, p int) bool {
	return p >= 2 && len(x) >= p && finite(x)
}

// window применяет агрегат к каждому полному окну; окно с NaN дает NaN
func window(x []float64, p int, agg func(w []float64) float64) []float64 {
	out := nanSlice(len(x))
	for i := p - 1; i < len(x); i++ {
		w := x[i-p+1 : i+1]
		if !finite(w) {
			continue
		}
		out[i] = agg(w)
	}
	return out
}

func ma(x []float64, p int) []float64 {
	if useTalib(x, p) {
		return maskLookback(talib.Sma(x, p), p-1)
	}
	return window(x, p, func(w []float64) float64 {
		return sumOf(w) / float64(len(w))
	})
}

func sum(x []float64, p int) []float64 {
	if useTalib(x, p) {
		return maskLookback(talib.Sum(x, p), p-1)
	}
	return window(x, p, sumOf)
}

func std(x []float64, p int) []float64 {
	if useTalib(x, p) {
		out := maskLookback(talib.StdDev(x, p, 1), p-1)
		for i := p - 1; i < len(out); i++ {
			// накопленная погрешность дисперсии может дать NaN на плоском окне
			if math.IsNaN(out[i]) {
				out[i] = 0
			}
		}
		return out
	}
	return window(x, p, func(w []float64) float64 {
		mean := sumOf(w) / float64(len(w))
		var sq float64
		for _, v := range w {
			sq += (v - mean) * (v - mean)
		}
		return math.Sqrt(sq / float64(len(w)))
	})
}

func hhv(x []float64, p int) []float64 {
	if useTalib(x, p) {
		return maskLookback(talib.Max(x, p), p-1)
	}
	return window(x, p, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Max(m, v)
		}
		return m
	})
}

func llv(x []float64, p int) []float64 {
	if useTalib(x, p) {
		return maskLookback(talib.Min(x, p), p-1)
	}
	return window(x, p, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Min(m, v)
		}
		return m
	})
}

func ref(x []float64, n int) []float64 {
	out := nanSlice(len(x))
	for i := n; i < len(x); i++ {
		out[i] = x[i-n]
	}
	return out
}

// smooth экспоненциальное сглаживание с весом alpha, начиная с первого
// определенного значения; NaN внутри ряда сохраняет предыдущий результат
func smooth(x []float64, alpha float64) []float64 {
	out := nanSlice(len(x))
	started := false
	prev := math.NaN()
	for i, v := range x {
		switch {
		case !defined(v) && !started:
			continue
		case !defined(v):
			out[i] = prev
		case !started:
			prev, started = v, true
			out[i] = v
		default:
			prev = alpha*v + (1-alpha)*prev
			out[i] = prev
		}
	}
	return out
}

func ema(x []float64, p int) []float64 {
	return smooth(x, 2/float64(p+1))
}

func sma(x []float64, n, m int) []float64 {
	return smooth(x, float64(m)/float64(n))
}

func sumOf(w []float64) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// zipWith поэлементно объединяет два ряда одинаковой длины
func zipWith(a, b []float64, f func(x, y float64) float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = f(a[i], b[i])
	}
	return out
}

func mapSeries(x []float64, f func(v float64) float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = f(v)
	}
	return out
}

func sub(a, b []float64) []float64 {
	return zipWith(a, b, func(x, y float64) float64 { return x - y })
}

// ratio100 возвращает a/b*100 с NaN при делении на ноль
func ratio100(a, b []float64) []float64 {
	return zipWith(a, b, func(x, y float64) float64 { return div(x, y) * 100 })
}
