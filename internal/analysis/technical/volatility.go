package technical

import "math"

// BOLL полосы Боллинджера: средняя n периодов плюс/минус width стандартных отклонений
func BOLL(close []float64, n int, width float64) (upper, mid, lower []float64, err error) {
	if err = checkPeriods(n); err != nil {
		return nil, nil, nil, err
	}
	if err = checkInputs(input{"close", close}); err != nil {
		return nil, nil, nil, err
	}

	mid = ma(close, n)
	dev := std(close, n)
	upper = zipWith(mid, dev, func(m, s float64) float64 { return m + width*s })
	lower = zipWith(mid, dev, func(m, s float64) float64 { return m - width*s })
	return upper, mid, lower, nil
}

// ATR средний истинный диапазон: простое среднее TR за n периодов;
// первое значение на строке n
func ATR(high, low, close []float64, n int) ([]float64, error) {
	if err := checkPeriods(n); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"high", high}, input{"low", low}, input{"close", close}); err != nil {
		return nil, err
	}
	return ma(trueRange(high, low, close), n), nil
}

// trueRange истинный диапазон; для первой строки не определен
func trueRange(high, low, close []float64) []float64 {
	out := nanSlice(len(close))
	for i := 1; i < len(close); i++ {
		out[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
	}
	return out
}
