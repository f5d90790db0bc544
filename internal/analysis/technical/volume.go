package technical

import "math"

// VR отношение объема дней роста к объему остальных дней за n периодов, в процентах.
// Первая строка не имеет предыдущего закрытия и не входит ни в одну сумму.
func VR(close, volume []float64, n int) ([]float64, error) {
	if err := checkPeriods(n); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"close", close}, input{"volume", volume}); err != nil {
		return nil, err
	}

	prev := ref(close, 1)
	up := make([]float64, len(close))
	down := make([]float64, len(close))
	for i := range close {
		switch {
		case close[i] > prev[i]:
			up[i] = volume[i]
		case close[i] <= prev[i]:
			down[i] = volume[i]
		}
	}
	return ratio100(sum(up, n), sum(down, n)), nil
}

// EMV индикатор легкости движения и его MA
func EMV(high, low, volume []float64, n, m int) (emv, maemv []float64, err error) {
	if err = checkPeriods(n, m); err != nil {
		return nil, nil, err
	}
	if err = checkInputs(input{"high", high}, input{"low", low}, input{"volume", volume}); err != nil {
		return nil, nil, err
	}

	vol := zipWith(ma(volume, n), volume, div)
	hl := zipWith(high, low, func(h, l float64) float64 { return h + l })
	prevHL := ref(hl, 1)
	rng := sub(high, low)
	rngMA := ma(rng, n)

	raw := make([]float64, len(high))
	for i := range raw {
		mid := div(hl[i]-prevHL[i], hl[i]) * 100
		raw[i] = div(mid*vol[i]*rng[i], rngMA[i])
	}
	emv = ma(raw, n)
	return emv, ma(emv, m), nil
}

// BRAR индикаторы настроения AR и BR
func BRAR(open, high, low, close []float64, n int) (ar, br []float64, err error) {
	if err = checkPeriods(n); err != nil {
		return nil, nil, err
	}
	if err = checkInputs(input{"open", open}, input{"high", high}, input{"low", low}, input{"close", close}); err != nil {
		return nil, nil, err
	}

	ar = ratio100(sum(sub(high, open), n), sum(sub(open, low), n))

	prev := ref(close, 1)
	bull := make([]float64, len(close))
	bear := make([]float64, len(close))
	for i := range close {
		bull[i] = nanMax0(high[i] - prev[i])
		bear[i] = nanMax0(prev[i] - low[i])
	}
	br = ratio100(sum(bull, n), sum(bear, n))
	return ar, br, nil
}

// nanMax0 возвращает max(v, 0), сохраняя NaN
func nanMax0(v float64) float64 {
	if !defined(v) {
		return v
	}
	return math.Max(v, 0)
}
