package technical

// MACD возвращает DIF, DEA и гистограмму 2*(DIF-DEA)
func MACD(close []float64, short, long, signal int) (dif, dea, hist []float64, err error) {
	if err = checkPeriods(short, long, signal); err != nil {
		return nil, nil, nil, err
	}
	if err = checkInputs(input{"close", close}); err != nil {
		return nil, nil, nil, err
	}

	dif = sub(ema(close, short), ema(close, long))
	dea = ema(dif, signal)
	hist = zipWith(dif, dea, func(d, e float64) float64 { return 2 * (d - e) })
	return dif, dea, hist, nil
}

// TRIX тройная экспоненциальная средняя в процентах изменения и ее MA
func TRIX(close []float64, m1, m2 int) (trix, trma []float64, err error) {
	if err = checkPeriods(m1, m2); err != nil {
		return nil, nil, err
	}
	if err = checkInputs(input{"close", close}); err != nil {
		return nil, nil, err
	}

	tr := ema(ema(ema(close, m1), m1), m1)
	prev := ref(tr, 1)
	trix = zipWith(tr, prev, func(cur, p float64) float64 { return div(cur-p, p) * 100 })
	trma = ma(trix, m2)
	return trix, trma, nil
}

// DMA разность двух средних и ее MA
func DMA(close []float64, n1, n2, m int) (dif, difma []float64, err error) {
	if err = checkPeriods(n1, n2, m); err != nil {
		return nil, nil, err
	}
	if err = checkInputs(input{"close", close}); err != nil {
		return nil, nil, err
	}

	dif = sub(ma(close, n1), ma(close, n2))
	difma = ma(dif, m)
	return dif, difma, nil
}

// BIAS отклонение цены от средней в процентах
func BIAS(close []float64, l int) ([]float64, error) {
	if err := checkPeriods(l); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"close", close}); err != nil {
		return nil, err
	}

	avg := ma(close, l)
	return zipWith(close, avg, func(c, a float64) float64 { return div(c-a, a) * 100 }), nil
}
