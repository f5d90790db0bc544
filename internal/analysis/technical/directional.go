package technical

// DMI индикатор направленного движения: PDI, MDI, ADX, ADXR.
// TR и DM сглаживаются методом Уайлдера за m1 периодов,
// ADX это MA(DX, m2), ADXR среднее ADX и его значения m2 строк назад.
func DMI(high, low, close []float64, m1, m2 int) (pdi, mdi, adx, adxr []float64, err error) {
	if err = checkPeriods(m1, m2); err != nil {
		return nil, nil, nil, nil, err
	}
	if err = checkInputs(input{"high", high}, input{"low", low}, input{"close", close}); err != nil {
		return nil, nil, nil, nil, err
	}

	n := len(close)
	tr := trueRange(high, low, close)
	plusDM := nanSlice(n)
	minusDM := nanSlice(n)
	for i := 1; i < n; i++ {
		hd := high[i] - high[i-1]
		ld := low[i-1] - low[i]
		plusDM[i], minusDM[i] = 0, 0
		if hd > 0 && hd > ld {
			plusDM[i] = hd
		}
		if ld > 0 && ld > hd {
			minusDM[i] = ld
		}
	}

	trS := wilder(tr, m1)
	pdi = ratio100(wilder(plusDM, m1), trS)
	mdi = ratio100(wilder(minusDM, m1), trS)

	dx := zipWith(pdi, mdi, func(p, m float64) float64 {
		d := p - m
		if d < 0 {
			d = -d
		}
		return div(d, p+m) * 100
	})
	adx = ma(dx, m2)
	adxr = zipWith(adx, ref(adx, m2), func(cur, prev float64) float64 { return (cur + prev) / 2 })
	return pdi, mdi, adx, adxr, nil
}

// wilder сумма Уайлдера: начальное значение равно сумме первых p определенных
// значений, далее S = S - S/p + x
func wilder(x []float64, p int) []float64 {
	out := nanSlice(len(x))
	start := -1
	for i, v := range x {
		if defined(v) {
			start = i
			break
		}
	}
	if start < 0 || start+p > len(x) {
		return out
	}

	seedIdx := start + p - 1
	s := sumOf(x[start : seedIdx+1])
	out[seedIdx] = s
	for i := seedIdx + 1; i < len(x); i++ {
		if defined(x[i]) {
			s = s - s/float64(p) + x[i]
		}
		out[i] = s
	}
	return out
}

// PSY психологическая линия: доля дней роста за n периодов и ее MA
func PSY(close []float64, n, m int) (psy, psyma []float64, err error) {
	if err = checkPeriods(n, m); err != nil {
		return nil, nil, err
	}
	if err = checkInputs(input{"close", close}); err != nil {
		return nil, nil, err
	}

	prev := ref(close, 1)
	up := make([]float64, len(close))
	for i := range close {
		if close[i] > prev[i] {
			up[i] = 1
		}
	}
	psy = mapSeries(sum(up, n), func(v float64) float64 { return v / float64(n) * 100 })
	return psy, ma(psy, m), nil
}
