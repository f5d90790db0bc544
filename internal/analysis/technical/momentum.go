package technical

import (
	"math"

	"github.com/markcheno/go-talib"
)

// neutralRSI подставляется вместо неопределенного RSI
const neutralRSI = 50.0

// RSI индекс относительной силы; неопределенные позиции заменяются на 50
func RSI(close []float64, n int) ([]float64, error) {
	if err := checkPeriods(n); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"close", close}); err != nil {
		return nil, err
	}

	delta := sub(close, ref(close, 1))
	gain := mapSeries(delta, nanMax0)
	abs := mapSeries(delta, math.Abs)

	rsi := ratio100(sma(gain, n, 1), sma(abs, n, 1))
	for i, v := range rsi {
		if !defined(v) {
			rsi[i] = neutralRSI
		}
	}
	return rsi, nil
}

// KDJ стохастический осциллятор. K и D начинаются с 50 на первой строке
// с определенным RSV; окно с нулевым диапазоном сохраняет прежние K и D.
func KDJ(high, low, close []float64, n, m1, m2 int) (k, d, j []float64, err error) {
	if err = checkPeriods(n, m1, m2); err != nil {
		return nil, nil, nil, err
	}
	if err = checkInputs(input{"high", high}, input{"low", low}, input{"close", close}); err != nil {
		return nil, nil, nil, err
	}

	hh, ll := hhv(high, n), llv(low, n)
	rsv := make([]float64, len(close))
	for i := range close {
		rsv[i] = div(close[i]-ll[i], hh[i]-ll[i]) * 100
	}

	k = kdjSmooth(rsv, m1)
	d = kdjSmooth(k, m2)
	j = zipWith(k, d, func(kv, dv float64) float64 { return 3*kv - 2*dv })
	return k, d, j, nil
}

// kdjSmooth сглаживание ((m-1)*prev + x)/m с начальным значением 50
func kdjSmooth(x []float64, m int) []float64 {
	out := nanSlice(len(x))
	prev := 50.0
	started := false
	for i, v := range x {
		if defined(v) {
			prev = (float64(m-1)*prev + v) / float64(m)
			started = true
		}
		if started {
			out[i] = prev
		}
	}
	return out
}

// WR индикатор Williams %R
func WR(high, low, close []float64, n int) ([]float64, error) {
	if err := checkPeriods(n); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"high", high}, input{"low", low}, input{"close", close}); err != nil {
		return nil, err
	}

	hh, ll := hhv(high, n), llv(low, n)
	out := make([]float64, len(close))
	for i := range close {
		out[i] = div(hh[i]-close[i], hh[i]-ll[i]) * 100
	}
	return out, nil
}

// CCI индекс товарного канала
func CCI(high, low, close []float64, n int) ([]float64, error) {
	if err := checkPeriods(n); err != nil {
		return nil, err
	}
	if err := checkInputs(input{"high", high}, input{"low", low}, input{"close", close}); err != nil {
		return nil, err
	}

	tp := make([]float64, len(close))
	for i := range close {
		tp[i] = (high[i] + low[i] + close[i]) / 3
	}

	if n >= 2 && len(close) >= n && finite(tp) {
		out := maskLookback(talib.Cci(high, low, close, n), n-1)
		// на плоском окне среднее отклонение равно нулю
		hi, lo := hhv(tp, n), llv(tp, n)
		for i := n - 1; i < len(out); i++ {
			if hi[i] == lo[i] {
				out[i] = math.NaN()
			}
		}
		return out, nil
	}

	avg := ma(tp, n)
	out := nanSlice(len(close))
	for i := n - 1; i < len(tp); i++ {
		if !defined(avg[i]) {
			continue
		}
		var dev float64
		for _, v := range tp[i-n+1 : i+1] {
			dev += math.Abs(v - avg[i])
		}
		out[i] = div(tp[i]-avg[i], 0.015*dev/float64(n))
	}
	return out, nil
}

// ROC скорость изменения цены в процентах и ее MA
func ROC(close []float64, n, m int) (roc, maroc []float64, err error) {
	if err = checkPeriods(n, m); err != nil {
		return nil, nil, err
	}
	if err = checkInputs(input{"close", close}); err != nil {
		return nil, nil, err
	}

	prev := ref(close, n)
	if len(close) > n && finite(close) {
		roc = maskLookback(talib.Roc(close, n), n)
		for i := n; i < len(roc); i++ {
			if prev[i] == 0 {
				roc[i] = math.NaN()
			}
		}
	} else {
		roc = zipWith(close, prev, func(c, p float64) float64 { return div(c-p, p) * 100 })
	}
	return roc, ma(roc, m), nil
}

// MTM импульс цены и его MA
func MTM(close []float64, n, m int) (mtm, mtmma []float64, err error) {
	if err = checkPeriods(n, m); err != nil {
		return nil, nil, err
	}
	if err = checkInputs(input{"close", close}); err != nil {
		return nil, nil, err
	}

	if len(close) > n && finite(close) {
		mtm = maskLookback(talib.Mom(close, n), n)
	} else {
		mtm = sub(close, ref(close, n))
	}
	return mtm, ma(mtm, m), nil
}

// DPO отклонение цены от сдвинутой средней и его MA
func DPO(close []float64, m1, m2, m3 int) (dpo, madpo []float64, err error) {
	if err = checkPeriods(m1, m2, m3); err != nil {
		return nil, nil, err
	}
	if err = checkInputs(input{"close", close}); err != nil {
		return nil, nil, err
	}

	dpo = sub(close, ref(ma(close, m1), m2))
	return dpo, ma(dpo, m3), nil
}
