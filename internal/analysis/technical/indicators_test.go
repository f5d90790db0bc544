package technical

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestMACDOnFlatSeries(t *testing.T) {
	dif, dea, hist, err := MACD(constant(10, 40), 12, 26, 9)
	require.NoError(t, err)
	assertSeries(t, constant(0, 40), dif)
	assertSeries(t, constant(0, 40), dea)
	assertSeries(t, constant(0, 40), hist)
}

func TestMACDHistogram(t *testing.T) {
	closes := makeSeries(60).Closes()
	dif, dea, hist, err := MACD(closes, 12, 26, 9)
	require.NoError(t, err)
	for i := range closes {
		assert.InDelta(t, 2*(dif[i]-dea[i]), hist[i], 1e-12)
	}
}

func TestKDJ(t *testing.T) {
	high := []float64{10, 11, 12, 12}
	low := []float64{8, 9, 10, 10}
	closes := []float64{9, 10, 11, 11}

	k, d, j, err := KDJ(high, low, closes, 3, 3, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 175.0 / 3, 550.0 / 9}, k)
	assertSeries(t, []float64{nan, nan, 475.0 / 9, 500.0 / 9}, d)
	assertSeries(t, []float64{nan, nan, 625.0 / 9, 650.0 / 9}, j)
}

func TestKDJCarriesOnFlatWindow(t *testing.T) {
	high := []float64{10, 12, 11, 11, 11, 11}
	low := []float64{8, 9, 11, 11, 11, 11}
	closes := []float64{9, 10, 11, 11, 11, 11}

	k, d, _, err := KDJ(high, low, closes, 3, 3, 3)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(k[4]))
	assert.Equal(t, k[3], k[4])
	assert.Equal(t, d[3], d[4])
}

func TestRSI(t *testing.T) {
	flat, err := RSI(constant(10, 20), 14)
	require.NoError(t, err)
	assertSeries(t, constant(50, 20), flat)

	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(i + 1)
	}
	up, err := RSI(rising, 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, up[0])
	for _, v := range up[1:] {
		assert.InDelta(t, 100, v, 1e-9)
	}
}

func TestRSIRange(t *testing.T) {
	rsi, err := RSI(makeSeries(200).Closes(), 14)
	require.NoError(t, err)
	for i, v := range rsi {
		assert.False(t, math.IsNaN(v), "позиция %d", i)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestBOLLOnFlatSeries(t *testing.T) {
	up, mid, low, err := BOLL(constant(5, 25), 20, 2)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(mid[18]))
	for i := 19; i < 25; i++ {
		assert.InDelta(t, 5, up[i], 1e-9)
		assert.InDelta(t, 5, mid[i], 1e-9)
		assert.InDelta(t, 5, low[i], 1e-9)
	}
}

func TestATR(t *testing.T) {
	high := []float64{10, 11, 12, 13, 14}
	low := []float64{9, 10, 11, 12, 13}
	closes := []float64{9.5, 10.5, 11.5, 12.5, 13.5}
	want := []float64{nan, nan, nan, 1.5, 1.5}

	got, err := ATR(high, low, closes, 3)
	require.NoError(t, err)
	assertSeries(t, want, got)

	// первая строка не влияет на результат, а NaN переводит расчет на цикл
	gapHigh := append([]float64{nan}, high[1:]...)
	got, err = ATR(gapHigh, low, closes, 3)
	require.NoError(t, err)
	assertSeries(t, want, got)

	short, err := ATR(high[:3], low[:3], closes[:3], 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, nan}, short)
}

func TestATRIsSimpleAverageOfTrueRange(t *testing.T) {
	// TR: -, 2.5, 1, 4.5, 3, 1.5
	high := []float64{10, 12, 11, 15, 12, 13}
	low := []float64{9, 10, 10, 11, 11, 12}
	closes := []float64{9.5, 11, 10.5, 14, 11.5, 12.5}

	got, err := ATR(high, low, closes, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, nan, 8.0 / 3, 8.5 / 3, 3}, got)
}

func TestDMIOnSteadyUptrend(t *testing.T) {
	n := 10
	high, low, closes := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		high[i] = 10 + float64(i)
		low[i] = 9 + float64(i)
		closes[i] = 9.5 + float64(i)
	}

	pdi, mdi, adx, adxr, err := DMI(high, low, closes, 3, 2)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		if i < 3 {
			assert.True(t, math.IsNaN(pdi[i]))
			assert.True(t, math.IsNaN(mdi[i]))
			continue
		}
		assert.InDelta(t, 200.0/3, pdi[i], 1e-9)
		assert.InDelta(t, 0, mdi[i], 1e-9)
	}
	assert.True(t, math.IsNaN(adx[3]))
	assert.InDelta(t, 100, adx[4], 1e-9)
	assert.True(t, math.IsNaN(adxr[5]))
	assert.InDelta(t, 100, adxr[6], 1e-9)
	assert.InDelta(t, 100, adxr[n-1], 1e-9)
}

func TestVR(t *testing.T) {
	vr, err := VR([]float64{10, 11, 10, 12}, []float64{100, 200, 300, 400}, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 200.0 / 3, 200}, vr)
}

func TestPSY(t *testing.T) {
	psy, psyma, err := PSY([]float64{1, 2, 3, 4, 5}, 3, 2)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 200.0 / 3, 100, 100}, psy)
	assertSeries(t, []float64{nan, nan, nan, 250.0 / 3, 100}, psyma)
}

func TestWR(t *testing.T) {
	wr, err := WR([]float64{10, 12, 11}, []float64{8, 9, 9}, []float64{9, 11, 10}, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 50}, wr)
}

func TestROCZeroBase(t *testing.T) {
	roc, maroc, err := ROC([]float64{0, 1, 2, 4}, 1, 1)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 100, 100}, roc)
	assertSeries(t, []float64{nan, nan, 100, 100}, maroc)
}

func TestMTM(t *testing.T) {
	mtm, _, err := MTM([]float64{1, 2, 4, 7}, 2, 1)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 3, 5}, mtm)
}

func TestDPOAndTRIXOnFlatSeries(t *testing.T) {
	dpo, _, err := DPO(constant(5, 6), 2, 1, 1)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 0, 0, 0, 0}, dpo)

	trix, trma, err := TRIX(constant(5, 6), 3, 2)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, 0, 0, 0, 0, 0}, trix)
	assertSeries(t, []float64{nan, nan, 0, 0, 0, 0}, trma)
}

func TestBIASAndDMA(t *testing.T) {
	bias, err := BIAS(constant(8, 10), 6)
	require.NoError(t, err)
	assert.InDelta(t, 0, bias[9], 1e-9)

	dif, difma, err := DMA([]float64{1, 2, 3, 4, 5, 6}, 2, 3, 2)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 0.5, 0.5, 0.5, 0.5}, dif)
	assertSeries(t, []float64{nan, nan, nan, 0.5, 0.5, 0.5}, difma)
}

func TestBRAR(t *testing.T) {
	open := constant(10, 3)
	high := constant(12, 3)
	low := constant(9, 3)
	closes := constant(11, 3)

	ar, br, err := BRAR(open, high, low, closes, 2)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, 200, 200}, ar)
	assertSeries(t, []float64{nan, nan, 50}, br)
}

func TestEMVZeroVolume(t *testing.T) {
	s := makeSeries(30)
	volume := s.Volumes()
	volume[29] = 0

	emv, maemv, err := EMV(s.Highs(), s.Lows(), volume, 14, 9)
	require.NoError(t, err)
	assert.Len(t, emv, 30)
	assert.Len(t, maemv, 30)
	assert.False(t, math.IsNaN(emv[28]))
	assert.True(t, math.IsNaN(emv[29]))
}

func TestCCI(t *testing.T) {
	s := makeSeries(40)
	high, low, closes := s.Highs(), s.Lows(), s.Closes()
	n := 14

	tp := make([]float64, len(closes))
	for i := range closes {
		tp[i] = (high[i] + low[i] + closes[i]) / 3
	}
	last := len(tp) - 1
	var mean, dev float64
	for _, v := range tp[last-n+1:] {
		mean += v
	}
	mean /= float64(n)
	for _, v := range tp[last-n+1:] {
		dev += math.Abs(v - mean)
	}
	want := (tp[last] - mean) / (0.015 * dev / float64(n))

	cci, err := CCI(high, low, closes, n)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(cci[n-2]))
	assert.InDelta(t, want, cci[last], 1e-6)

	high[0] = nan
	looped, err := CCI(high, low, closes, n)
	require.NoError(t, err)
	assert.InDelta(t, want, looped[last], 1e-6)

	flat, err := CCI(constant(3, 20), constant(3, 20), constant(3, 20), n)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(flat[19]))
}

func TestIndicatorsRejectMismatchedInputs(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{1, 2}

	_, _, _, err := KDJ(a, b, a, 9, 3, 3)
	assert.ErrorIs(t, err, ErrMalformedSeries)

	_, _, _, _, err = DMI(a, a, b, 14, 6)
	assert.ErrorIs(t, err, ErrMalformedSeries)

	_, err = VR(a, b, 26)
	assert.ErrorIs(t, err, ErrMalformedSeries)

	_, _, err = BRAR(a, a, nil, a, 26)
	assert.ErrorIs(t, err, ErrMalformedSeries)

	_, _, _, err = MACD(a, 0, 26, 9)
	assert.ErrorIs(t, err, ErrMalformedSeries)
}
