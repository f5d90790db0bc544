package technical

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

var testStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// makeSeries строит детерминированный дневной ряд из n свечей
func makeSeries(n int) models.Series {
	candles := make([]models.Candle, n)
	for i := range candles {
		x := float64(i)
		base := 100 + 10*math.Sin(x/7) + 0.1*x
		candles[i] = models.Candle{
			Time:   testStart.AddDate(0, 0, i),
			Open:   base - 0.5,
			High:   base + 1.5,
			Low:    base - 1.5,
			Close:  base + 0.3*math.Cos(x),
			Volume: 1000 + float64(i%10)*100,
		}
	}
	return models.Series{Symbol: "sh600000", Candles: candles}
}

// assertSeries сравнивает ряды поэлементно, NaN равен только NaN
func assertSeries(t *testing.T, want, got []float64) {
	t.Helper()
	if !assert.Len(t, got, len(want)) {
		return
	}
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.Truef(t, math.IsNaN(got[i]), "позиция %d: ожидался NaN, получено %v", i, got[i])
			continue
		}
		assert.InDeltaf(t, want[i], got[i], 1e-9, "позиция %d", i)
	}
}

func sameSeries(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.IsNaN(a[i]) != math.IsNaN(b[i]) {
			return false
		}
		if !math.IsNaN(a[i]) && math.Abs(a[i]-b[i]) > 1e-6 {
			return false
		}
	}
	return true
}

var nan = math.NaN()
