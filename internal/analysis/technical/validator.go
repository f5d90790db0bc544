package technical

import (
	"fmt"
	"math"

	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

// Limits пороги числа строк для проверки ряда
type Limits struct {
	// MinRows минимум строк, ниже которого расчет невозможен
	MinRows int
	// StableRows число строк, начиная с которого длинные индикаторы устойчивы
	StableRows int
}

// DefaultLimits пороги по умолчанию: две строки для разностей, 60 для MA60
var DefaultLimits = Limits{MinRows: 2, StableRows: 60}

// Validate проверяет ряд с порогами по умолчанию
func Validate(series models.Series) (*LowConfidenceWarning, error) {
	return DefaultLimits.Validate(series)
}

// Validate проверяет длину ряда, конечность цен и объемов и порядок меток времени.
// Короткий, но корректный ряд дает предупреждение без ошибки.
func (l Limits) Validate(series models.Series) (*LowConfidenceWarning, error) {
	minRows := l.MinRows
	if minRows < 2 {
		minRows = 2
	}

	rows := series.Len()
	if rows < minRows {
		return nil, &InsufficientDataError{Rows: rows, Required: minRows}
	}

	for i, c := range series.Candles {
		fields := []struct {
			name  string
			value float64
		}{
			{"open", c.Open},
			{"high", c.High},
			{"low", c.Low},
			{"close", c.Close},
			{"volume", c.Volume},
		}
		for _, f := range fields {
			if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
				return nil, &MalformedSeriesError{Field: f.name, Reason: fmt.Sprintf("строка %d: нечисловое значение", i)}
			}
		}
		if c.Volume < 0 {
			return nil, &MalformedSeriesError{Field: "volume", Reason: fmt.Sprintf("строка %d: отрицательный объем", i)}
		}
		if i > 0 && !c.Time.After(series.Candles[i-1].Time) {
			return nil, &MalformedSeriesError{Field: "time", Reason: fmt.Sprintf("строка %d: метка времени не возрастает", i)}
		}
	}

	if rows < l.StableRows {
		return &LowConfidenceWarning{Rows: rows, Recommended: l.StableRows}, nil
	}
	return nil, nil
}
