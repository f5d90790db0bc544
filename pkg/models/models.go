package models

import (
	"time"
)

// Candle представляет дневную свечу OHLCV
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series представляет упорядоченный по времени ряд свечей одного инструмента.
// После получения от источника данных ряд не изменяется.
type Series struct {
	Symbol  string   `json:"symbol"`
	Candles []Candle `json:"candles"`
}

// Instrument описывает анализируемый инструмент
type Instrument struct {
	Code string `yaml:"code" json:"code" validate:"required"`
	Name string `yaml:"name" json:"name"`
}

// Label возвращает имя инструмента, а при его отсутствии код
func (i Instrument) Label() string {
	if i.Name == "" {
		return i.Code
	}
	return i.Name
}

// Len возвращает количество свечей
func (s Series) Len() int {
	return len(s.Candles)
}

// Empty сообщает, что ряд пуст
func (s Series) Empty() bool {
	return len(s.Candles) == 0
}

// Last возвращает последнюю свечу
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Times возвращает временные метки
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Time
	}
	return out
}

// Opens возвращает копию цен открытия
func (s Series) Opens() []float64 {
	return s.column(func(c Candle) float64 { return c.Open })
}

// Highs возвращает копию максимумов
func (s Series) Highs() []float64 {
	return s.column(func(c Candle) float64 { return c.High })
}

// Lows возвращает копию минимумов
func (s Series) Lows() []float64 {
	return s.column(func(c Candle) float64 { return c.Low })
}

// Closes возвращает копию цен закрытия
func (s Series) Closes() []float64 {
	return s.column(func(c Candle) float64 { return c.Close })
}

// Volumes возвращает копию объемов
func (s Series) Volumes() []float64 {
	return s.column(func(c Candle) float64 { return c.Volume })
}

func (s Series) column(field func(Candle) float64) []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = field(c)
	}
	return out
}
