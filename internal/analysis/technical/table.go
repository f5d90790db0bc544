package technical

import (
	"fmt"

	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

// Имена колонок таблицы
const (
	ColOpen   = "OPEN"
	ColHigh   = "HIGH"
	ColLow    = "LOW"
	ColClose  = "CLOSE"
	ColVolume = "VOLUME"

	ColMA5  = "MA5"
	ColMA10 = "MA10"
	ColMA20 = "MA20"
	ColMA60 = "MA60"

	ColDIF  = "DIF"
	ColDEA  = "DEA"
	ColMACD = "MACD"

	ColK = "K"
	ColD = "D"
	ColJ = "J"

	ColBollUp  = "BOLL_UP"
	ColBollMid = "BOLL_MID"
	ColBollLow = "BOLL_LOW"

	ColRSI   = "RSI"
	ColPSY   = "PSY"
	ColPSYMA = "PSYMA"
	ColWR    = "WR"
	ColWR1   = "WR1"
	ColBIAS1 = "BIAS1"
	ColBIAS2 = "BIAS2"
	ColBIAS3 = "BIAS3"
	ColCCI   = "CCI"
	ColATR   = "ATR"
	ColEMV   = "EMV"
	ColMAEMV = "MAEMV"
	ColDPO   = "DPO"
	ColMADPO = "MADPO"
	ColTRIX  = "TRIX"
	ColTRMA  = "TRMA"

	ColPDI  = "PDI"
	ColMDI  = "MDI"
	ColADX  = "ADX"
	ColADXR = "ADXR"

	ColVR    = "VR"
	ColAR    = "AR"
	ColBR    = "BR"
	ColROC   = "ROC"
	ColMAROC = "MAROC"
	ColMTM   = "MTM"
	ColMTMMA = "MTMMA"

	ColDMADIF   = "DIF_DMA"
	ColDMADIFMA = "DIFMA_DMA"
)

// MAColumn имя колонки скользящей средней с окном w
func MAColumn(w int) string {
	return fmt.Sprintf("MA%d", w)
}

// Column именованная колонка значений
type Column struct {
	Name string
	Data []float64
}

// Table расширенная таблица: исходный ряд и рассчитанные колонки одной длины.
// Заполняется только сборщиком, после возврата доступна лишь для чтения.
type Table struct {
	series  models.Series
	names   []string
	columns map[string][]float64
}

func newTable(series models.Series) *Table {
	t := &Table{
		series:  series,
		columns: make(map[string][]float64),
	}
	// исходные колонки проверены заранее и всегда имеют нужную длину
	_ = t.add(ColOpen, series.Opens())
	_ = t.add(ColHigh, series.Highs())
	_ = t.add(ColLow, series.Lows())
	_ = t.add(ColClose, series.Closes())
	_ = t.add(ColVolume, series.Volumes())
	return t
}

func (t *Table) add(name string, data []float64) error {
	if len(data) != t.Len() {
		return &MalformedSeriesError{
			Field:  name,
			Reason: fmt.Sprintf("длина колонки %d не совпадает с числом строк %d", len(data), t.Len()),
		}
	}
	if _, ok := t.columns[name]; ok {
		return &MalformedSeriesError{Field: name, Reason: "колонка уже существует"}
	}
	t.names = append(t.names, name)
	t.columns[name] = data
	return nil
}

// Len возвращает число строк
func (t *Table) Len() int {
	return t.series.Len()
}

// Series возвращает исходный ряд
func (t *Table) Series() models.Series {
	return t.series
}

// Names возвращает имена колонок в порядке добавления
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Column возвращает копию колонки
func (t *Table) Column(name string) ([]float64, bool) {
	data, ok := t.columns[name]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(data))
	copy(out, data)
	return out, true
}

// Value возвращает значение колонки в строке i
func (t *Table) Value(name string, i int) (float64, error) {
	data, ok := t.columns[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrUnknownColumn)
	}
	if i < 0 || i >= len(data) {
		return 0, fmt.Errorf("строка %d вне диапазона [0, %d) колонки %s", i, len(data), name)
	}
	return data[i], nil
}

// Last возвращает значение колонки в последней строке
func (t *Table) Last(name string) (float64, error) {
	return t.Value(name, t.Len()-1)
}
