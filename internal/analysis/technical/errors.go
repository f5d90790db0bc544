package technical

import (
	"errors"
	"fmt"
)

// Базовые ошибки для сопоставления через errors.Is
var (
	ErrInsufficientData = errors.New("недостаточно данных")
	ErrMalformedSeries  = errors.New("некорректный ряд")
	ErrAnalysisFailed   = errors.New("ошибка расчета индикаторов")
	ErrUnknownColumn    = errors.New("колонка отсутствует")
)

// InsufficientDataError возвращается, когда строк меньше минимально необходимого
type InsufficientDataError struct {
	Rows     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("недостаточно данных: %d строк, требуется не менее %d", e.Rows, e.Required)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// MalformedSeriesError описывает ряд неверной формы или с недопустимыми значениями
type MalformedSeriesError struct {
	Field  string
	Reason string
}

func (e *MalformedSeriesError) Error() string {
	return fmt.Sprintf("некорректный ряд %s: %s", e.Field, e.Reason)
}

func (e *MalformedSeriesError) Is(target error) bool {
	return target == ErrMalformedSeries
}

// AnalysisFailedError означает, что расчет одного из индикаторов не удался
// и таблица для инструмента не построена
type AnalysisFailedError struct {
	Indicator string
	Err       error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("ошибка расчета индикатора %s: %v", e.Indicator, e.Err)
}

func (e *AnalysisFailedError) Unwrap() error {
	return e.Err
}

func (e *AnalysisFailedError) Is(target error) bool {
	return target == ErrAnalysisFailed
}

// LowConfidenceWarning сообщает, что истории мало для устойчивых значений
// длинных индикаторов. Не является ошибкой: расчет продолжается.
type LowConfidenceWarning struct {
	Rows        int
	Recommended int
}

func (w *LowConfidenceWarning) String() string {
	return fmt.Sprintf("всего %d строк, для устойчивых значений рекомендуется не менее %d", w.Rows, w.Recommended)
}
