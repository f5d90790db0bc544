package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/pkg/logger"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

// CandleSource источник дневных свечей
type CandleSource interface {
	GetDailyCandles(ctx context.Context, code string, count int) (models.Series, error)
}

// CandleSaver сохраняет свечи
type CandleSaver interface {
	SaveCandles(ctx context.Context, series models.Series) error
}

// ArchivingSource сохраняет каждый полученный ряд в архив.
// Ошибка записи только логируется, ряд возвращается вызывающему.
type ArchivingSource struct {
	source CandleSource
	saver  CandleSaver
}

// NewArchivingSource оборачивает источник архивом свечей
func NewArchivingSource(source CandleSource, saver CandleSaver) *ArchivingSource {
	return &ArchivingSource{source: source, saver: saver}
}

// GetDailyCandles получает ряд из источника и архивирует его
func (a *ArchivingSource) GetDailyCandles(ctx context.Context, code string, count int) (models.Series, error) {
	series, err := a.source.GetDailyCandles(ctx, code, count)
	if err != nil || series.Empty() {
		return series, err
	}

	archived := series
	if archived.Symbol == "" {
		archived.Symbol = code
	}
	if err := a.saver.SaveCandles(ctx, archived); err != nil {
		logger.Warn("Предупреждение: свечи не сохранены в архив", zap.String("symbol", code), zap.Error(err))
	}
	return series, nil
}
