package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

const (
	testnetURL = "https://testnet.binance.vision"
	// maxKlines предел одного запроса свечей Binance
	maxKlines = 1000
)

// BinanceSource получает дневные свечи со спотового рынка Binance
type BinanceSource struct {
	spot     *binance.Client
	interval string
}

// NewBinanceSource создает источник свечей Binance
func NewBinanceSource(cfg config.BinanceConfig, interval string) *BinanceSource {
	spotClient := binance.NewClient(cfg.APIKey, cfg.APISecret)

	switch {
	case cfg.BaseURL != "":
		spotClient.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.Testnet:
		// Для спот-клиента testnet задается базовым URL
		spotClient.BaseURL = testnetURL
	}

	if interval == "" {
		interval = "1d"
	}

	return &BinanceSource{
		spot:     spotClient,
		interval: interval,
	}
}

// GetDailyCandles получает последние count свечей инструмента
func (s *BinanceSource) GetDailyCandles(ctx context.Context, code string, count int) (models.Series, error) {
	symbol := strings.ToUpper(code)
	if count > maxKlines {
		logger.Warn("Запрошено больше свечей, чем отдает Binance", zap.String("symbol", symbol), zap.Int("count", count))
		count = maxKlines
	}

	klines, err := s.spot.NewKlinesService().
		Symbol(symbol).
		Interval(s.interval).
		Limit(count).
		Do(ctx)
	if err != nil {
		return models.Series{}, fmt.Errorf("ошибка получения свечей %s: %w", symbol, err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := parseKline(k)
		if err != nil {
			return models.Series{}, fmt.Errorf("ошибка разбора свечи %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}

	logger.Debug("Получены свечи Binance", zap.String("symbol", symbol), zap.Int("count", len(candles)))
	return models.Series{Symbol: code, Candles: candles}, nil
}

// parseKline переводит строковые поля свечи Binance в числа
func parseKline(k *binance.Kline) (models.Candle, error) {
	fields := []struct {
		name string
		raw  string
	}{
		{"open", k.Open},
		{"high", k.High},
		{"low", k.Low},
		{"close", k.Close},
		{"volume", k.Volume},
	}

	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("поле %s %q: %w", f.name, f.raw, err)
		}
		values[i] = v
	}

	return models.Candle{
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
