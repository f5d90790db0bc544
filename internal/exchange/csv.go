package exchange

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

const csvDateLayout = "2006-01-02"

// csvColumns обязательные колонки файла
var csvColumns = []string{"date", "open", "high", "low", "close", "volume"}

// CSVSource читает дневные свечи из файлов <dir>/<code>.csv
type CSVSource struct {
	dir string
}

// NewCSVSource создает источник свечей из каталога CSV-файлов
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// GetDailyCandles читает файл инструмента и возвращает последние count свечей
func (s *CSVSource) GetDailyCandles(ctx context.Context, code string, count int) (models.Series, error) {
	if err := ctx.Err(); err != nil {
		return models.Series{}, err
	}

	path := filepath.Join(s.dir, code+".csv")
	f, err := os.Open(path)
	if err != nil {
		return models.Series{}, fmt.Errorf("ошибка открытия %s: %w", path, err)
	}
	defer f.Close()

	candles, err := readCandles(f)
	if err != nil {
		return models.Series{}, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}

	if count > 0 && len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return models.Series{Symbol: code, Candles: candles}, nil
}

func readCandles(r io.Reader) ([]models.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("нет колонки %s", c)
		}
	}

	var candles []models.Candle
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		t, err := time.Parse(csvDateLayout, rec[index["date"]])
		if err != nil {
			return nil, fmt.Errorf("строка %d: %w", line, err)
		}

		values := make(map[string]float64, len(csvColumns)-1)
		for _, c := range csvColumns[1:] {
			v, err := strconv.ParseFloat(rec[index[c]], 64)
			if err != nil {
				return nil, fmt.Errorf("строка %d, колонка %s: %w", line, c, err)
			}
			values[c] = v
		}

		candles = append(candles, models.Candle{
			Time:   t,
			Open:   values["open"],
			High:   values["high"],
			Low:    values["low"],
			Close:  values["close"],
			Volume: values["volume"],
		})
	}
	return candles, nil
}
