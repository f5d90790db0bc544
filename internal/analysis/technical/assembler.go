package technical

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

// inputs исходные колонки инструмента, общие для всех расчетов только на чтение
type inputs struct {
	open, high, low, close, volume []float64
}

// job расчет одного семейства индикаторов
type job struct {
	name string
	run  func(in inputs) ([]Column, error)
}

// Assembler строит расширенную таблицу индикаторов для одного инструмента
type Assembler struct {
	config config.AnalysisConfig
	limits Limits
	jobs   []job
}

// NewAssembler создает сборщик индикаторов
func NewAssembler(cfg config.AnalysisConfig) *Assembler {
	limits := DefaultLimits
	if cfg.MinRows > 0 {
		limits.MinRows = cfg.MinRows
	}
	if cfg.StableRows > 0 {
		limits.StableRows = cfg.StableRows
	}
	return &Assembler{
		config: cfg,
		limits: limits,
		jobs:   buildJobs(cfg.Indicators),
	}
}

// Assemble проверяет ряд и рассчитывает все индикаторы.
// Ошибка любого расчета прерывает построение: частичная таблица не возвращается.
func (a *Assembler) Assemble(ctx context.Context, series models.Series) (*Table, error) {
	warning, err := a.limits.Validate(series)
	if err != nil {
		return nil, err
	}
	if warning != nil {
		logger.Warn("Мало данных для устойчивого расчета индикаторов",
			zap.String("symbol", series.Symbol),
			zap.Int("rows", warning.Rows),
			zap.Int("recommended", warning.Recommended))
	}

	in := inputs{
		open:   series.Opens(),
		high:   series.Highs(),
		low:    series.Lows(),
		close:  series.Closes(),
		volume: series.Volumes(),
	}

	// Каждый расчет пишет только в свою ячейку
	results := make([][]Column, len(a.jobs))

	if a.config.Sequential {
		for i, j := range a.jobs {
			if err := ctx.Err(); err != nil {
				return nil, &AnalysisFailedError{Indicator: j.name, Err: err}
			}
			cols, err := runJob(j, in)
			if err != nil {
				return nil, err
			}
			results[i] = cols
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, j := range a.jobs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return &AnalysisFailedError{Indicator: j.name, Err: err}
				}
				cols, err := runJob(j, in)
				if err != nil {
					return err
				}
				results[i] = cols
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	// Единственный писатель: слияние в фиксированном порядке
	table := newTable(series)
	for i, cols := range results {
		for _, c := range cols {
			if err := table.add(c.Name, c.Data); err != nil {
				return nil, &AnalysisFailedError{Indicator: a.jobs[i].name, Err: err}
			}
		}
	}

	logger.Debug("Индикаторы рассчитаны",
		zap.String("symbol", series.Symbol),
		zap.Int("rows", table.Len()),
		zap.Int("columns", len(table.names)))

	return table, nil
}

// runJob выполняет расчет, превращая ошибку или панику в AnalysisFailedError
func runJob(j job, in inputs) (cols []Column, err error) {
	defer func() {
		if r := recover(); r != nil {
			cols = nil
			err = &AnalysisFailedError{Indicator: j.name, Err: fmt.Errorf("паника: %v", r)}
		}
	}()

	cols, err = j.run(in)
	if err != nil {
		return nil, &AnalysisFailedError{Indicator: j.name, Err: err}
	}
	return cols, nil
}

// buildJobs описывает все семейства индикаторов в порядке колонок таблицы
func buildJobs(p config.IndicatorConfig) []job {
	return []job{
		{"MA", func(in inputs) ([]Column, error) {
			cols := make([]Column, 0, len(p.MA.Windows))
			for _, w := range p.MA.Windows {
				v, err := MA(in.close, w)
				if err != nil {
					return nil, err
				}
				cols = append(cols, Column{MAColumn(w), v})
			}
			return cols, nil
		}},
		{"MACD", func(in inputs) ([]Column, error) {
			dif, dea, hist, err := MACD(in.close, p.MACD.Short, p.MACD.Long, p.MACD.Signal)
			return columns(err, Column{ColDIF, dif}, Column{ColDEA, dea}, Column{ColMACD, hist})
		}},
		{"KDJ", func(in inputs) ([]Column, error) {
			k, d, j, err := KDJ(in.high, in.low, in.close, p.KDJ.N, p.KDJ.M1, p.KDJ.M2)
			return columns(err, Column{ColK, k}, Column{ColD, d}, Column{ColJ, j})
		}},
		{"BOLL", func(in inputs) ([]Column, error) {
			up, mid, low, err := BOLL(in.close, p.BOLL.N, p.BOLL.Width)
			return columns(err, Column{ColBollUp, up}, Column{ColBollMid, mid}, Column{ColBollLow, low})
		}},
		{"RSI", func(in inputs) ([]Column, error) {
			rsi, err := RSI(in.close, p.RSI.N)
			return columns(err, Column{ColRSI, rsi})
		}},
		{"PSY", func(in inputs) ([]Column, error) {
			psy, psyma, err := PSY(in.close, p.PSY.N, p.PSY.M)
			return columns(err, Column{ColPSY, psy}, Column{ColPSYMA, psyma})
		}},
		{"WR", func(in inputs) ([]Column, error) {
			wr, err := WR(in.high, in.low, in.close, p.WR.N)
			if err != nil {
				return nil, err
			}
			wr1, err := WR(in.high, in.low, in.close, p.WR.N1)
			return columns(err, Column{ColWR, wr}, Column{ColWR1, wr1})
		}},
		{"BIAS", func(in inputs) ([]Column, error) {
			names := []string{ColBIAS1, ColBIAS2, ColBIAS3}
			cols := make([]Column, 0, len(names))
			for i, l := range []int{p.BIAS.L1, p.BIAS.L2, p.BIAS.L3} {
				v, err := BIAS(in.close, l)
				if err != nil {
					return nil, err
				}
				cols = append(cols, Column{names[i], v})
			}
			return cols, nil
		}},
		{"CCI", func(in inputs) ([]Column, error) {
			cci, err := CCI(in.high, in.low, in.close, p.CCI.N)
			return columns(err, Column{ColCCI, cci})
		}},
		{"ATR", func(in inputs) ([]Column, error) {
			atr, err := ATR(in.high, in.low, in.close, p.ATR.N)
			return columns(err, Column{ColATR, atr})
		}},
		{"EMV", func(in inputs) ([]Column, error) {
			emv, maemv, err := EMV(in.high, in.low, in.volume, p.EMV.N, p.EMV.M)
			return columns(err, Column{ColEMV, emv}, Column{ColMAEMV, maemv})
		}},
		{"DPO", func(in inputs) ([]Column, error) {
			dpo, madpo, err := DPO(in.close, p.DPO.M1, p.DPO.M2, p.DPO.M3)
			return columns(err, Column{ColDPO, dpo}, Column{ColMADPO, madpo})
		}},
		{"TRIX", func(in inputs) ([]Column, error) {
			trix, trma, err := TRIX(in.close, p.TRIX.M1, p.TRIX.M2)
			return columns(err, Column{ColTRIX, trix}, Column{ColTRMA, trma})
		}},
		{"DMI", func(in inputs) ([]Column, error) {
			pdi, mdi, adx, adxr, err := DMI(in.high, in.low, in.close, p.DMI.M1, p.DMI.M2)
			return columns(err, Column{ColPDI, pdi}, Column{ColMDI, mdi}, Column{ColADX, adx}, Column{ColADXR, adxr})
		}},
		{"VR", func(in inputs) ([]Column, error) {
			vr, err := VR(in.close, in.volume, p.VR.N)
			return columns(err, Column{ColVR, vr})
		}},
		{"BRAR", func(in inputs) ([]Column, error) {
			ar, br, err := BRAR(in.open, in.high, in.low, in.close, p.BRAR.N)
			return columns(err, Column{ColAR, ar}, Column{ColBR, br})
		}},
		{"ROC", func(in inputs) ([]Column, error) {
			roc, maroc, err := ROC(in.close, p.ROC.N, p.ROC.M)
			return columns(err, Column{ColROC, roc}, Column{ColMAROC, maroc})
		}},
		{"MTM", func(in inputs) ([]Column, error) {
			mtm, mtmma, err := MTM(in.close, p.MTM.N, p.MTM.M)
			return columns(err, Column{ColMTM, mtm}, Column{ColMTMMA, mtmma})
		}},
		{"DMA", func(in inputs) ([]Column, error) {
			dif, difma, err := DMA(in.close, p.DMA.N1, p.DMA.N2, p.DMA.M)
			return columns(err, Column{ColDMADIF, dif}, Column{ColDMADIFMA, difma})
		}},
	}
}

func columns(err error, cols ...Column) ([]Column, error) {
	if err != nil {
		return nil, err
	}
	return cols, nil
}
