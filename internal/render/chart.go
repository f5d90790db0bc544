package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/technical"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

// ErrNothingToDraw в таблице нет ни одного определенного значения цены
var ErrNothingToDraw = errors.New("нет данных для графика")

const (
	defaultWidth       = 1200
	defaultPanelHeight = 260
	// при 72 точках на дюйм размер в пунктах совпадает с размером в пикселях
	chartDPI   = 72
	dateTicks  = 6
	barWidth   = 2
	lineWidth  = 1.2
	closeWidth = 2
)

var (
	colorFigure  = rgb(0xF0F2F6)
	colorAxes    = rgb(0xF8F9FA)
	colorGrid    = color.RGBA{0x66, 0x66, 0x66, 0x40}
	colorPrimary = rgb(0x2E4053)
	colorRed     = rgb(0xE74C3C)
	colorGreen   = rgb(0x2ECC71)
	colorBlue    = rgb(0x3498DB)
	colorYellow  = rgb(0xF4D03F)
	colorPurple  = rgb(0x8E44AD)
)

// line одна линия панели
type line struct {
	column string
	label  string
	color  color.Color
	width  float64
	dashed bool
}

// panel одна панель графика; histogram рисуется столбцами вверх и вниз от нуля
type panel struct {
	title     string
	lines     []line
	histogram string
	levels    []level
}

// level горизонтальная линия уровня
type level struct {
	value float64
	color color.Color
}

// chartPanels панели сверху вниз; заголовок первой дополняется названием инструмента
var chartPanels = []panel{
	{
		title: "Цена, MA и BOLL",
		lines: []line{
			{column: technical.ColClose, label: "Закрытие", color: colorPrimary, width: closeWidth},
			{column: technical.ColMA5, label: "MA5", color: colorRed},
			{column: technical.ColMA10, label: "MA10", color: colorBlue},
			{column: technical.ColMA20, label: "MA20", color: colorGreen},
			{column: technical.ColBollUp, label: "BOLL верхняя", color: colorRed, dashed: true},
			{column: technical.ColBollMid, label: "BOLL средняя", color: colorYellow, dashed: true},
			{column: technical.ColBollLow, label: "BOLL нижняя", color: colorGreen, dashed: true},
		},
	},
	{
		title: "MACD",
		lines: []line{
			{column: technical.ColDIF, label: "DIF", color: colorRed},
			{column: technical.ColDEA, label: "DEA", color: colorGreen},
		},
		histogram: technical.ColMACD,
	},
	{
		title: "KDJ (стохастик)",
		lines: []line{
			{column: technical.ColK, label: "K", color: colorRed},
			{column: technical.ColD, label: "D", color: colorGreen},
			{column: technical.ColJ, label: "J", color: colorBlue},
		},
	},
	{
		title: "RSI (индекс относительной силы)",
		lines: []line{
			{column: technical.ColRSI, label: "RSI", color: colorPurple},
		},
		levels: []level{{80, colorRed}, {20, colorGreen}},
	},
	{
		title: "BIAS (отклонение от средней)",
		lines: []line{
			{column: technical.ColBIAS1, label: "BIAS1", color: colorRed},
			{column: technical.ColBIAS2, label: "BIAS2", color: colorGreen},
			{column: technical.ColBIAS3, label: "BIAS3", color: colorBlue},
		},
	},
	{
		title: "DMI (индекс направленного движения)",
		lines: []line{
			{column: technical.ColPDI, label: "PDI", color: colorRed},
			{column: technical.ColMDI, label: "MDI", color: colorGreen},
			{column: technical.ColADX, label: "ADX", color: colorBlue},
			{column: technical.ColADXR, label: "ADXR", color: colorYellow},
		},
	},
	{
		title: "TRIX (тройная экспоненциальная средняя)",
		lines: []line{
			{column: technical.ColTRIX, label: "TRIX", color: colorRed},
			{column: technical.ColTRMA, label: "TRMA", color: colorGreen},
		},
	},
	{
		title: "ROC (скорость изменения)",
		lines: []line{
			{column: technical.ColROC, label: "ROC", color: colorRed},
			{column: technical.ColMAROC, label: "MAROC", color: colorGreen},
		},
	},
	{
		title: "Индикаторы объема",
		lines: []line{
			{column: technical.ColVR, label: "VR", color: colorRed},
			{column: technical.ColAR, label: "AR", color: colorGreen},
			{column: technical.ColBR, label: "BR", color: colorBlue},
		},
	},
	{
		title: "MTM (моментум)",
		lines: []line{
			{column: technical.ColMTM, label: "MTM", color: colorRed},
			{column: technical.ColMTMMA, label: "MTMMA", color: colorGreen},
		},
	},
	{
		title: "DMA (разница средних)",
		lines: []line{
			{column: technical.ColDMADIF, label: "DIF_DMA", color: colorRed},
			{column: technical.ColDMADIFMA, label: "DIFMA_DMA", color: colorGreen},
		},
	},
}

// ChartRenderer рисует панели индикаторов друг под другом в один PNG
type ChartRenderer struct {
	width       int
	panelHeight int
}

// NewChartRenderer создает построитель графиков
func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{width: defaultWidth, panelHeight: defaultPanelHeight}
}

// Render строит PNG по таблице индикаторов.
// Отсутствующие колонки пропускаются, неопределенные точки разрывают линию.
func (r *ChartRenderer) Render(inst models.Instrument, table *technical.Table) ([]byte, error) {
	plots, err := r.plots(inst, table)
	if err != nil {
		return nil, err
	}

	canvas := vgimg.NewWith(
		vgimg.UseWH(vg.Length(r.width), vg.Length(r.panelHeight*len(plots))),
		vgimg.UseDPI(chartDPI),
		vgimg.UseBackgroundColor(colorFigure),
	)

	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      1,
		PadX:      vg.Points(8),
		PadY:      vg.Points(12),
		PadTop:    vg.Points(8),
		PadBottom: vg.Points(8),
		PadLeft:   vg.Points(8),
		PadRight:  vg.Points(16),
	}

	grid := make([][]*plot.Plot, len(plots))
	for i, p := range plots {
		grid[i] = []*plot.Plot{p}
	}
	canvases := plot.Align(grid, tiles, draw.New(canvas))
	for i := range grid {
		grid[i][0].Draw(canvases[i][0])
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("ошибка кодирования PNG %s: %w", inst.Code, err)
	}
	return buf.Bytes(), nil
}

// plots строит по одной панели на каждый элемент chartPanels
func (r *ChartRenderer) plots(inst models.Instrument, table *technical.Table) ([]*plot.Plot, error) {
	if table == nil || table.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", inst.Code, ErrNothingToDraw)
	}
	closes, _ := table.Column(technical.ColClose)
	if len(segments(closes)) == 0 {
		return nil, fmt.Errorf("%s: %w", inst.Code, ErrNothingToDraw)
	}

	ticks := dateTicker(table.Series())
	out := make([]*plot.Plot, 0, len(chartPanels))
	for i, pn := range chartPanels {
		title := pn.title
		if i == 0 {
			name := inst.Code
			if inst.Name != "" {
				name = fmt.Sprintf("%s (%s)", inst.Name, inst.Code)
			}
			title = name + ": " + pn.title
		}
		p, err := buildPanel(title, pn, table, ticks)
		if err != nil {
			return nil, fmt.Errorf("панель %q %s: %w", pn.title, inst.Code, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func buildPanel(title string, pn panel, table *technical.Table, ticks plot.Ticker) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.BackgroundColor = colorAxes
	p.X.Min, p.X.Max = 0, float64(table.Len()-1)
	p.X.Tick.Marker = ticks
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Font.Size = vg.Points(9)

	g := plotter.NewGrid()
	g.Vertical.Color, g.Horizontal.Color = colorGrid, colorGrid
	g.Vertical.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	g.Horizontal.Dashes = g.Vertical.Dashes
	p.Add(g)

	if pn.histogram != "" {
		if err := addHistogram(p, pn.histogram, table); err != nil {
			return nil, err
		}
	}

	for _, lv := range pn.levels {
		v := lv.value
		f := plotter.NewFunction(func(float64) float64 { return v })
		f.Color = lv.color
		f.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(f)
	}

	for _, l := range pn.lines {
		col, ok := table.Column(l.column)
		if !ok {
			continue
		}
		var legend *plotter.Line
		for _, seg := range segments(col) {
			ln, err := plotter.NewLine(seg)
			if err != nil {
				return nil, fmt.Errorf("линия %s: %w", l.column, err)
			}
			ln.Color = l.color
			ln.Width = vg.Points(lineWidth)
			if l.width > 0 {
				ln.Width = vg.Points(l.width)
			}
			if l.dashed {
				ln.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
			}
			p.Add(ln)
			if legend == nil {
				legend = ln
			}
		}
		if legend != nil {
			p.Legend.Add(l.label, legend)
		}
	}
	return p, nil
}

// addHistogram рисует положительные столбцы красным, отрицательные зеленым
func addHistogram(p *plot.Plot, column string, table *technical.Table) error {
	col, ok := table.Column(column)
	if !ok {
		return nil
	}
	up := make(plotter.Values, len(col))
	down := make(plotter.Values, len(col))
	for i, v := range col {
		switch {
		case !finite(v):
		case v > 0:
			up[i] = v
		case v < 0:
			down[i] = v
		}
	}

	for i, part := range []struct {
		values plotter.Values
		color  color.Color
	}{{up, colorRed}, {down, colorGreen}} {
		bars, err := plotter.NewBarChart(part.values, vg.Points(barWidth))
		if err != nil {
			return fmt.Errorf("гистограмма %s: %w", column, err)
		}
		bars.Color = part.color
		bars.LineStyle.Width = 0
		p.Add(bars)
		if i == 0 {
			p.Legend.Add(column, bars)
		}
	}
	return nil
}

// segments режет колонку на участки подряд идущих определенных значений
func segments(col []float64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i, v := range col {
		if !finite(v) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(i), Y: v})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// dateTicker подписывает ось X датами свечей вместо номеров строк
func dateTicker(series models.Series) plot.Ticker {
	times := series.Times()
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if len(times) == 0 {
			return nil
		}
		lo := int(math.Max(0, math.Ceil(min)))
		hi := int(math.Min(float64(len(times)-1), math.Floor(max)))
		step := (hi-lo)/dateTicks + 1

		var ticks []plot.Tick
		for i := lo; i <= hi; i += step {
			ticks = append(ticks, plot.Tick{Value: float64(i), Label: times[i].Format("2006-01-02")})
		}
		return ticks
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func rgb(hex uint32) color.RGBA {
	return color.RGBA{R: uint8(hex >> 16), G: uint8(hex >> 8), B: uint8(hex), A: 0xff}
}
