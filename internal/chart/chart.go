// Package chart renders report data as images with go-chart.
package chart

import (
	"errors"
	"fmt"
	"io"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// Format selects the image encoding.
type Format string

// Supported formats.
const (
	SVG Format = "svg"
	PNG Format = "png"
)

// ErrNotEnoughData is returned when there is nothing meaningful to draw.
var ErrNotEnoughData = errors.New("not enough data to draw a chart")

var (
	incomeColor   = drawing.Color{R: 78, G: 205, B: 196, A: 255}
	expenseColor  = drawing.Color{R: 255, G: 107, B: 107, A: 255}
	savingsColor  = drawing.Color{R: 77, G: 184, B: 255, A: 255}
	barWidth      = 40
	barSpacing    = 20
	minChartWidth = 600
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/svg+xml"
}

func (f Format) provider() (gochart.RendererProvider, error) {
	switch f {
	case SVG, "":
		return gochart.SVG, nil
	case PNG:
		return gochart.PNG, nil
	default:
		return nil, fmt.Errorf("unsupported chart format %q", f)
	}
}

// Trend draws income, expenses and savings per month as lines. At least two
// months are required.
func Trend(w io.Writer, points []model.TrendPoint, format Format) error {
	if len(points) < 2 {
		return ErrNotEnoughData
	}
	provider, err := format.provider()
	if err != nil {
		return err
	}

	xs := make([]float64, len(points))
	income := make([]float64, len(points))
	expenses := make([]float64, len(points))
	savings := make([]float64, len(points))
	ticks := make([]gochart.Tick, len(points))

	lo, hi := 0.0, 1.0
	for i, p := range points {
		xs[i] = float64(i)
		income[i] = p.Income.InexactFloat64()
		expenses[i] = p.Expenses.InexactFloat64()
		savings[i] = p.Savings.InexactFloat64()
		ticks[i] = gochart.Tick{Value: float64(i), Label: p.Month}
		for _, v := range []float64{income[i], expenses[i], savings[i]} {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}

	graph := gochart.Chart{
		Title: "Monthly trend",
		Background: gochart.Style{
			Padding: gochart.Box{
				Top:    50,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  900,
		Height: 400,
		XAxis: gochart.XAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: float64(len(points) - 1)},
			Ticks: ticks,
		},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(v interface{}) string {
				if vf, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", vf)
				}
				return ""
			},
		},
		Series: []gochart.Series{
			line("Income", xs, income, incomeColor),
			line("Expenses", xs, expenses, expenseColor),
			line("Savings", xs, savings, savingsColor),
		},
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	if err := graph.Render(provider, w); err != nil {
		return fmt.Errorf("failed to render trend chart: %w", err)
	}
	return nil
}

func line(name string, xs, ys []float64, color drawing.Color) gochart.ContinuousSeries {
	return gochart.ContinuousSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style: gochart.Style{
			StrokeColor: color,
			StrokeWidth: 2,
		},
	}
}

// Breakdown draws one bar per category.
func Breakdown(w io.Writer, title string, shares []model.CategoryShare, format Format) error {
	var bars []gochart.Value
	for _, s := range shares {
		if !s.Amount.IsPositive() {
			continue
		}
		bars = append(bars, gochart.Value{
			Label: s.Name,
			Value: s.Amount.InexactFloat64(),
			Style: gochart.Style{
				FillColor:   expenseColor,
				StrokeColor: expenseColor,
			},
		})
	}
	if len(bars) == 0 {
		return ErrNotEnoughData
	}
	provider, err := format.provider()
	if err != nil {
		return err
	}

	barChart := gochart.BarChart{
		Title: title,
		Background: gochart.Style{
			Padding: gochart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:      max(minChartWidth, len(bars)*(barWidth+barSpacing)+120),
		Height:     400,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Bars:       bars,
	}
	barChart.YAxis.ValueFormatter = func(v interface{}) string {
		if vf, ok := v.(float64); ok {
			return fmt.Sprintf("%.2f", vf)
		}
		return ""
	}

	if err := barChart.Render(provider, w); err != nil {
		return fmt.Errorf("failed to render breakdown chart: %w", err)
	}
	return nil
}
