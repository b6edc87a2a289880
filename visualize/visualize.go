// Package visualize renders forecast results as an HTML page of line charts,
// one panel per example, with the historical context, the forecast mean, and
// optional ground truth and quantile bounds.
package visualize

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var ErrNoPanels = errors.New("nothing to visualize")

// gap is the echarts marker for a missing point, used to offset the forecast
// series past the context span.
const gap = "-"

// Panel holds the series of one forecast chart. Context is required; the
// remaining series are optional and are plotted over the horizon span
// directly after the context.
type Panel struct {
	Title       string
	Context     []float64
	Forecast    []float64
	GroundTruth []float64
	Lower       []float64
	Upper       []float64
}

// Line builds the chart for one panel. The x axis is the step index across
// context plus horizon.
func Line(p Panel) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: p.Title,
			},
		),
	)

	total := len(p.Context) + len(p.Forecast)
	x := make([]int, 0, total)
	for i := 0; i < total; i++ {
		x = append(x, i)
	}

	line = line.SetXAxis(x).
		AddSeries("Context", contextData(p.Context, len(p.Forecast))).
		AddSeries("Forecast", horizonData(p.Forecast, len(p.Context)))
	if len(p.GroundTruth) > 0 {
		line = line.AddSeries("Ground Truth", horizonData(p.GroundTruth, len(p.Context)))
	}
	if len(p.Lower) > 0 && len(p.Upper) > 0 {
		line = line.
			AddSeries("Lower", horizonData(p.Lower, len(p.Context))).
			AddSeries("Upper", horizonData(p.Upper, len(p.Context)))
	}
	return line
}

// WritePage assembles all panels into a single page and writes it as HTML.
func WritePage(path string, panels []Panel) error {
	if len(panels) == 0 {
		return ErrNoPanels
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("unable to create visualization directory %s, %w", dir, err)
		}
	}

	page := components.NewPage()
	for _, p := range panels {
		page.AddCharts(Line(p))
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create visualization file %s, %w", path, err)
	}
	defer file.Close()
	return page.Render(io.MultiWriter(file))
}

func contextData(context []float64, horizonLen int) []opts.LineData {
	data := make([]opts.LineData, 0, len(context)+horizonLen)
	for _, val := range context {
		data = append(data, opts.LineData{Value: val})
	}
	for i := 0; i < horizonLen; i++ {
		data = append(data, opts.LineData{Value: gap})
	}
	return data
}

func horizonData(horizon []float64, contextLen int) []opts.LineData {
	data := make([]opts.LineData, 0, contextLen+len(horizon))
	for i := 0; i < contextLen; i++ {
		data = append(data, opts.LineData{Value: gap})
	}
	for _, val := range horizon {
		data = append(data, opts.LineData{Value: val})
	}
	return data
}
