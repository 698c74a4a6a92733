package charts

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/testrunner/dashboard/internal/history"
)

const labelLayout = "Jan 02 15:04"

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// PassRateChart draws the pass rate of each recorded run. Entries are
// expected newest first, as returned by history.Store.
func (g *Generator) PassRateChart(entries []history.Entry) string {
	if len(entries) == 0 {
		return ""
	}
	entries = oldestFirst(entries)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Pass Rate Trend"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100}),
		charts.WithInitializationOpts(opts.Initialization{
			Height: "200px",
			Width:  "100%",
		}),
	)

	xAxis := make([]string, len(entries))
	yAxis := make([]opts.LineData, len(entries))
	for i, e := range entries {
		xAxis[i] = e.RecordedAt.Format(labelLayout)
		yAxis[i] = opts.LineData{Value: e.PassRate()}
	}

	line.SetXAxis(xAxis).
		AddSeries("Pass Rate %", yAxis).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return g.renderToString(line)
}

// StatusChart stacks passed and failed counts per recorded run.
func (g *Generator) StatusChart(entries []history.Entry) string {
	if len(entries) == 0 {
		return ""
	}
	entries = oldestFirst(entries)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Results per Run"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Height: "200px",
			Width:  "100%",
		}),
	)

	xAxis := make([]string, len(entries))
	passed := make([]opts.BarData, len(entries))
	failed := make([]opts.BarData, len(entries))
	for i, e := range entries {
		xAxis[i] = e.RecordedAt.Format(labelLayout)
		passed[i] = opts.BarData{Value: e.Passed}
		failed[i] = opts.BarData{Value: e.Failed}
	}

	bar.SetXAxis(xAxis).
		AddSeries("Passed", passed, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2e7d32"})).
		AddSeries("Failed", failed, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#c62828"})).
		SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "runs"}))

	return g.renderToString(bar)
}

// PassRates returns the pass rate of each entry, oldest first, for Sparkline.
func PassRates(entries []history.Entry) []float64 {
	entries = oldestFirst(entries)
	values := make([]float64, len(entries))
	for i, e := range entries {
		values[i] = e.PassRate()
	}
	return values
}

func (g *Generator) Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	width := 100
	height := 30

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		max = min + 1
	}

	// a single value is drawn as a flat line
	if len(values) == 1 {
		values = []float64{values[0], values[0]}
	}

	points := make([]string, len(values))
	for i, v := range values {
		x := float64(i) * float64(width) / float64(len(values)-1)
		y := float64(height) - ((v - min) / (max - min) * float64(height))
		points[i] = fmt.Sprintf("%.1f,%.1f", x, y)
	}

	return fmt.Sprintf(`<svg width="%d" height="%d" class="sparkline"><polyline points="%s" fill="none" stroke="currentColor" stroke-width="2"/></svg>`,
		width, height, strings.Join(points, " "))
}

// Renderer is anything that can render itself to an io.Writer.
type Renderer interface {
	Render(w io.Writer) error
}

func (g *Generator) renderToString(c Renderer) string {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		log.Printf("charts.render: failed error=%v", err)
		return ""
	}
	return buf.String()
}

func oldestFirst(entries []history.Entry) []history.Entry {
	out := make([]history.Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}
