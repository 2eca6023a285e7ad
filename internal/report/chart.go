package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/fcw/internal/db"
)

// RenderSpeedChart writes an HTML line chart of speed, cruise target and
// threat TTC against time since the first cycle. Cycles without a threat
// leave a gap in the TTC series.
func RenderSpeedChart(w io.Writer, title string, cycles []db.CycleRow) error {
	xs := make([]string, 0, len(cycles))
	speed := make([]opts.LineData, 0, len(cycles))
	target := make([]opts.LineData, 0, len(cycles))
	ttc := make([]opts.LineData, 0, len(cycles))
	brakes := 0

	for _, c := range cycles {
		elapsed := c.Timestamp.Sub(cycles[0].Timestamp).Seconds()
		xs = append(xs, fmt.Sprintf("%.1f", elapsed))
		speed = append(speed, opts.LineData{Value: c.SpeedMps})
		target = append(target, opts.LineData{Value: c.TargetSpeedMps})
		if c.ThreatTTC != nil {
			ttc = append(ttc, opts.LineData{Value: *c.ThreatTTC})
		} else {
			ttc = append(ttc, opts.LineData{Value: "-"})
		}
		if c.BrakeActive {
			brakes++
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "FCW speed profile", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("cycles=%d brake_events=%d", len(cycles), brakes)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m/s | s", NameLocation: "middle", NameGap: 30}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	noSymbol := charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})
	line.SetXAxis(xs).
		AddSeries("speed (m/s)", speed, noSymbol).
		AddSeries("target (m/s)", target, noSymbol, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"})).
		AddSeries("threat TTC (s)", ttc, noSymbol)

	return line.Render(w)
}
