package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/fcw/internal/db"
)

const (
	plotWidth  = 12 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// newSpeedPlot draws speed and cruise target against time, with a point at
// every brake event.
func newSpeedPlot(title string, cycles []db.CycleRow) (*plot.Plot, error) {
	if len(cycles) == 0 {
		return nil, fmt.Errorf("no cycles to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Speed (m/s)"

	speedPts := make(plotter.XYs, 0, len(cycles))
	targetPts := make(plotter.XYs, 0, len(cycles))
	var brakePts plotter.XYs
	for _, c := range cycles {
		x := c.Timestamp.Sub(cycles[0].Timestamp).Seconds()
		speedPts = append(speedPts, plotter.XY{X: x, Y: c.SpeedMps})
		targetPts = append(targetPts, plotter.XY{X: x, Y: c.TargetSpeedMps})
		if c.BrakeActive {
			brakePts = append(brakePts, plotter.XY{X: x, Y: c.SpeedMps})
		}
	}

	speedLine, err := plotter.NewLine(speedPts)
	if err != nil {
		return nil, err
	}
	speedLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	speedLine.Width = vg.Points(1.5)
	p.Add(speedLine)
	p.Legend.Add("speed", speedLine)

	targetLine, err := plotter.NewLine(targetPts)
	if err != nil {
		return nil, err
	}
	targetLine.Color = color.RGBA{R: 127, G: 127, B: 127, A: 255}
	targetLine.Width = vg.Points(1)
	targetLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(targetLine)
	p.Legend.Add("target", targetLine)

	if len(brakePts) > 0 {
		brakes, err := plotter.NewScatter(brakePts)
		if err != nil {
			return nil, err
		}
		brakes.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		brakes.Radius = vg.Points(3)
		p.Add(brakes)
		p.Legend.Add("brake", brakes)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

// SavePlot writes the speed profile to path; the format follows the file
// extension (.png, .svg, .pdf).
func SavePlot(path, title string, cycles []db.CycleRow) error {
	p, err := newSpeedPlot(title, cycles)
	if err != nil {
		return err
	}
	return p.Save(plotWidth, plotHeight, path)
}

// WritePlotPNG writes the speed profile as PNG to w.
func WritePlotPNG(w io.Writer, title string, cycles []db.CycleRow) error {
	p, err := newSpeedPlot(title, cycles)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
