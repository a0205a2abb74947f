package inspect

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot file names written by WritePlots.
const (
	HistogramFile    = "intensity_histogram.png"
	RangeProfileFile = "range_profile.png"
	FrameMeansFile   = "frame_means.png"
)

// WritePlots renders the report's histogram, range profile and per-frame
// intensity plots as PNG files in dir and returns their paths. maxRange
// labels the range axis in metres; 0 keeps it in bins.
func WritePlots(rep *Report, dir string, maxRange float64) ([]string, error) {
	if rep.Analysed == 0 {
		return nil, fmt.Errorf("no frames analysed")
	}
	var paths []string
	for _, p := range []struct {
		name string
		make func() (*plot.Plot, error)
	}{
		{HistogramFile, func() (*plot.Plot, error) { return histogramPlot(rep) }},
		{RangeProfileFile, func() (*plot.Plot, error) { return rangeProfilePlot(rep, maxRange) }},
		{FrameMeansFile, func() (*plot.Plot, error) { return frameMeansPlot(rep) }},
	} {
		pl, err := p.make()
		if err != nil {
			return paths, fmt.Errorf("%s: %w", p.name, err)
		}
		path := filepath.Join(dir, p.name)
		if err := pl.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
			return paths, fmt.Errorf("save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func histogramPlot(rep *Report) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Intensity histogram (%d frames, %s)", rep.Analysed, rep.Depth)
	p.X.Label.Text = "Intensity"
	p.Y.Label.Text = "Samples"

	bins := make([]plotter.HistogramBin, len(rep.HistogramCounts))
	for i, c := range rep.HistogramCounts {
		bins[i] = plotter.HistogramBin{Min: rep.HistogramEdges[i], Max: rep.HistogramEdges[i+1], Weight: c}
	}
	h := &plotter.Histogram{Bins: bins, Width: rep.HistogramEdges[1] - rep.HistogramEdges[0], FillColor: plotter.DefaultLineStyle.Color, LineStyle: plotter.DefaultLineStyle}
	p.Add(h)
	return p, nil
}

func rangeProfilePlot(rep *Report, maxRange float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Mean intensity by range"
	p.X.Label.Text = "Range bin"
	p.Y.Label.Text = "Mean intensity"

	pts := make(plotter.XYs, len(rep.RangeProfile))
	for r, v := range rep.RangeProfile {
		pts[r].X = float64(r)
		if maxRange > 0 && len(rep.RangeProfile) > 1 {
			pts[r].X = maxRange * float64(r) / float64(len(rep.RangeProfile)-1)
		}
		pts[r].Y = v
	}
	if maxRange > 0 {
		p.X.Label.Text = "Range (m)"
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())
	return p, nil
}

func frameMeansPlot(rep *Report) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Per-frame intensity"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Intensity"

	mean := make(plotter.XYs, len(rep.PerFrame))
	max := make(plotter.XYs, len(rep.PerFrame))
	for i, f := range rep.PerFrame {
		mean[i] = plotter.XY{X: f.Timestamp, Y: f.Mean}
		max[i] = plotter.XY{X: f.Timestamp, Y: f.Max}
	}
	meanLine, err := plotter.NewLine(mean)
	if err != nil {
		return nil, err
	}
	meanLine.Width = vg.Points(1)
	maxLine, err := plotter.NewLine(max)
	if err != nil {
		return nil, err
	}
	maxLine.Width = vg.Points(1)
	maxLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(meanLine, maxLine, plotter.NewGrid())
	p.Legend.Add("mean", meanLine)
	p.Legend.Add("max", maxLine)
	return p, nil
}
