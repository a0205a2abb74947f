package render

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

// AutoWindow returns the lo and hi empirical quantiles of f's samples, for
// use as an intensity clamp window that ignores outliers.
func AutoWindow(f *sonar.Frame, lo, hi float64) (min, max float64) {
	xs := sortedSamples(f)
	if len(xs) == 0 {
		return 0, 0
	}
	return stat.Quantile(lo, stat.Empirical, xs, nil), stat.Quantile(hi, stat.Empirical, xs, nil)
}

// Summary is a per-frame intensity summary.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Summarize computes intensity statistics for f.
func Summarize(f *sonar.Frame) Summary {
	xs := sortedSamples(f)
	if len(xs) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		std = 0
	}
	return Summary{
		Mean:   mean,
		StdDev: std,
		Min:    xs[0],
		Median: stat.Quantile(0.5, stat.Empirical, xs, nil),
		Max:    xs[len(xs)-1],
	}
}

func sortedSamples(f *sonar.Frame) []float64 {
	s := f.View()
	xs := make([]float64, len(s))
	for i, v := range s {
		xs[i] = float64(v)
	}
	sort.Float64s(xs)
	return xs
}
