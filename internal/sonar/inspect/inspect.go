// Package inspect summarises the intensity content of a frame source and
// plots it.
package inspect

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
)

// DefaultHistogramBins is the intensity histogram resolution.
const DefaultHistogramBins = 64

// Options controls which frames are analysed.
type Options struct {
	Stride        int // analyse every Stride-th frame (default: 1)
	MaxFrames     int // stop after this many analysed frames; 0 means all
	HistogramBins int // default: DefaultHistogramBins
}

// FrameStats is the summary of one analysed frame.
type FrameStats struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	render.Summary
}

// Report is the result of Analyze.
type Report struct {
	Frames    int     `json:"frames"`
	Analysed  int     `json:"analysed"`
	FPS       float64 `json:"fps"`
	Beams     int     `json:"beams"`
	RangeBins int     `json:"range_bins"`
	Depth     string  `json:"depth"`
	Duration  float64 `json:"duration_s"`

	// MeanIntensity and StdDevIntensity pool every analysed sample.
	MeanIntensity   float64 `json:"mean_intensity"`
	StdDevIntensity float64 `json:"stddev_intensity"`
	// FrameInterval statistics come from consecutive analysed timestamps.
	MeanFrameInterval   float64 `json:"mean_frame_interval_s"`
	StdDevFrameInterval float64 `json:"stddev_frame_interval_s"`

	PerFrame []FrameStats `json:"per_frame"`

	// HistogramEdges has one more entry than HistogramCounts.
	HistogramEdges  []float64 `json:"histogram_edges"`
	HistogramCounts []float64 `json:"histogram_counts"`

	// RangeProfile is the mean intensity of each range bin across beams
	// and analysed frames.
	RangeProfile []float64 `json:"range_profile"`
}

// PeakRangeBin returns the range bin with the highest mean intensity.
func (r *Report) PeakRangeBin() int {
	if len(r.RangeProfile) == 0 {
		return -1
	}
	return floats.MaxIdx(r.RangeProfile)
}

// Analyze reads src from frame 0 and summarises it. Every analysed frame
// must share the geometry of the first.
func Analyze(src sonar.FrameSource, opts Options) (*Report, error) {
	if opts.Stride <= 0 {
		opts.Stride = 1
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = DefaultHistogramBins
	}
	total := src.FrameCount()
	rep := &Report{Frames: total, FPS: src.FPS()}
	if total == 0 {
		return rep, nil
	}

	var (
		profile []float64
		rowBuf  []float64
		counts  []float64
		sum     float64
		sumSq   float64
		n       float64
		times   []float64
	)
	for i := 0; i < total; i += opts.Stride {
		if opts.MaxFrames > 0 && rep.Analysed >= opts.MaxFrames {
			break
		}
		if err := src.Seek(i); err != nil {
			return nil, fmt.Errorf("seek %d: %w", i, err)
		}
		f, err := src.ReadNext()
		if errors.Is(err, sonar.ErrEndOfSource) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", i, err)
		}

		if rep.Analysed == 0 {
			rep.Beams, rep.RangeBins, rep.Depth = f.Beams(), f.RangeBins(), f.Depth().String()
			profile = make([]float64, f.RangeBins())
			rowBuf = make([]float64, f.Beams())
			rep.HistogramEdges = make([]float64, opts.HistogramBins+1)
			floats.Span(rep.HistogramEdges, 0, float64(f.Depth().MaxValue())+1)
			counts = make([]float64, opts.HistogramBins)
			rep.HistogramCounts = make([]float64, opts.HistogramBins)
		} else if f.Beams() != rep.Beams || f.RangeBins() != rep.RangeBins || f.Depth().String() != rep.Depth {
			return nil, fmt.Errorf("%w: frame %d is %dx%d %s, expected %dx%d %s", sonar.ErrDecode,
				i, f.RangeBins(), f.Beams(), f.Depth(), rep.RangeBins, rep.Beams, rep.Depth)
		}

		for r := range profile {
			for b := range rowBuf {
				rowBuf[b] = float64(f.At(r, b))
			}
			profile[r] += stat.Mean(rowBuf, nil)
		}

		xs := samples(f)
		sort.Float64s(xs)
		stat.Histogram(counts, rep.HistogramEdges, xs, nil)
		floats.Add(rep.HistogramCounts, counts)
		clear(counts)
		sum += floats.Sum(xs)
		sumSq += floats.Dot(xs, xs)
		n += float64(len(xs))

		rep.PerFrame = append(rep.PerFrame, FrameStats{Index: f.Index(), Timestamp: f.Timestamp(), Summary: render.Summarize(f)})
		times = append(times, f.Timestamp())
		rep.Analysed++
	}
	if rep.Analysed == 0 {
		return rep, nil
	}

	floats.Scale(1/float64(rep.Analysed), profile)
	rep.RangeProfile = profile

	rep.MeanIntensity = sum / n
	if n > 1 {
		variance := (sumSq - n*rep.MeanIntensity*rep.MeanIntensity) / (n - 1)
		if variance > 0 {
			rep.StdDevIntensity = math.Sqrt(variance)
		}
	}

	if len(times) > 1 {
		rep.Duration = times[len(times)-1] - times[0]
		dts := make([]float64, len(times)-1)
		for i := range dts {
			dts[i] = times[i+1] - times[i]
		}
		rep.MeanFrameInterval, rep.StdDevFrameInterval = stat.MeanStdDev(dts, nil)
		if len(dts) == 1 {
			rep.StdDevFrameInterval = 0
		}
	}
	return rep, nil
}

func samples(f *sonar.Frame) []float64 {
	s := f.View()
	xs := make([]float64, len(s))
	for i, v := range s {
		xs[i] = float64(v)
	}
	return xs
}
