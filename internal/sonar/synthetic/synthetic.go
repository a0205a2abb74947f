// Package synthetic generates sonar frames with point targets over a fan,
// for demos and tests that need a source without hardware or recordings.
package synthetic

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

// Target is a circular reflector in fan coordinates. AngleDeg is measured
// from the centre line, negative to the left.
type Target struct {
	AngleDeg  float64 `json:"angle_deg"`
	RangeM    float64 `json:"range_m"`
	RadiusM   float64 `json:"radius_m"`
	Intensity float64 `json:"intensity"` // fraction of the depth's maximum, 0 means 1
}

// Sweep moves a target linearly from From to To over the sequence.
type Sweep struct {
	From Target `json:"from"`
	To   Target `json:"to"`
}

func (s Sweep) at(t float64) Target {
	lerp := func(a, b float64) float64 { return a + (b-a)*t }
	return Target{
		AngleDeg:  lerp(s.From.AngleDeg, s.To.AngleDeg),
		RangeM:    lerp(s.From.RangeM, s.To.RangeM),
		RadiusM:   lerp(s.From.RadiusM, s.To.RadiusM),
		Intensity: lerp(s.From.Intensity, s.To.Intensity),
	}
}

// Config describes the generated sequence.
type Config struct {
	Beams     int
	RangeBins int
	SwathDeg  float64
	MaxRange  float64
	FPS       float64
	Frames    int
	Depth     sonar.SampleDepth
	Targets   []Target // static
	Sweeps    []Sweep
	Noise     float64 // uniform background as a fraction of the maximum
	Seed      int64
}

// Pillar is the fixed reflector of the default scene.
var Pillar = Target{AngleDeg: -30, RangeM: 3, RadiusM: 0.1}

// Fish crosses the fan from left to right while moving away.
var Fish = Sweep{
	From: Target{AngleDeg: -30, RangeM: 3, RadiusM: 0.05},
	To:   Target{AngleDeg: 30, RangeM: 7, RadiusM: 0.05},
}

// DefaultConfig is 30 s of a 256-beam, 1024-bin, 10 m fan with the pillar
// and the fish.
func DefaultConfig() Config {
	return Config{
		Beams:     256,
		RangeBins: 1024,
		SwathDeg:  120,
		MaxRange:  10,
		FPS:       30,
		Frames:    900,
		Depth:     sonar.Depth8,
		Targets:   []Target{Pillar},
		Sweeps:    []Sweep{Fish},
	}
}

// Validate rejects configurations that cannot produce frames.
func (c Config) Validate() error {
	switch {
	case c.Beams <= 0 || c.RangeBins <= 0 || c.Beams > 0xFFFF || c.RangeBins > 0xFFFF:
		return fmt.Errorf("%w: synthetic grid %dx%d", sonar.ErrConfiguration, c.RangeBins, c.Beams)
	case c.SwathDeg <= 0 || c.SwathDeg > 360:
		return fmt.Errorf("%w: synthetic swath %g", sonar.ErrConfiguration, c.SwathDeg)
	case c.MaxRange <= 0:
		return fmt.Errorf("%w: synthetic range %g", sonar.ErrConfiguration, c.MaxRange)
	case c.Frames < 0:
		return fmt.Errorf("%w: synthetic frame count %d", sonar.ErrConfiguration, c.Frames)
	case !c.Depth.Valid():
		return fmt.Errorf("%w: synthetic depth %d", sonar.ErrConfiguration, c.Depth)
	}
	return nil
}

// Source is a deterministic FrameSource: frame i is the same every time it
// is read.
type Source struct {
	cfg    Config
	cursor int
	cosB   []float64
	sinB   []float64
	rangeR []float64
}

// New validates cfg and precomputes the beam and bin geometry.
func New(cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Source{
		cfg:    cfg,
		cosB:   make([]float64, cfg.Beams),
		sinB:   make([]float64, cfg.Beams),
		rangeR: make([]float64, cfg.RangeBins),
	}
	half := cfg.SwathDeg / 2
	for b := range s.cosB {
		deg := -half
		if cfg.Beams > 1 {
			deg += cfg.SwathDeg * float64(b) / float64(cfg.Beams-1)
		}
		rad := deg * math.Pi / 180
		s.cosB[b], s.sinB[b] = math.Cos(rad), math.Sin(rad)
	}
	for r := range s.rangeR {
		if cfg.RangeBins > 1 {
			s.rangeR[r] = cfg.MaxRange * float64(r) / float64(cfg.RangeBins-1)
		}
	}
	return s, nil
}

// Config returns the generator configuration.
func (s *Source) Config() Config { return s.cfg }

// Frame renders frame i.
func (s *Source) Frame(i int) (*sonar.Frame, error) {
	if i < 0 || i >= s.cfg.Frames {
		return nil, fmt.Errorf("%w: synthetic frame %d of %d", sonar.ErrEndOfSource, i, s.cfg.Frames)
	}
	maxV := float64(s.cfg.Depth.MaxValue())
	samples := make([]uint16, s.cfg.Beams*s.cfg.RangeBins)

	if s.cfg.Noise > 0 {
		rng := rand.New(rand.NewSource(s.cfg.Seed + int64(i)))
		for k := range samples {
			samples[k] = uint16(rng.Float64() * s.cfg.Noise * maxV)
		}
	}

	targets := append([]Target(nil), s.cfg.Targets...)
	t := 0.0
	if s.cfg.Frames > 1 {
		t = float64(i) / float64(s.cfg.Frames-1)
	}
	for _, sw := range s.cfg.Sweeps {
		targets = append(targets, sw.at(t))
	}
	for _, tg := range targets {
		s.draw(samples, tg, maxV)
	}
	return sonar.NewFrame(i, float64(i)/s.FPS(), s.cfg.Beams, s.cfg.RangeBins, s.cfg.Depth, samples)
}

// draw marks every sample whose cell centre lies within the target disc.
func (s *Source) draw(samples []uint16, tg Target, maxV float64) {
	rad := tg.AngleDeg * math.Pi / 180
	cx, cy := tg.RangeM*math.Cos(rad), tg.RangeM*math.Sin(rad)
	level := tg.Intensity
	if level <= 0 || level > 1 {
		level = 1
	}
	v := uint16(math.Round(level * maxV))
	r2 := tg.RadiusM * tg.RadiusM
	for r, d := range s.rangeR {
		if math.Abs(d-tg.RangeM) > tg.RadiusM {
			continue
		}
		row := samples[r*s.cfg.Beams : (r+1)*s.cfg.Beams]
		for b := range row {
			dx, dy := d*s.cosB[b]-cx, d*s.sinB[b]-cy
			if dx*dx+dy*dy <= r2 {
				row[b] = v
			}
		}
	}
}

func (s *Source) FrameCount() int { return s.cfg.Frames }

func (s *Source) FPS() float64 { return sonar.EffectiveFPS(s.cfg.FPS) }

func (s *Source) Seek(i int) error {
	if i < 0 || i > s.cfg.Frames {
		return fmt.Errorf("%w: seek %d of %d frames", sonar.ErrEndOfSource, i, s.cfg.Frames)
	}
	s.cursor = i
	return nil
}

func (s *Source) ReadNext() (*sonar.Frame, error) {
	if s.cursor >= s.cfg.Frames {
		return nil, sonar.ErrEndOfSource
	}
	f, err := s.Frame(s.cursor)
	if err != nil {
		return nil, err
	}
	s.cursor++
	return f, nil
}

func (s *Source) Close() error { return nil }
