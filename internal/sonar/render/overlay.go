package render

import (
	"time"

	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/l2fan"
)

// Ring is one range ring: its distance and its radius on the raster.
type Ring struct {
	RangeM   float64 `json:"range_m"`
	RadiusPx float64 `json:"radius_px"`
}

// Spoke is one radial guide from the apex to the fan edge.
type Spoke struct {
	AngleDeg float64 `json:"angle_deg"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Overlay is everything needed to annotate a raster.
type Overlay struct {
	FrameIndex   int       `json:"frame_index"`
	Timestamp    float64   `json:"timestamp"`
	WallClock    time.Time `json:"wall_clock,omitempty"`
	MinIntensity float64   `json:"min_intensity"`
	MaxIntensity float64   `json:"max_intensity"`
	SwathDeg     float64   `json:"swath_deg"`
	MaxRange     float64   `json:"max_range"`
	ApexX        float64   `json:"apex_x"`
	ApexY        float64   `json:"apex_y"`
	RadiusPx     float64   `json:"radius_px"`
	Rings        []Ring    `json:"rings"`
	Spokes       []Spoke   `json:"spokes"`
	Foreground   l2fan.RGB `json:"foreground"`
	Background   l2fan.RGB `json:"background"`
	MinColor     l2fan.RGB `json:"min_color"`
	MaxColor     l2fan.RGB `json:"max_color"`
}

func newOverlay(f *sonar.Frame, m *l2fan.Mapping, s Settings, ramp l2fan.Ramp, base time.Time) Overlay {
	ax, ay := m.Apex()
	o := Overlay{
		FrameIndex:   f.Index(),
		Timestamp:    f.Timestamp(),
		MinIntensity: ramp.MinIntensity,
		MaxIntensity: ramp.MaxIntensity,
		SwathDeg:     s.SwathDeg,
		MaxRange:     s.MaxRange,
		ApexX:        ax,
		ApexY:        ay,
		RadiusPx:     m.Radius(),
		Foreground:   s.Overlay.Foreground,
		Background:   s.Overlay.Background,
		MinColor:     ramp.MinColor,
		MaxColor:     ramp.MaxColor,
	}
	if !base.IsZero() {
		o.WallClock = base.Add(time.Duration(f.Timestamp() * float64(time.Second)))
	}
	for _, d := range l2fan.Rings(s.MaxRange) {
		o.Rings = append(o.Rings, Ring{RangeM: d, RadiusPx: d / s.MaxRange * m.Radius()})
	}
	for _, a := range l2fan.Spokes(s.SwathDeg) {
		x, y := m.PixelFor(s.MaxRange, a)
		o.Spokes = append(o.Spokes, Spoke{AngleDeg: a, X: x, Y: y})
	}
	return o
}
