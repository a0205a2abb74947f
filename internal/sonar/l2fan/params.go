package l2fan

import (
	"fmt"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

// epsilon floors denominators so degenerate parameters never divide by zero.
const epsilon = 1e-6

// Params is the full key of a Mapping. Any field change needs a rebuild.
type Params struct {
	Width     int
	Height    int
	SwathDeg  float64
	MaxRange  float64
	Beams     int
	RangeBins int
}

// ParamsFor keys a mapping for a raster of w×h showing frame f.
func ParamsFor(w, h int, swathDeg, maxRange float64, f *sonar.Frame) Params {
	return Params{
		Width:     w,
		Height:    h,
		SwathDeg:  swathDeg,
		MaxRange:  maxRange,
		Beams:     f.Beams(),
		RangeBins: f.RangeBins(),
	}
}

// Validate reports degenerate parameters. Build still accepts them and
// produces a mapping that masks what it cannot place.
func (p Params) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("%w: raster %dx%d", sonar.ErrConfiguration, p.Width, p.Height)
	case p.SwathDeg <= 0 || p.SwathDeg > 360:
		return fmt.Errorf("%w: swath %.1f° outside (0, 360]", sonar.ErrConfiguration, p.SwathDeg)
	case p.MaxRange <= 0:
		return fmt.Errorf("%w: max range %.2f", sonar.ErrConfiguration, p.MaxRange)
	case p.Beams <= 0 || p.RangeBins <= 0:
		return fmt.Errorf("%w: sample grid %dx%d", sonar.ErrConfiguration, p.RangeBins, p.Beams)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("%dx%d swath=%.1f° range=%.1fm grid=%dx%d", p.Width, p.Height, p.SwathDeg, p.MaxRange, p.RangeBins, p.Beams)
}
