package render

import (
	"fmt"

	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/l2fan"
)

// Settings are the runtime-adjustable render parameters.
type Settings struct {
	Width    int
	Height   int
	SwathDeg float64
	MaxRange float64
	Ramp     l2fan.Ramp
	Overlay  l2fan.OverlayColors

	// AutoWindow replaces the ramp's intensity window with the AutoLow and
	// AutoHigh quantiles of each frame's samples.
	AutoWindow bool
	AutoLow    float64
	AutoHigh   float64
}

// DefaultSettings is a 640x480 raster of a 120°, 30 m fan.
func DefaultSettings() Settings {
	return Settings{
		Width:    640,
		Height:   480,
		SwathDeg: 120,
		MaxRange: 30,
		Ramp:     l2fan.DefaultRamp(),
		Overlay:  l2fan.DefaultOverlayColors(),
		AutoLow:  0.02,
		AutoHigh: 0.98,
	}
}

// params keys the mapping for f under s.
func (s Settings) params(f *sonar.Frame) l2fan.Params {
	return l2fan.ParamsFor(s.Width, s.Height, s.SwathDeg, s.MaxRange, f)
}

// Validate reports settings the mapping will have to degrade around.
func (s Settings) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: raster %dx%d", sonar.ErrConfiguration, s.Width, s.Height)
	}
	if s.SwathDeg <= 0 || s.SwathDeg > 360 {
		return fmt.Errorf("%w: swath %.1f°", sonar.ErrConfiguration, s.SwathDeg)
	}
	if s.MaxRange <= 0 {
		return fmt.Errorf("%w: max range %.2f", sonar.ErrConfiguration, s.MaxRange)
	}
	if s.AutoWindow && !(0 <= s.AutoLow && s.AutoLow < s.AutoHigh && s.AutoHigh <= 1) {
		return fmt.Errorf("%w: auto window quantiles %.3f..%.3f", sonar.ErrConfiguration, s.AutoLow, s.AutoHigh)
	}
	return nil
}
