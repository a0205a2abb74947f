package l2fan

import (
	"fmt"
	"image/color"
	"math"
)

// RGB is an 8-bit colour triple.
type RGB struct {
	R, G, B uint8
}

// NRGBA returns c as an opaque image colour.
func (c RGB) NRGBA() color.NRGBA { return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xFF} }

func (c RGB) String() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// ParseRGB reads "#rrggbb" or "rrggbb".
func ParseRGB(s string) (RGB, error) {
	var c RGB
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return c, fmt.Errorf("colour %q: want rrggbb", s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("colour %q: %w", s, err)
	}
	return c, nil
}

// MarshalText encodes c as "#rrggbb".
func (c RGB) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *RGB) UnmarshalText(b []byte) error {
	v, err := ParseRGB(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Named colours used by the default ramp and overlay.
var (
	Yellow = RGB{255, 255, 0}
	Red    = RGB{255, 0, 0}
	Black  = RGB{0, 0, 0}
	White  = RGB{255, 255, 255}
)

// Ramp maps an intensity window onto a line between two colours.
type Ramp struct {
	MinIntensity float64
	MaxIntensity float64
	MinColor     RGB
	MaxColor     RGB
}

// DefaultRamp is the 0..255 yellow-to-red ramp.
func DefaultRamp() Ramp {
	return Ramp{MinIntensity: 0, MaxIntensity: 255, MinColor: Yellow, MaxColor: Red}
}

// Ratio normalises v into [0, 1]. The denominator is floored at epsilon so
// an inverted or empty window still yields a clamped ratio.
func (r Ramp) Ratio(v float64) float64 {
	ratio := (v - r.MinIntensity) / math.Max(r.MaxIntensity-r.MinIntensity, epsilon)
	if ratio < 0 || math.IsNaN(ratio) {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// ColorAt returns the ramp colour for intensity v.
func (r Ramp) ColorAt(v float64) RGB {
	t := r.Ratio(v)
	return RGB{
		R: lerp8(r.MinColor.R, r.MaxColor.R, t),
		G: lerp8(r.MinColor.G, r.MaxColor.G, t),
		B: lerp8(r.MinColor.B, r.MaxColor.B, t),
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a)*(1-t) + float64(b)*t))
}
