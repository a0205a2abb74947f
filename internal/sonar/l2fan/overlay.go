package l2fan

// RingStep is the spacing in metres between range rings for a fan that
// reaches maxRange.
func RingStep(maxRange float64) float64 {
	switch {
	case maxRange < 10:
		return 1
	case maxRange < 20:
		return 2
	case maxRange < 30:
		return 5
	default:
		return 10
	}
}

// Rings lists ring distances from the first step up to and including
// maxRange when it falls on a step.
func Rings(maxRange float64) []float64 {
	if maxRange <= 0 {
		return nil
	}
	step := RingStep(maxRange)
	var out []float64
	for d := step; d <= maxRange+epsilon; d += step {
		out = append(out, d)
	}
	return out
}

// Spokes lists the angles, in degrees from vertical, of the radial guide
// lines. Narrow fans get the edges and centre; wide fans add ±30° and ±60°.
func Spokes(swathDeg float64) []float64 {
	h := swathDeg / 2
	if swathDeg < 120 {
		return []float64{-h, 0, h}
	}
	out := []float64{-h}
	for _, a := range []float64{-60, -30, 0, 30, 60} {
		if a > -h && a < h {
			out = append(out, a)
		}
	}
	return append(out, h)
}

// OverlayColors are the annotation colours drawn over the fan.
type OverlayColors struct {
	Foreground RGB
	Background RGB
}

// DefaultOverlayColors is black on white.
func DefaultOverlayColors() OverlayColors {
	return OverlayColors{Foreground: Black, Background: White}
}
