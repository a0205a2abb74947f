package visualiser

import (
	"github.com/banshee-data/fanbeam/internal/sonar/l2fan"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
)

// Empty is the request of argument-free RPCs.
type Empty struct{}

type SeekRequest struct {
	Index int `json:"index"`
}

type SourceRequest struct {
	Path string `json:"path"`
}

// SettingsRequest changes only the fields that are set.
type SettingsRequest struct {
	Width        *int       `json:"width,omitempty"`
	Height       *int       `json:"height,omitempty"`
	SwathDeg     *float64   `json:"swath_deg,omitempty"`
	MaxRange     *float64   `json:"max_range,omitempty"`
	MinIntensity *float64   `json:"min_intensity,omitempty"`
	MaxIntensity *float64   `json:"max_intensity,omitempty"`
	MinColor     *l2fan.RGB `json:"min_color,omitempty"`
	MaxColor     *l2fan.RGB `json:"max_color,omitempty"`
	Foreground   *l2fan.RGB `json:"foreground,omitempty"`
	Background   *l2fan.RGB `json:"background,omitempty"`
	AutoWindow   *bool      `json:"auto_window,omitempty"`
}

// apply merges r into s.
func (r *SettingsRequest) apply(s *render.Settings) {
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setRGB := func(dst *l2fan.RGB, v *l2fan.RGB) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&s.Width, r.Width)
	setInt(&s.Height, r.Height)
	setFloat(&s.SwathDeg, r.SwathDeg)
	setFloat(&s.MaxRange, r.MaxRange)
	setFloat(&s.Ramp.MinIntensity, r.MinIntensity)
	setFloat(&s.Ramp.MaxIntensity, r.MaxIntensity)
	setRGB(&s.Ramp.MinColor, r.MinColor)
	setRGB(&s.Ramp.MaxColor, r.MaxColor)
	setRGB(&s.Overlay.Foreground, r.Foreground)
	setRGB(&s.Overlay.Background, r.Background)
	if r.AutoWindow != nil {
		s.AutoWindow = *r.AutoWindow
	}
}

// Frame encodings.
const (
	EncodingPNG  = "png"
	EncodingRGBA = "rgba"
)

type StreamRequest struct {
	Encoding string `json:"encoding,omitempty"`  // EncodingPNG (default) or EncodingRGBA
	SendLast bool   `json:"send_last,omitempty"` // start with the most recent raster
}

// FrameMessage is one rendered raster. RGBA data is non-premultiplied,
// row-major, four bytes per pixel.
type FrameMessage struct {
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Encoding string         `json:"encoding"`
	Data     []byte         `json:"data"`
	Overlay  render.Overlay `json:"overlay"`
}
