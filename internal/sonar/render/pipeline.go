// Package render turns frames from the playback controller into coloured
// fan rasters with overlay metadata.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/l2fan"
	"github.com/banshee-data/fanbeam/internal/sonar/playback"
	"github.com/banshee-data/fanbeam/internal/timeutil"
)

// Rendered is one raster and the metadata a presentation layer needs to
// annotate it.
type Rendered struct {
	Image   *image.NRGBA
	Overlay Overlay
}

// Config configures a Pipeline.
type Config struct {
	Settings Settings
	Clock    timeutil.Clock
	Debounce time.Duration   // default: DefaultDebounce
	OnRender func(*Rendered) // called for every raster, in order
}

// Pipeline renders frames with a cached mapping. Setters only change the
// pending settings and schedule a debounced recompute; when the window
// closes the pending values become the applied ones and the last frame is
// re-rendered. Frames arriving during a burst keep rendering with the
// applied settings, so the mapping is rebuilt at most once per burst.
type Pipeline struct {
	cache    l2fan.Cache
	onRender func(*Rendered)
	debounce *Debouncer

	mu       sync.Mutex
	pending  Settings
	settings Settings // applied
	base     time.Time
	lastIn   *sonar.Frame
	lastOut  *Rendered

	// renderMu orders renders from the frame consumer and the debouncer.
	renderMu sync.Mutex
}

// NewPipeline creates a Pipeline. Call Close to cancel pending recomputes.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.Settings == (Settings{}) {
		cfg.Settings = DefaultSettings()
	}
	p := &Pipeline{
		onRender: cfg.OnRender,
		pending:  cfg.Settings,
		settings: cfg.Settings,
	}
	p.debounce = NewDebouncer(cfg.Clock, cfg.Debounce, p.recompute)
	return p
}

// Settings returns the most recently requested parameters, which may not be
// applied yet.
func (p *Pipeline) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Applied returns the parameters renders currently use.
func (p *Pipeline) Applied() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// Last returns the most recent raster, or nil.
func (p *Pipeline) Last() *Rendered {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastOut
}

// MappingBuilds counts mapping rebuilds.
func (p *Pipeline) MappingBuilds() uint64 { return p.cache.Builds() }

// Recomputes counts debounced parameter recomputes.
func (p *Pipeline) Recomputes() uint64 { return p.debounce.Fires() }

// Render draws f with the applied settings. It does not remember f.
func (p *Pipeline) Render(f *sonar.Frame) (*Rendered, error) {
	p.mu.Lock()
	s, base := p.settings, p.base
	p.mu.Unlock()
	return p.render(f, s, base)
}

func (p *Pipeline) render(f *sonar.Frame, s Settings, base time.Time) (*Rendered, error) {
	ramp := s.Ramp
	if s.AutoWindow {
		ramp.MinIntensity, ramp.MaxIntensity = AutoWindow(f, s.AutoLow, s.AutoHigh)
	}
	m := p.cache.Get(s.params(f))
	img, err := l2fan.Sample(f, m, ramp)
	if err != nil {
		return nil, err
	}
	return &Rendered{Image: img, Overlay: newOverlay(f, m, s, ramp, base)}, nil
}

// HandleFrame renders f, remembers it for later recomputes and publishes
// the result.
func (p *Pipeline) HandleFrame(f *sonar.Frame) (*Rendered, error) {
	p.renderMu.Lock()
	defer p.renderMu.Unlock()

	p.mu.Lock()
	p.lastIn = f
	s, base := p.settings, p.base
	p.mu.Unlock()

	r, err := p.render(f, s, base)
	if err != nil {
		return nil, err
	}
	p.publish(r)
	return r, nil
}

func (p *Pipeline) publish(r *Rendered) {
	p.mu.Lock()
	p.lastOut = r
	p.mu.Unlock()
	if p.onRender != nil {
		p.onRender(r)
	}
}

// recompute applies the pending settings and re-renders the last frame.
func (p *Pipeline) recompute() {
	p.renderMu.Lock()
	defer p.renderMu.Unlock()

	p.mu.Lock()
	p.settings = p.pending
	f, s, base := p.lastIn, p.settings, p.base
	p.mu.Unlock()

	if err := s.Validate(); err != nil {
		monitoring.Logf("[Render] degraded settings: %v", err)
	}
	if f == nil {
		return
	}
	r, err := p.render(f, s, base)
	if err != nil {
		monitoring.Logf("[Render] recompute frame %d: %v", f.Index(), err)
		return
	}
	p.publish(r)
}

// Run consumes playback events until the channel closes or ctx ends.
func (p *Pipeline) Run(ctx context.Context, events <-chan playback.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Type {
			case playback.EventFrameReady:
				if _, err := p.HandleFrame(ev.Frame); err != nil {
					log.Printf("[Render] frame %d: %v", ev.Index, err)
				}
			case playback.EventError:
				log.Printf("[Render] playback error (%s): %v", ev.Kind, ev.Err)
			case playback.EventFinished:
				monitoring.Logf("[Render] playback finished")
			}
		}
	}
}

func (p *Pipeline) update(fn func(*Settings)) {
	p.mu.Lock()
	fn(&p.pending)
	p.mu.Unlock()
	p.debounce.Trigger()
}

// SetSize changes the raster dimensions.
func (p *Pipeline) SetSize(w, h int) {
	p.update(func(s *Settings) { s.Width, s.Height = w, h })
}

// SetSwath changes the fan angle in degrees.
func (p *Pipeline) SetSwath(deg float64) {
	p.update(func(s *Settings) { s.SwathDeg = deg })
}

// SetRange changes the fan reach in metres.
func (p *Pipeline) SetRange(m float64) {
	p.update(func(s *Settings) { s.MaxRange = m })
}

// SetIntensityWindow changes the ramp clamp window.
func (p *Pipeline) SetIntensityWindow(min, max float64) {
	p.update(func(s *Settings) { s.Ramp.MinIntensity, s.Ramp.MaxIntensity = min, max })
}

// SetColors changes the ramp end colours.
func (p *Pipeline) SetColors(min, max l2fan.RGB) {
	p.update(func(s *Settings) { s.Ramp.MinColor, s.Ramp.MaxColor = min, max })
}

// SetOverlayColors changes the annotation colours.
func (p *Pipeline) SetOverlayColors(c l2fan.OverlayColors) {
	p.update(func(s *Settings) { s.Overlay = c })
}

// SetAutoWindow toggles per-frame quantile windowing.
func (p *Pipeline) SetAutoWindow(on bool) {
	p.update(func(s *Settings) { s.AutoWindow = on })
}

// Apply replaces every setting at once.
func (p *Pipeline) Apply(next Settings) {
	p.update(func(s *Settings) { *s = next })
}

// ApplyNow replaces every setting and applies it to the next render without
// waiting for the debounce window. Receivers use it when a frame header
// changes the fan geometry.
func (p *Pipeline) ApplyNow(next Settings) {
	p.mu.Lock()
	p.pending, p.settings = next, next
	p.mu.Unlock()
}

// SetBaseTimestamp sets the wall-clock origin added to frame timestamps.
func (p *Pipeline) SetBaseTimestamp(t time.Time) {
	p.mu.Lock()
	p.base = t
	p.mu.Unlock()
}

// Close cancels a pending recompute.
func (p *Pipeline) Close() { p.debounce.Close() }

// EncodePNG encodes a raster for transport.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
