package l2fan

import (
	"math"
	"sync/atomic"
)

const radiusFill = 0.9

// Mapping is the precomputed inverse map from every raster pixel to a
// fractional (beam, range) coordinate. It is immutable after Build.
type Mapping struct {
	params Params
	cx, cy float64
	radius float64
	half   float64 // half swath, radians

	beam  []float32
	rng   []float32
	valid []bool
	count int
}

// Build computes the mapping for p. The apex sits at (W/2, H) and the fan
// radius is 90% of min(W/2, H). A pixel is valid when it lies within the
// radius and within half the swath either side of vertical.
func Build(p Params) *Mapping {
	w, h := max(p.Width, 0), max(p.Height, 0)
	m := &Mapping{
		params: p,
		cx:     float64(w) / 2,
		cy:     float64(h),
		radius: math.Max(math.Min(float64(w)/2, float64(h))*radiusFill, epsilon),
		half:   math.Max(p.SwathDeg*math.Pi/360, epsilon),
		beam:   make([]float32, w*h),
		rng:    make([]float32, w*h),
		valid:  make([]bool, w*h),
	}
	beamSpan := float64(max(p.Beams-1, 0))
	binSpan := float64(max(p.RangeBins-1, 0))

	for y := 0; y < h; y++ {
		dy := m.cy - float64(y)
		row := y * w
		for x := 0; x < w; x++ {
			dx := float64(x) - m.cx
			r := math.Hypot(dx, dy)
			theta := math.Atan2(dx, dy)
			if r > m.radius || math.Abs(theta) > m.half {
				continue
			}
			i := row + x
			m.valid[i] = true
			m.beam[i] = float32((theta + m.half) / (2 * m.half) * beamSpan)
			m.rng[i] = float32(r / m.radius * binSpan)
			m.count++
		}
	}
	return m
}

// Params returns the key the mapping was built for.
func (m *Mapping) Params() Params { return m.params }

// Size returns the raster dimensions.
func (m *Mapping) Size() (w, h int) { return max(m.params.Width, 0), max(m.params.Height, 0) }

// Apex is the pixel position of the fan origin.
func (m *Mapping) Apex() (x, y float64) { return m.cx, m.cy }

// Radius is the fan radius in pixels.
func (m *Mapping) Radius() float64 { return m.radius }

// ValidCount is the number of unmasked pixels.
func (m *Mapping) ValidCount() int { return m.count }

// At returns the sample coordinate for pixel (x, y). ok is false for masked
// or out-of-raster pixels.
func (m *Mapping) At(x, y int) (beam, rangeIdx float32, ok bool) {
	w, h := m.Size()
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0, 0, false
	}
	i := y*w + x
	return m.beam[i], m.rng[i], m.valid[i]
}

// PixelFor places a polar point (metres, degrees from vertical, positive to
// the right) on the raster.
func (m *Mapping) PixelFor(rangeM, thetaDeg float64) (x, y float64) {
	r := rangeM / math.Max(m.params.MaxRange, epsilon) * m.radius
	th := thetaDeg * math.Pi / 180
	return m.cx + r*math.Sin(th), m.cy - r*math.Cos(th)
}

// Cache holds the current mapping and rebuilds it only when the requested
// key differs. Readers always see a complete immutable mapping; a rebuild
// swaps the pointer.
type Cache struct {
	current atomic.Pointer[Mapping]
	builds  atomic.Uint64
}

// Get returns a mapping for p, building it if the cached key differs.
func (c *Cache) Get(p Params) *Mapping {
	if m := c.current.Load(); m != nil && m.params == p {
		return m
	}
	m := Build(p)
	c.current.Store(m)
	c.builds.Add(1)
	return m
}

// Current returns the cached mapping, or nil before the first Get.
func (c *Cache) Current() *Mapping { return c.current.Load() }

// Invalidate forgets the cached mapping.
func (c *Cache) Invalidate() { c.current.Store(nil) }

// Builds counts how many mappings have been computed.
func (c *Cache) Builds() uint64 { return c.builds.Load() }
