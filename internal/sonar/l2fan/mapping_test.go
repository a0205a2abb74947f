package l2fan

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

func TestBuildMasksOutsideSwath(t *testing.T) {
	sizes := [][2]int{{64, 32}, {100, 100}, {320, 180}, {33, 71}, {800, 600}}
	for _, sz := range sizes {
		p := Params{Width: sz[0], Height: sz[1], SwathDeg: 120, MaxRange: 30, Beams: 256, RangeBins: 512}
		m := Build(p)
		cx, cy := m.Apex()
		limit := 60 * math.Pi / 180

		for y := 0; y < sz[1]; y++ {
			for x := 0; x < sz[0]; x++ {
				theta := math.Atan2(float64(x)-cx, cy-float64(y))
				_, _, ok := m.At(x, y)
				if math.Abs(theta) > limit+1e-12 && ok {
					t.Fatalf("%dx%d: pixel (%d,%d) at %.3f° is valid", sz[0], sz[1], x, y, theta*180/math.Pi)
				}
			}
		}
		assert.Positive(t, m.ValidCount(), "size %v", sz)
	}
}

func TestBuildGeometry(t *testing.T) {
	p := Params{Width: 200, Height: 100, SwathDeg: 90, MaxRange: 10, Beams: 11, RangeBins: 101}
	m := Build(p)

	cx, cy := m.Apex()
	assert.Equal(t, 100.0, cx)
	assert.Equal(t, 100.0, cy)
	assert.InDelta(t, 90.0, m.Radius(), 1e-9)

	// Straight up, half the radius: centre beam, middle range bin.
	beam, rng, ok := m.At(100, 55)
	require.True(t, ok)
	assert.InDelta(t, 5.0, beam, 1e-4)
	assert.InDelta(t, 50.0, rng, 1e-4)

	// Beyond the radius.
	_, _, ok = m.At(100, 5)
	assert.False(t, ok)

	// Out of raster.
	_, _, ok = m.At(-1, 0)
	assert.False(t, ok)
	_, _, ok = m.At(200, 0)
	assert.False(t, ok)
}

func TestBuildBeamIncreasesToTheRight(t *testing.T) {
	m := Build(Params{Width: 101, Height: 100, SwathDeg: 120, MaxRange: 30, Beams: 64, RangeBins: 64})
	left, _, okL := m.At(30, 60)
	right, _, okR := m.At(70, 60)
	require.True(t, okL && okR)
	assert.Less(t, left, right)
}

func TestBuildDegenerateParams(t *testing.T) {
	cases := []Params{
		{Width: 10, Height: 10, SwathDeg: 0, MaxRange: 30, Beams: 8, RangeBins: 8},
		{Width: 10, Height: 10, SwathDeg: 120, MaxRange: 0, Beams: 1, RangeBins: 1},
		{Width: 0, Height: 0, SwathDeg: 120, MaxRange: 30, Beams: 8, RangeBins: 8},
		{Width: -5, Height: 10, SwathDeg: 120, MaxRange: 30, Beams: 8, RangeBins: 8},
	}
	for _, p := range cases {
		assert.Error(t, p.Validate(), "%v", p)
		m := Build(p)
		w, h := m.Size()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				b, r, ok := m.At(x, y)
				if ok {
					assert.False(t, math.IsNaN(float64(b)) || math.IsNaN(float64(r)), "NaN at %d,%d for %v", x, y, p)
				}
			}
		}
	}
	assert.ErrorIs(t, Params{Width: 1, Height: 1, SwathDeg: 400, MaxRange: 1, Beams: 1, RangeBins: 1}.Validate(), sonar.ErrConfiguration)
	assert.NoError(t, Params{Width: 1, Height: 1, SwathDeg: 120, MaxRange: 1, Beams: 1, RangeBins: 1}.Validate())
}

func TestCacheReusesUntilKeyChanges(t *testing.T) {
	var c Cache
	assert.Nil(t, c.Current())

	p := Params{Width: 64, Height: 48, SwathDeg: 120, MaxRange: 30, Beams: 32, RangeBins: 64}
	m1 := c.Get(p)
	m2 := c.Get(p)
	assert.Same(t, m1, m2)
	assert.Equal(t, uint64(1), c.Builds())

	p.SwathDeg = 90
	m3 := c.Get(p)
	assert.NotSame(t, m1, m3)
	assert.Equal(t, 90.0, m3.Params().SwathDeg)
	assert.Equal(t, uint64(2), c.Builds())

	p.Width = 65
	assert.Equal(t, 65, c.Get(p).Params().Width)
	assert.Equal(t, uint64(3), c.Builds())

	c.Invalidate()
	c.Get(p)
	assert.Equal(t, uint64(4), c.Builds())
}

func TestCacheConcurrentGet(t *testing.T) {
	var c Cache
	base := Params{Width: 32, Height: 32, SwathDeg: 120, MaxRange: 30, Beams: 16, RangeBins: 16}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := base
			p.Width += i % 2
			for j := 0; j < 50; j++ {
				m := c.Get(p)
				if m.Params() != p {
					t.Errorf("got mapping for %v, want %v", m.Params(), p)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestPixelFor(t *testing.T) {
	m := Build(Params{Width: 200, Height: 100, SwathDeg: 120, MaxRange: 10, Beams: 8, RangeBins: 8})
	x, y := m.PixelFor(10, 0)
	assert.InDelta(t, 100.0, x, 1e-9)
	assert.InDelta(t, 10.0, y, 1e-9)

	x, _ = m.PixelFor(5, 90)
	assert.InDelta(t, 145.0, x, 1e-9)
}
