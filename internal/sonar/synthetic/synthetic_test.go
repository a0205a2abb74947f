package synthetic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

func small() Config {
	cfg := DefaultConfig()
	cfg.Beams, cfg.RangeBins, cfg.Frames = 121, 201, 10
	return cfg
}

// cell returns the (bin, beam) nearest to a fan coordinate.
func cell(cfg Config, angleDeg, rangeM float64) (int, int) {
	b := int(math.Round((angleDeg + cfg.SwathDeg/2) / cfg.SwathDeg * float64(cfg.Beams-1)))
	r := int(math.Round(rangeM / cfg.MaxRange * float64(cfg.RangeBins-1)))
	return r, b
}

func TestPillarIsDrawn(t *testing.T) {
	cfg := small()
	cfg.Sweeps = nil
	src, err := New(cfg)
	require.NoError(t, err)

	f, err := src.ReadNext()
	require.NoError(t, err)
	r, b := cell(cfg, -30, 3)
	assert.Equal(t, uint16(255), f.At(r, b))

	r, b = cell(cfg, 30, 3)
	assert.Zero(t, f.At(r, b))

	lit := 0
	for _, v := range f.Samples() {
		if v > 0 {
			lit++
		}
	}
	assert.Greater(t, lit, 0)
	assert.Less(t, lit, 30)
}

func TestFishSweeps(t *testing.T) {
	cfg := small()
	cfg.Targets = nil
	cfg.Sweeps = []Sweep{{
		From: Target{AngleDeg: -30, RangeM: 3, RadiusM: 0.1, Intensity: 0.5},
		To:   Target{AngleDeg: 30, RangeM: 7, RadiusM: 0.1, Intensity: 0.5},
	}}
	src, err := New(cfg)
	require.NoError(t, err)

	first, err := src.Frame(0)
	require.NoError(t, err)
	last, err := src.Frame(cfg.Frames - 1)
	require.NoError(t, err)

	r, b := cell(cfg, -30, 3)
	assert.Equal(t, uint16(128), first.At(r, b))
	assert.Zero(t, last.At(r, b))
	r, b = cell(cfg, 30, 7)
	assert.Equal(t, uint16(128), last.At(r, b))
	assert.InDelta(t, float64(cfg.Frames-1)/30, last.Timestamp(), 1e-9)
}

func TestDeterministicNoise(t *testing.T) {
	cfg := small()
	cfg.Noise, cfg.Seed, cfg.Depth = 0.1, 42, sonar.Depth16
	src, err := New(cfg)
	require.NoError(t, err)

	a, err := src.Frame(3)
	require.NoError(t, err)
	b, err := src.Frame(3)
	require.NoError(t, err)
	assert.Equal(t, a.Samples(), b.Samples())

	c, err := src.Frame(4)
	require.NoError(t, err)
	assert.NotEqual(t, a.Samples(), c.Samples())

	limit := cfg.Noise * 0xFFFF
	for _, v := range a.Samples() {
		if v != 0xFFFF {
			assert.LessOrEqual(t, float64(v), limit)
		}
	}
}

func TestSourceContract(t *testing.T) {
	src, err := New(small())
	require.NoError(t, err)
	assert.Equal(t, 10, src.FrameCount())
	assert.Equal(t, 30.0, src.FPS())

	require.NoError(t, src.Seek(9))
	f, err := src.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, 9, f.Index())
	_, err = src.ReadNext()
	assert.ErrorIs(t, err, sonar.ErrEndOfSource)
	assert.ErrorIs(t, src.Seek(11), sonar.ErrEndOfSource)
	_, err = src.Frame(-1)
	assert.ErrorIs(t, err, sonar.ErrEndOfSource)
	assert.NoError(t, src.Close())
}

func TestValidate(t *testing.T) {
	for name, mut := range map[string]func(*Config){
		"beams":  func(c *Config) { c.Beams = 0 },
		"swath":  func(c *Config) { c.SwathDeg = 0 },
		"range":  func(c *Config) { c.MaxRange = -1 },
		"frames": func(c *Config) { c.Frames = -1 },
		"depth":  func(c *Config) { c.Depth = 9 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mut(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, sonar.ErrConfiguration)
		})
	}
}
