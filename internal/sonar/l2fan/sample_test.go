package l2fan

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

func uniformFrame(t *testing.T, beams, bins int, v uint16) *sonar.Frame {
	t.Helper()
	s := make([]uint16, beams*bins)
	for i := range s {
		s[i] = v
	}
	f, err := sonar.NewFrame(0, 0, beams, bins, sonar.Depth8, s)
	require.NoError(t, err)
	return f
}

func TestSampleUniformFrame(t *testing.T) {
	f := uniformFrame(t, 16, 32, 128)
	m := Build(ParamsFor(80, 60, 120, 30, f))
	ramp := Ramp{MinIntensity: 0, MaxIntensity: 256, MinColor: Black, MaxColor: White}

	img, err := Sample(f, m, ramp)
	require.NoError(t, err)

	want := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	valid := 0
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			_, _, ok := m.At(x, y)
			got := img.NRGBAAt(x, y)
			if ok {
				valid++
				if got != want {
					t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
				}
			} else if got.A != 0 {
				t.Fatalf("masked pixel (%d,%d) has alpha %d", x, y, got.A)
			}
		}
	}
	assert.Equal(t, m.ValidCount(), valid)
}

func TestSampleIntoDoesNotAllocate(t *testing.T) {
	f := uniformFrame(t, 64, 128, 40)
	m := Build(ParamsFor(120, 90, 120, 30, f))
	dst := image.NewNRGBA(image.Rect(0, 0, 120, 90))
	ramp := DefaultRamp()

	allocs := testing.AllocsPerRun(5, func() {
		if err := SampleInto(dst, f, m, ramp); err != nil {
			t.Fatal(err)
		}
	})
	assert.Zero(t, allocs)
}

func TestBilinearInterpolation(t *testing.T) {
	// 2 beams x 2 bins: corners 0, 100 / 200, 300.
	s := []uint16{0, 100, 200, 300}
	assert.InDelta(t, 0.0, bilinear(s, 2, 2, 0, 0), 1e-9)
	assert.InDelta(t, 50.0, bilinear(s, 2, 2, 0, 0.5), 1e-9)
	assert.InDelta(t, 100.0, bilinear(s, 2, 2, 0.5, 0), 1e-9)
	assert.InDelta(t, 150.0, bilinear(s, 2, 2, 0.5, 0.5), 1e-9)
	assert.InDelta(t, 300.0, bilinear(s, 2, 2, 1, 1), 1e-9)
}

func TestSampleRejectsMismatch(t *testing.T) {
	f := uniformFrame(t, 8, 8, 1)
	m := Build(Params{Width: 10, Height: 10, SwathDeg: 120, MaxRange: 10, Beams: 9, RangeBins: 8})
	_, err := Sample(f, m, DefaultRamp())
	assert.ErrorIs(t, err, sonar.ErrConfiguration)
}

func TestSampleSingleBeam(t *testing.T) {
	f := uniformFrame(t, 1, 1, 255)
	m := Build(ParamsFor(20, 20, 120, 10, f))
	img, err := Sample(f, m, DefaultRamp())
	require.NoError(t, err)
	x, y := m.PixelFor(5, 0)
	assert.Equal(t, Red.NRGBA(), img.NRGBAAt(int(x), int(y)))
}
