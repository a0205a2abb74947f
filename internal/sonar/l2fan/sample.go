package l2fan

import (
	"fmt"
	"image"
	"math"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

// Sample renders f through m and r. Valid pixels get the ramp colour of the
// bilinearly interpolated intensity; masked pixels stay fully transparent.
func Sample(f *sonar.Frame, m *Mapping, r Ramp) (*image.NRGBA, error) {
	w, h := m.Size()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if err := SampleInto(dst, f, m, r); err != nil {
		return nil, err
	}
	return dst, nil
}

// SampleInto renders into dst, which must match the mapping's size. Every
// pixel of dst is overwritten.
func SampleInto(dst *image.NRGBA, f *sonar.Frame, m *Mapping, r Ramp) error {
	w, h := m.Size()
	if b := dst.Bounds(); b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("%w: raster %v does not match mapping %dx%d", sonar.ErrConfiguration, b, w, h)
	}
	if f.Beams() != m.params.Beams || f.RangeBins() != m.params.RangeBins {
		return fmt.Errorf("%w: frame grid %dx%d, mapping built for %dx%d",
			sonar.ErrConfiguration, f.RangeBins(), f.Beams(), m.params.RangeBins, m.params.Beams)
	}

	samples := f.View()
	beams, bins := f.Beams(), f.RangeBins()
	for y := 0; y < h; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+4*w]
		for x := 0; x < w; x++ {
			i := y*w + x
			px := row[4*x : 4*x+4 : 4*x+4]
			if !m.valid[i] {
				px[0], px[1], px[2], px[3] = 0, 0, 0, 0
				continue
			}
			v := bilinear(samples, beams, bins, float64(m.rng[i]), float64(m.beam[i]))
			c := r.ColorAt(v)
			px[0], px[1], px[2], px[3] = c.R, c.G, c.B, 0xFF
		}
	}
	return nil
}

// bilinear interpolates the row-major grid at fractional (rangeIdx, beam).
func bilinear(s []uint16, beams, bins int, rangeIdx, beam float64) float64 {
	r0 := int(math.Floor(rangeIdx))
	b0 := int(math.Floor(beam))
	r0 = min(max(r0, 0), bins-1)
	b0 = min(max(b0, 0), beams-1)
	r1 := min(r0+1, bins-1)
	b1 := min(b0+1, beams-1)
	fr := rangeIdx - float64(r0)
	fb := beam - float64(b0)

	v00 := float64(s[r0*beams+b0])
	v01 := float64(s[r0*beams+b1])
	v10 := float64(s[r1*beams+b0])
	v11 := float64(s[r1*beams+b1])
	top := v00 + (v01-v00)*fb
	bottom := v10 + (v11-v10)*fb
	return top + (bottom-top)*fr
}
