package texture

import (
	"image"
	"math"
)

// WrapMode selects how coordinates outside [0, 1] are handled.
type WrapMode int

const (
	// Clamp repeats the edge texel. Projective lookups into source cameras use it.
	Clamp WrapMode = iota
	// Repeat wraps coordinates, for UV-mapped global mesh textures and the
	// longitude axis of equirectangular images.
	Repeat
)

// RGBA is a color with channels in [0, 1] (non-premultiplied, sRGB encoded).
type RGBA [4]float64

// SampleBilinear performs bilinear filtering at (u, v). It accesses
// tex.Pix directly for performance.
func SampleBilinear(tex *image.NRGBA, u, v float64, wrap WrapMode) RGBA {
	w := tex.Rect.Dx()
	h := tex.Rect.Dy()
	if w == 0 || h == 0 {
		return RGBA{}
	}

	switch wrap {
	case Repeat:
		u -= math.Floor(u)
		v -= math.Floor(v)
	default:
		u = clamp01(u)
		v = clamp01(v)
	}

	fx := u * float64(w-1)
	fy := v * float64(h-1)
	x0 := int(fx)
	y0 := int(fy)
	x1 := x0 + 1
	y1 := y0 + 1
	if wrap == Repeat {
		x1 %= w
		y1 %= h
	} else {
		if x1 >= w {
			x1 = w - 1
		}
		if y1 >= h {
			y1 = h - 1
		}
	}
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	stride := tex.Stride
	pix := tex.Pix

	i00 := y0*stride + x0*4
	i10 := y0*stride + x1*4
	i01 := y1*stride + x0*4
	i11 := y1*stride + x1*4

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	var out RGBA
	for c := 0; c < 4; c++ {
		out[c] = (float64(pix[i00+c])*w00 + float64(pix[i10+c])*w10 +
			float64(pix[i01+c])*w01 + float64(pix[i11+c])*w11) / 255
	}
	return out
}

// texelIndex returns the nearest texel for (u, v) in a w×h grid, clamped.
func texelIndex(u, v float64, w, h int) (int, int) {
	x := int(clamp01(u)*float64(w-1) + 0.5)
	y := int(clamp01(v)*float64(h-1) + 0.5)
	return x, y
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
