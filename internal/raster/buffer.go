package raster

import (
	"image"
	"math"
)

// Target is an off-screen render target held as flat slices for cache
// locality: four color channels per pixel (RGB plus an alpha or weight
// channel) and one depth value per pixel.
type Target struct {
	Width  int
	Height int
	Color  []float64 // RGBA interleaved, len = W*H*4
	Depth  []float64 // len = W*H
}

// NewTarget allocates a zeroed color buffer and a depth buffer filled
// with clearDepth.
func NewTarget(w, h int, clearDepth float64) *Target {
	t := &Target{
		Width:  w,
		Height: h,
		Color:  make([]float64, w*h*4),
		Depth:  make([]float64, w*h),
	}
	t.ClearDepth(clearDepth)
	return t
}

// Clear resets color to c and depth to d.
func (t *Target) Clear(c [4]float64, d float64) {
	for i := 0; i < len(t.Color); i += 4 {
		t.Color[i] = c[0]
		t.Color[i+1] = c[1]
		t.Color[i+2] = c[2]
		t.Color[i+3] = c[3]
	}
	t.ClearDepth(d)
}

// ClearDepth fills the depth buffer with d using copy-doubling.
func (t *Target) ClearDepth(d float64) {
	if len(t.Depth) == 0 {
		return
	}
	t.Depth[0] = d
	for n := 1; n < len(t.Depth); n *= 2 {
		copy(t.Depth[n:], t.Depth[:n])
	}
}

// CopyFrom copies every channel of src, which must have the same size.
func (t *Target) CopyFrom(src *Target) {
	copy(t.Color, src.Color)
	copy(t.Depth, src.Depth)
}

// Pixel returns the color channels at (x, y).
func (t *Target) Pixel(x, y int) [4]float64 {
	i := (y*t.Width + x) * 4
	return [4]float64{t.Color[i], t.Color[i+1], t.Color[i+2], t.Color[i+3]}
}

// ToNRGBA converts linear color channels to an sRGB image. Alpha is taken
// from the fourth channel clamped to [0, 1].
func (t *Target) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	for i := 0; i < t.Width*t.Height; i++ {
		o := i * 4
		img.Pix[o] = clamp255(LinearToSRGB(t.Color[o]) * 255)
		img.Pix[o+1] = clamp255(LinearToSRGB(t.Color[o+1]) * 255)
		img.Pix[o+2] = clamp255(LinearToSRGB(t.Color[o+2]) * 255)
		img.Pix[o+3] = clamp255(t.Color[o+3] * 255)
	}
	return img
}

// DepthFloat32 returns the depth buffer as float32 values. Infinite depths
// become 0, the "no surface" marker of depth maps.
func (t *Target) DepthFloat32() []float32 {
	out := make([]float32, len(t.Depth))
	for i, d := range t.Depth {
		if math.IsInf(d, 0) || math.IsNaN(d) {
			continue
		}
		out[i] = float32(d)
	}
	return out
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
