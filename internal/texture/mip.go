package texture

import (
	"image"

	"github.com/nfnt/resize"
)

// MaxBlurLevel bounds the mip level requested by Blurred.
const MaxBlurLevel = 6

// Blurred returns a coarser version of a color layer: the layer downsampled
// by 2^level. Sampling it with the same UVs gives a blurred lookup. Levels
// are built on first use and cached; safe for concurrent use.
func (a *ColorArray) Blurred(layer, level int) *image.NRGBA {
	if layer < 0 || layer >= len(a.Layers) {
		return nil
	}
	if level <= 0 {
		return a.Layers[layer]
	}
	if level > MaxBlurLevel {
		level = MaxBlurLevel
	}

	key := mipKey{layer: layer, level: level}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mips == nil {
		a.mips = make(map[mipKey]*image.NRGBA)
	}
	if img, ok := a.mips[key]; ok {
		return img
	}

	w := max(a.Width>>level, 1)
	h := max(a.Height>>level, 1)
	small := resize.Resize(uint(w), uint(h), a.Layers[layer], resize.Bilinear)
	img := toNRGBA(small)
	a.mips[key] = img
	return img
}

// SampleBlurred samples the coarse level of layer at uv.
func (a *ColorArray) SampleBlurred(layer int, u, v float64, level int, wrap WrapMode) RGBA {
	img := a.Blurred(layer, level)
	if img == nil {
		return RGBA{}
	}
	return SampleBilinear(img, u, v, wrap)
}
