package depthcodec

import (
	"image/color"
	"math"

	"github.com/mrjoshuak/go-openexr/half"
)

// preciseSteps is the number of distinct values representable across three
// 8-bit channels.
const preciseSteps = 1<<24 - 1

// EncodePrecise packs a channel value in [0, 1] into the R, G and B bytes
// of a color (most significant byte first). Alpha is always opaque. This
// keeps 24 bits of precision where a single 8-bit channel keeps 8.
func EncodePrecise(c float64) color.NRGBA {
	if math.IsNaN(c) || c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	q := uint32(math.Round(c * preciseSteps))
	return color.NRGBA{
		R: uint8(q >> 16),
		G: uint8(q >> 8),
		B: uint8(q),
		A: 255,
	}
}

// DecodePrecise reverses EncodePrecise.
func DecodePrecise(px color.NRGBA) float64 {
	q := uint32(px.R)<<16 | uint32(px.G)<<8 | uint32(px.B)
	return float64(q) / preciseSteps
}

// EncodeHalf stores a channel value as a 16-bit float, the storage type of
// half-precision depth arrays.
func EncodeHalf(c float64) half.Half {
	return half.FromFloat64(c)
}

// DecodeHalf reverses EncodeHalf.
func DecodeHalf(h half.Half) float64 {
	return h.Float64()
}
