package raster

import "math"

// Precomputed sRGB-to-linear lookup table (256 entries).
var srgbToLinear [256]float64

func init() {
	for i := 0; i < 256; i++ {
		srgbToLinear[i] = SRGBToLinear(float64(i) / 255)
	}
}

// SRGBToLinear decodes an sRGB channel value in [0, 1].
func SRGBToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// LinearToSRGB encodes a linear channel value in [0, 1].
func LinearToSRGB(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

// LinearFromByte decodes an 8-bit sRGB value through the lookup table.
func LinearFromByte(b uint8) float64 {
	return srgbToLinear[b]
}

// Linearize converts an sRGB color with channels in [0, 1] to linear RGB.
func Linearize(c [4]float64) [3]float64 {
	return [3]float64{SRGBToLinear(c[0]), SRGBToLinear(c[1]), SRGBToLinear(c[2])}
}
