// Package depthcodec converts scalar distances to and from normalized
// channel values.
//
// The main encoding interpolates 1/d linearly between 1/near and 1/far, so
// near distances receive most of the code space: depth quantization error
// matters less the farther a surface is from the camera.
package depthcodec

import (
	"math"

	"ibr-renderer/internal/camera"
)

// Encode maps a distance to a channel value in [0, 1]; near maps to 0 and
// far maps to 1. Distances outside the range are clamped. The result is
// strictly increasing in d inside the range.
func Encode(d float64, r camera.DistanceRange) float64 {
	if !r.Valid() {
		return 0
	}
	if d <= r.Near {
		return 0
	}
	if d >= r.Far {
		return 1
	}
	invNear, invFar := 1/r.Near, 1/r.Far
	return (1/d - invNear) / (invFar - invNear)
}

// Decode is the inverse of Encode.
func Decode(c float64, r camera.DistanceRange) float64 {
	if !r.Valid() {
		return 0
	}
	if c <= 0 {
		return r.Near
	}
	if c >= 1 {
		return r.Far
	}
	invNear, invFar := 1/r.Near, 1/r.Far
	return 1 / (invNear + c*(invFar-invNear))
}

// IsFar reports whether an encoded value marks "no surface" (the far plane).
func IsFar(c float64) bool {
	return c >= 1 || math.IsNaN(c)
}
