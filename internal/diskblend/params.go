// Package diskblend composites per-view proxies into a novel view with a
// soft depth test: overlapping surfaces within a depth tolerance are
// averaged by view-dependent weights, clearly nearer surfaces replace
// farther ones.
package diskblend

import (
	"math"

	"ibr-renderer/internal/mathutil"
)

// Params configure the compositor.
type Params struct {
	MaxAngle           float64    // degrees, [1, 180]
	MinWeight          float64    // [0, 1]
	DepthFactor        float64    // same-surface tolerance as a fraction of depth, [0, 1]
	ClipNullValues     bool       // discard fragments under MinWeight instead of blackening them
	OmniDistanceWeight float64    // extra angular penalty per meter for omnidirectional sources
	Background         [4]float64 // sRGB, alpha in the fourth channel
}

// DefaultParams returns compositor defaults.
func DefaultParams() Params {
	return Params{
		MaxAngle:           25,
		MinWeight:          0.01,
		DepthFactor:        0.05,
		ClipNullValues:     true,
		OmniDistanceWeight: 0.5,
		Background:         [4]float64{0, 0, 0, 1},
	}
}

// Clamped returns p forced into the valid ranges.
func (p Params) Clamped() Params {
	p.MaxAngle = mathutil.Clamp(p.MaxAngle, 1, 180)
	p.MinWeight = mathutil.Clamp(p.MinWeight, 0, 1)
	p.DepthFactor = mathutil.Clamp(p.DepthFactor, 0, 1)
	p.OmniDistanceWeight = mathutil.Clamp(p.OmniDistanceWeight, 0, 10)
	return p
}

// Weight returns the blending weight of a fragment seen at angular
// deviation devDeg from the viewing ray:
//
//	clamp(1 - dev/maxAngle × factor, minWeight, 1)
//
// where factor is 1 for perspective sources and 1 + OmniDistanceWeight ×
// viewToSource for omnidirectional ones. keep is false when the raw weight
// falls under MinWeight and ClipNullValues is set; black is true when it
// falls under MinWeight and the fragment must be written black instead.
func (p Params) Weight(devDeg float64, omni bool, viewToSource float64) (w float64, keep, black bool) {
	factor := 1.0
	if omni {
		factor = 1 + p.OmniDistanceWeight*viewToSource
	}
	raw := 1 - devDeg/p.MaxAngle*factor
	if raw < p.MinWeight {
		if p.ClipNullValues {
			return 0, false, false
		}
		return p.MinWeight, true, true
	}
	return math.Min(raw, 1), true, false
}
