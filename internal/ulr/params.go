// Package ulr implements Unstructured Lumigraph Rendering weights: for a
// surface point, select the few source cameras that best explain it and
// weight them by angular deviation and resolution.
package ulr

import "ibr-renderer/internal/mathutil"

// MaxBlendCameras is the capacity of a WeightSet.
const MaxBlendCameras = 4

// Params are the tuning knobs of the weighting engine.
type Params struct {
	MaxBlendAngle         float64 // degrees, [1, 180]
	BlendCamCount         int     // [1, MaxBlendCameras]
	ResolutionWeight      float64 // [0, 0.9]
	DepthCorrectionFactor float64 // [0, 10], fraction of expected distance
	UseOcclusion          bool
	FOVMargin             float64 // UV border rejected as outside the image, [0, 0.5)
}

// DefaultParams returns the engine defaults.
func DefaultParams() Params {
	return Params{
		MaxBlendAngle:         30,
		BlendCamCount:         MaxBlendCameras,
		ResolutionWeight:      0.2,
		DepthCorrectionFactor: 0.1,
		UseOcclusion:          true,
		FOVMargin:             0.01,
	}
}

// Clamped returns p with every field forced into its valid range.
func (p Params) Clamped() Params {
	p.MaxBlendAngle = mathutil.Clamp(p.MaxBlendAngle, 1, 180)
	p.BlendCamCount = mathutil.ClampInt(p.BlendCamCount, 1, MaxBlendCameras)
	p.ResolutionWeight = mathutil.Clamp(p.ResolutionWeight, 0, 0.9)
	p.DepthCorrectionFactor = mathutil.Clamp(p.DepthCorrectionFactor, 0, 10)
	p.FOVMargin = mathutil.Clamp(p.FOVMargin, 0, 0.49)
	return p
}
