package camera

import (
	"math"

	"ibr-renderer/internal/mathutil"
)

// InvalidTexCoord is returned for points that cannot be seen by a
// perspective camera.
var InvalidTexCoord = mathutil.Vec2{-1, -1}

// focalLengths returns the normalized focal lengths for a 2×2 sensor.
func focalLengths(fov [2]float64) (fx, fy float64) {
	fx = 1 / math.Tan(mathutil.Deg2Rad(fov[0])/2)
	fy = 1 / math.Tan(mathutil.Deg2Rad(fov[1])/2)
	return fx, fy
}

// ProjectToTexCoord maps a camera-space point to a texture coordinate.
//
// Perspective: pinhole projection onto a normalized 2×2 sensor. Points with
// z < 0 return InvalidTexCoord and false. Omnidirectional: equirectangular,
// longitude in [0, 2π) maps to U in [0, 1) and colatitude in [0, π] maps to
// V in [0, 1]; always valid.
func ProjectToTexCoord(p mathutil.Vec3, kind ProjectionKind, fov [2]float64) (mathutil.Vec2, bool) {
	if kind == Omnidirectional {
		return projectEquirect(p), true
	}
	if p[2] < 0 {
		return InvalidTexCoord, false
	}
	if p[2] == 0 {
		// On the camera plane: the projection is at infinity.
		return InvalidTexCoord, false
	}
	fx, fy := focalLengths(fov)
	x := fx * p[0] / p[2]
	y := fy * p[1] / p[2]
	return mathutil.Vec2{0.5 + 0.5*x, 0.5 - 0.5*y}, true
}

func projectEquirect(p mathutil.Vec3) mathutil.Vec2 {
	r := p.Len()
	if r < mathutil.Epsilon {
		return mathutil.Vec2{0.5, 0.5}
	}
	lon := math.Atan2(p[0], p[2]) + math.Pi
	colat := math.Acos(mathutil.Clamp(p[1]/r, -1, 1))
	u := lon / (2 * math.Pi)
	if u >= 1 {
		u -= 1
	}
	return mathutil.Vec2{u, colat / math.Pi}
}

// UnprojectFromTexCoord is the inverse of ProjectToTexCoord. value is the
// Euclidean distance from the camera center, or for perspective cameras with
// isDepthAlongAxis set, the depth along the optical axis. Omnidirectional
// cameras always interpret value as a distance.
func UnprojectFromTexCoord(uv mathutil.Vec2, value float64, isDepthAlongAxis bool, kind ProjectionKind, fov [2]float64) mathutil.Vec3 {
	if kind == Omnidirectional {
		lon := uv[0]*2*math.Pi - math.Pi
		colat := uv[1] * math.Pi
		s := math.Sin(colat)
		dir := mathutil.Vec3{s * math.Sin(lon), math.Cos(colat), s * math.Cos(lon)}
		return dir.Scale(value)
	}
	fx, fy := focalLengths(fov)
	ray := mathutil.Vec3{(2*uv[0] - 1) / fx, (1 - 2*uv[1]) / fy, 1}
	if isDepthAlongAxis {
		return ray.Scale(value)
	}
	return ray.Normalize().Scale(value)
}

// DepthToDistance converts optical-axis depth at uv into the distance from the
// camera center. Omnidirectional cameras return depth unchanged.
func DepthToDistance(uv mathutil.Vec2, depth float64, kind ProjectionKind, fov [2]float64) float64 {
	if kind == Omnidirectional {
		return depth
	}
	return UnprojectFromTexCoord(uv, depth, true, kind, fov).Len()
}
