// Package camera models calibrated source and output cameras and the
// projections between camera space and texture space.
//
// Camera space is +X right, +Y up, +Z forward. Texture coordinates have
// their origin at the top-left of the image with V growing downward, so the
// south pole of an omnidirectional image sits at V = 1.
package camera

import (
	"fmt"

	"ibr-renderer/internal/mathutil"
)

// ProjectionKind selects the camera model.
type ProjectionKind int

const (
	Perspective ProjectionKind = iota
	Omnidirectional
)

func (k ProjectionKind) String() string {
	switch k {
	case Perspective:
		return "perspective"
	case Omnidirectional:
		return "omnidirectional"
	default:
		return fmt.Sprintf("ProjectionKind(%d)", int(k))
	}
}

// ParseProjectionKind accepts the names produced by String.
func ParseProjectionKind(s string) (ProjectionKind, error) {
	switch s {
	case "", "perspective":
		return Perspective, nil
	case "omnidirectional", "equirectangular":
		return Omnidirectional, nil
	}
	return Perspective, fmt.Errorf("camera: unknown projection %q", s)
}

// DistanceRange is the valid [Near, Far] distance interval in meters.
type DistanceRange struct {
	Near float64
	Far  float64
}

// Valid reports whether the range can be used for reciprocal encoding.
func (r DistanceRange) Valid() bool {
	return r.Near > 0 && r.Far > r.Near
}

// Contains reports whether d lies inside the range.
func (r DistanceRange) Contains(d float64) bool {
	return d >= r.Near && d <= r.Far
}

// Pose is a rigid camera-to-world transform.
type Pose struct {
	Position mathutil.Vec3
	Rotation mathutil.Mat3 // camera-to-world; columns are right, up, forward
}

// IdentityPose places a camera at the origin looking down +Z.
func IdentityPose() Pose {
	return Pose{Rotation: mathutil.Mat3Identity()}
}

// Model is one calibrated camera. It is created once while the scene
// representation loads and is read-only afterward.
type Model struct {
	Kind        ProjectionKind
	Resolution  [2]int
	FieldOfView [2]float64 // degrees, X then Y; perspective only
	Pose        Pose
	Range       DistanceRange
	Index       int
}

// WorldToCamera expresses a world-space point in this camera's frame.
func (m *Model) WorldToCamera(p mathutil.Vec3) mathutil.Vec3 {
	return m.Pose.Rotation.MulTransposeVec3(p.Sub(m.Pose.Position))
}

// CameraToWorld maps a camera-space point to world space.
func (m *Model) CameraToWorld(p mathutil.Vec3) mathutil.Vec3 {
	return m.Pose.Rotation.MulVec3(p).Add(m.Pose.Position)
}

// Forward returns the world-space viewing direction.
func (m *Model) Forward() mathutil.Vec3 {
	return m.Pose.Rotation.Col(2)
}

// WorldToTexCoord projects a world point into this camera's texture space.
func (m *Model) WorldToTexCoord(p mathutil.Vec3) (mathutil.Vec2, bool) {
	return ProjectToTexCoord(m.WorldToCamera(p), m.Kind, m.FieldOfView)
}

// TexCoordToWorld unprojects a texture coordinate at the given distance
// from the camera center.
func (m *Model) TexCoordToWorld(uv mathutil.Vec2, distance float64) mathutil.Vec3 {
	return m.CameraToWorld(UnprojectFromTexCoord(uv, distance, false, m.Kind, m.FieldOfView))
}

// AspectRatio returns width / height, or 1 when the resolution is unset.
func (m *Model) AspectRatio() float64 {
	if m.Resolution[0] <= 0 || m.Resolution[1] <= 0 {
		return 1
	}
	return float64(m.Resolution[0]) / float64(m.Resolution[1])
}
