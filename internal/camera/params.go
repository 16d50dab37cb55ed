package camera

import "ibr-renderer/internal/mathutil"

// OmnidirectionalFOVSentinel is the field-of-view value written into
// parameter blocks for omnidirectional cameras. Consumers that only see the
// block (shader-style code paths) test FieldOfView.X > 180.
const OmnidirectionalFOVSentinel = 360.0

// Params is the per-draw-instance parameter block for one source camera:
// a flat, enum-free record mirroring what a GPU buffer would hold.
type Params struct {
	Position    [3]float32
	Forward     [3]float32
	FieldOfView [2]float32
	Near, Far   float32
	Index       int32
}

// EncodeParams translates a camera into its parameter block. The projection
// kind is folded into the FOV sentinel here and nowhere else.
func EncodeParams(m *Model) Params {
	fov := [2]float32{float32(m.FieldOfView[0]), float32(m.FieldOfView[1])}
	if m.Kind == Omnidirectional {
		fov = [2]float32{OmnidirectionalFOVSentinel, OmnidirectionalFOVSentinel}
	}
	f := m.Forward()
	return Params{
		Position:    [3]float32{float32(m.Pose.Position[0]), float32(m.Pose.Position[1]), float32(m.Pose.Position[2])},
		Forward:     [3]float32{float32(f[0]), float32(f[1]), float32(f[2])},
		FieldOfView: fov,
		Near:        float32(m.Range.Near),
		Far:         float32(m.Range.Far),
		Index:       int32(m.Index),
	}
}

// Kind recovers the projection kind from a parameter block.
func (p Params) Kind() ProjectionKind {
	if p.FieldOfView[0] > 180 {
		return Omnidirectional
	}
	return Perspective
}

// EncodeParamsArray builds the per-camera parameter array for a camera set.
func EncodeParamsArray(cams []Model) []Params {
	out := make([]Params, len(cams))
	for i := range cams {
		out[i] = EncodeParams(&cams[i])
	}
	return out
}

// PositionVec returns the block's position as a Vec3.
func (p Params) PositionVec() mathutil.Vec3 {
	return mathutil.Vec3{float64(p.Position[0]), float64(p.Position[1]), float64(p.Position[2])}
}

// DecodeParams rebuilds a camera from its parameter block. The block stores
// only the forward axis, so the rotation is reconstructed with world +Y as
// the up hint; resolution is not part of the block.
func DecodeParams(p Params) Model {
	m := Model{
		Kind:        p.Kind(),
		FieldOfView: [2]float64{float64(p.FieldOfView[0]), float64(p.FieldOfView[1])},
		Pose: Pose{
			Position: p.PositionVec(),
			Rotation: mathutil.LookRotation(
				mathutil.Vec3{float64(p.Forward[0]), float64(p.Forward[1]), float64(p.Forward[2])},
				mathutil.Up,
			),
		},
		Range: DistanceRange{Near: float64(p.Near), Far: float64(p.Far)},
		Index: int(p.Index),
	}
	if m.Kind == Omnidirectional {
		m.FieldOfView = [2]float64{}
	}
	return m
}
