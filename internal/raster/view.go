package raster

import (
	"math"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/mathutil"
)

// View is the output camera a frame is rendered from: a perspective camera
// plus the pixel size of the target.
type View struct {
	Pose        camera.Pose
	FieldOfView [2]float64 // degrees
	Width       int
	Height      int
	Near        float64
	Far         float64
}

// NewView builds a view whose vertical FOV follows from the horizontal FOV
// and the target aspect ratio.
func NewView(pose camera.Pose, fovX float64, w, h int) View {
	aspect := float64(w) / float64(h)
	fovY := mathutil.Rad2Deg(2 * math.Atan(math.Tan(mathutil.Deg2Rad(fovX)/2)/aspect))
	return View{
		Pose:        pose,
		FieldOfView: [2]float64{fovX, fovY},
		Width:       w,
		Height:      h,
		Near:        0.01,
		Far:         1000,
	}
}

// Position returns the view camera center in world space.
func (v *View) Position() mathutil.Vec3 {
	return v.Pose.Position
}

// Model returns the view as a perspective camera model.
func (v *View) Model() camera.Model {
	return camera.Model{
		Kind:        camera.Perspective,
		Resolution:  [2]int{v.Width, v.Height},
		FieldOfView: v.FieldOfView,
		Pose:        v.Pose,
		Range:       camera.DistanceRange{Near: v.Near, Far: v.Far},
		Index:       -1,
	}
}

// toCamera expresses a world point in the view's camera frame.
func (v *View) toCamera(p mathutil.Vec3) mathutil.Vec3 {
	return v.Pose.Rotation.MulTransposeVec3(p.Sub(v.Pose.Position))
}

// toScreen maps a camera-space point with z > 0 to pixel coordinates.
func (v *View) toScreen(c mathutil.Vec3) (x, y float64) {
	fx := 1 / math.Tan(mathutil.Deg2Rad(v.FieldOfView[0])/2)
	fy := 1 / math.Tan(mathutil.Deg2Rad(v.FieldOfView[1])/2)
	x = (0.5 + 0.5*fx*c[0]/c[2]) * float64(v.Width)
	y = (0.5 - 0.5*fy*c[1]/c[2]) * float64(v.Height)
	return x, y
}

// ProjectPoint returns the pixel position and view depth of a world point,
// and false when it lies behind the near plane.
func (v *View) ProjectPoint(p mathutil.Vec3) (x, y, depth float64, ok bool) {
	c := v.toCamera(p)
	if c[2] < v.Near {
		return 0, 0, 0, false
	}
	x, y = v.toScreen(c)
	return x, y, c[2], true
}
