package mathutil

import "math"

// RotX returns a 3×3 rotation matrix around the X axis. Angle in radians.
func RotX(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}
}

// RotY returns a 3×3 rotation matrix around the Y axis.
func RotY(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(r float64) float64 {
	return r * 180 / math.Pi
}

// Mat3FromColumns builds a matrix whose columns are x, y and z.
func Mat3FromColumns(x, y, z Vec3) Mat3 {
	return Mat3{
		x[0], y[0], z[0],
		x[1], y[1], z[1],
		x[2], y[2], z[2],
	}
}

// LookRotation returns the camera-to-world rotation for a camera looking
// along forward with the given approximate up vector. Columns are the
// camera's right, up and forward axes in world space. When forward and up
// are parallel a fallback up axis is used.
func LookRotation(forward, up Vec3) Mat3 {
	f := forward.Normalize()
	if f.Len() < Epsilon {
		return Mat3Identity()
	}
	r := up.Cross(f)
	if r.Len() < 1e-9 {
		r = Vec3{0, 0, 1}.Cross(f)
		if r.Len() < 1e-9 {
			r = Vec3{1, 0, 0}
		}
	}
	r = r.Normalize()
	u := f.Cross(r)
	return Mat3FromColumns(r, u, f)
}
