package mathutil

// Mat3 is a row-major 3×3 matrix: [r0c0, r0c1, r0c2, r1c0, ...]. Camera
// rotations keep the camera's right, up and forward axes in its columns.
type Mat3 [9]float64

func Mat3Identity() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Col returns column i.
func (m Mat3) Col(i int) Vec3 {
	return Vec3{m[i], m[3+i], m[6+i]}
}

// MulVec3 returns M × v.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// MulTransposeVec3 returns Mᵀ × v. For a rotation this undoes MulVec3, so
// world directions are brought into camera space without an inverse.
func (m Mat3) MulTransposeVec3(v Vec3) Vec3 {
	return Vec3{m.Col(0).Dot(v), m.Col(1).Dot(v), m.Col(2).Dot(v)}
}

// IsRotation reports whether the columns are orthonormal and right-handed
// within tol.
func (m Mat3) IsRotation(tol float64) bool {
	x, y, z := m.Col(0), m.Col(1), m.Col(2)
	for _, d := range []float64{x.Dot(x) - 1, y.Dot(y) - 1, z.Dot(z) - 1, x.Dot(y), y.Dot(z), z.Dot(x)} {
		if d > tol || d < -tol {
			return false
		}
	}
	return x.Cross(y).Sub(z).Len() <= tol
}
