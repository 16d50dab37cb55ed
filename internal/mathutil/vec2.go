package mathutil

// Vec2 is a 2-component vector, used for texture coordinates.
type Vec2 [2]float64

func (a Vec2) Add(b Vec2) Vec2 {
	return Vec2{a[0] + b[0], a[1] + b[1]}
}

func (a Vec2) Sub(b Vec2) Vec2 {
	return Vec2{a[0] - b[0], a[1] - b[1]}
}

func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v[0] * s, v[1] * s}
}

// InUnitSquare reports whether v lies inside [margin, 1-margin]².
func (v Vec2) InUnitSquare(margin float64) bool {
	return v[0] >= margin && v[0] <= 1-margin && v[1] >= margin && v[1] <= 1-margin
}
