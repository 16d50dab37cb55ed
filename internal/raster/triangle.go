package raster

import (
	"math"

	"ibr-renderer/internal/mathutil"
)

// Vertex is a mesh vertex handed to the rasterizer: world position plus a
// texture coordinate that is interpolated perspective-correctly.
type Vertex struct {
	World mathutil.Vec3
	UV    mathutil.Vec2
}

// Fragment is one covered pixel of a rasterized triangle.
type Fragment struct {
	X, Y     int
	Triangle int     // index within the mesh, or -1
	Depth    float64 // view-space z
	World    mathutil.Vec3
	UV       mathutil.Vec2
	Bary     [3]float64 // perspective-correct weights of the source triangle
}

// FragmentFunc receives every fragment of a triangle. Depth testing is left
// to the callback so that blending passes can apply their own rules.
type FragmentFunc func(f *Fragment)

type clipVertex struct {
	cam  mathutil.Vec3
	v    Vertex
	bary [3]float64
}

// RasterizeTriangle clips a triangle against the view's near plane, then
// walks its pixel bounding box with edge functions and emits fragments for
// pixel centers inside the triangle. Both windings are rasterized.
//
// The inner loop does not allocate.
func RasterizeTriangle(view *View, tri [3]Vertex, emit FragmentFunc) {
	rasterize(view, tri, -1, emit)
}

func rasterize(view *View, tri [3]Vertex, id int, emit FragmentFunc) {
	var in [3]clipVertex
	for i := range tri {
		in[i] = clipVertex{cam: view.toCamera(tri[i].World), v: tri[i]}
		in[i].bary[i] = 1
	}

	var poly [4]clipVertex
	n := clipNear(in, view.Near, &poly)
	if n < 3 {
		return
	}
	frag := Fragment{Triangle: id}
	rasterizeClipped(view, poly[0], poly[1], poly[2], &frag, emit)
	if n == 4 {
		rasterizeClipped(view, poly[0], poly[2], poly[3], &frag, emit)
	}
}

// clipNear clips against z = near. A triangle yields at most a quad.
func clipNear(in [3]clipVertex, near float64, out *[4]clipVertex) int {
	n := 0
	for i := 0; i < 3; i++ {
		a := in[i]
		b := in[(i+1)%3]
		aIn := a.cam[2] >= near
		bIn := b.cam[2] >= near
		if aIn {
			out[n] = a
			n++
		}
		if aIn != bIn {
			t := (near - a.cam[2]) / (b.cam[2] - a.cam[2])
			out[n] = lerpClip(a, b, t)
			n++
		}
	}
	return n
}

func lerpClip(a, b clipVertex, t float64) clipVertex {
	return clipVertex{
		cam: mathutil.LerpVec3(a.cam, b.cam, t),
		v: Vertex{
			World: mathutil.LerpVec3(a.v.World, b.v.World, t),
			UV:    mathutil.Vec2{mathutil.Lerp(a.v.UV[0], b.v.UV[0], t), mathutil.Lerp(a.v.UV[1], b.v.UV[1], t)},
		},
		bary: [3]float64{
			mathutil.Lerp(a.bary[0], b.bary[0], t),
			mathutil.Lerp(a.bary[1], b.bary[1], t),
			mathutil.Lerp(a.bary[2], b.bary[2], t),
		},
	}
}

func rasterizeClipped(view *View, a, b, c clipVertex, frag *Fragment, emit FragmentFunc) {
	x0, y0 := view.toScreen(a.cam)
	x1, y1 := view.toScreen(b.cam)
	x2, y2 := view.toScreen(c.cam)

	// Bounding box
	minX := int(math.Floor(math.Min(math.Min(x0, x1), x2)))
	maxX := int(math.Ceil(math.Max(math.Max(x0, x1), x2)))
	minY := int(math.Floor(math.Min(math.Min(y0, y1), y2)))
	maxY := int(math.Ceil(math.Max(math.Max(y0, y1), y2)))
	minX = mathutil.ClampInt(minX, 0, view.Width-1)
	maxX = mathutil.ClampInt(maxX, 0, view.Width-1)
	minY = mathutil.ClampInt(minY, 0, view.Height-1)
	maxY = mathutil.ClampInt(maxY, 0, view.Height-1)
	if minX > maxX || minY > maxY {
		return
	}

	// Barycentric setup
	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-12 && det < 1e-12 {
		return
	}
	invDet := 1.0 / det
	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	// 1/z for perspective-correct interpolation
	iz0 := 1 / a.cam[2]
	iz1 := 1 / b.cam[2]
	iz2 := 1 / c.cam[2]

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) + 0.5 - y2
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) + 0.5 - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			iz := w0*iz0 + w1*iz1 + w2*iz2
			z := 1 / iz
			p0 := w0 * iz0 * z
			p1 := w1 * iz1 * z
			p2 := w2 * iz2 * z

			frag.X = sx
			frag.Y = sy
			frag.Depth = z
			for k := 0; k < 3; k++ {
				frag.World[k] = p0*a.v.World[k] + p1*b.v.World[k] + p2*c.v.World[k]
				frag.Bary[k] = p0*a.bary[k] + p1*b.bary[k] + p2*c.bary[k]
			}
			frag.UV[0] = p0*a.v.UV[0] + p1*b.v.UV[0] + p2*c.v.UV[0]
			frag.UV[1] = p0*a.v.UV[1] + p1*b.v.UV[1] + p2*c.v.UV[1]
			emit(frag)
		}
	}
}
