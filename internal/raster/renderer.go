package raster

import (
	"image"
	"math"

	"ibr-renderer/internal/proxy"
	"ibr-renderer/internal/texture"
)

// Sampler returns the sRGB color of a mesh at a texture coordinate.
type Sampler func(u, v float64) [4]float64

// TexturedMesh pairs a mesh with the function that colors it.
type TexturedMesh struct {
	Mesh    *proxy.Mesh
	Sampler Sampler
}

// DrawMesh rasterizes every triangle of mesh into the view. Fragments carry
// the triangle index.
func DrawMesh(view *View, mesh *proxy.Mesh, emit FragmentFunc) {
	var tri [3]Vertex
	hasUV := len(mesh.UVs) == len(mesh.Positions)
	for t := 0; t < mesh.TriangleCount(); t++ {
		for k := 0; k < 3; k++ {
			i := mesh.Indices[3*t+k]
			tri[k].World = mesh.Positions[i]
			if hasUV {
				tri[k].UV = mesh.UVs[i]
			}
		}
		rasterize(view, tri, t, emit)
	}
}

// RenderTextured draws meshes with a nearest-surface z-buffer. Pixels no
// mesh covers keep the background color (sRGB, alpha in the fourth channel).
// Color is stored linear; Depth holds the view-space z of the visible
// surface or +Inf.
func RenderTextured(view *View, meshes []TexturedMesh, background [4]float64) *Target {
	t := NewTarget(view.Width, view.Height, math.Inf(1))
	bg := Linearize(background)
	t.Clear([4]float64{bg[0], bg[1], bg[2], background[3]}, math.Inf(1))

	for _, m := range meshes {
		if m.Mesh == nil || m.Sampler == nil {
			continue
		}
		sample := m.Sampler
		DrawMesh(view, m.Mesh, func(f *Fragment) {
			idx := f.Y*t.Width + f.X
			if f.Depth >= t.Depth[idx] {
				return
			}
			c := sample(f.UV[0], f.UV[1])
			// Skip transparent texels
			if c[3] < 0.5 {
				return
			}
			t.Depth[idx] = f.Depth
			lin := Linearize(c)
			o := idx * 4
			t.Color[o] = lin[0]
			t.Color[o+1] = lin[1]
			t.Color[o+2] = lin[2]
			t.Color[o+3] = 1
		})
	}
	return t
}

// ImageSampler samples tex bilinearly with clamped coordinates. A nil
// texture yields a flat gray.
func ImageSampler(tex *image.NRGBA) Sampler {
	if tex == nil {
		return func(u, v float64) [4]float64 { return fallbackGray }
	}
	return func(u, v float64) [4]float64 {
		return [4]float64(texture.SampleBilinear(tex, u, v, texture.Clamp))
	}
}

var fallbackGray = [4]float64{160.0 / 255, 160.0 / 255, 170.0 / 255, 1}

// AverageColor returns the mean color of tex, used when a mesh has no UVs.
func AverageColor(tex *image.NRGBA) [4]float64 {
	b := tex.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return fallbackGray
	}

	var sumR, sumG, sumB float64
	stride := tex.Stride
	for y := 0; y < h; y++ {
		off := y * stride
		for x := 0; x < w; x++ {
			i := off + x*4
			sumR += float64(tex.Pix[i])
			sumG += float64(tex.Pix[i+1])
			sumB += float64(tex.Pix[i+2])
		}
	}
	n := float64(w*h) * 255
	return [4]float64{sumR / n, sumG / n, sumB / n, 1}
}
