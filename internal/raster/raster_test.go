package raster

import (
	"image"
	"image/color"
	"math"
	"testing"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/mathutil"
	"ibr-renderer/internal/proxy"
)

func quadMesh(z0, z1 float64) *proxy.Mesh {
	return &proxy.Mesh{
		Positions: []mathutil.Vec3{{-4, 4, z0}, {4, 4, z0}, {-4, -4, z1}, {4, -4, z1}},
		UVs:       []mathutil.Vec2{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
		Indices:   []int{0, 1, 2, 1, 3, 2},
	}
}

func TestRasterizeCoversView(t *testing.T) {
	view := NewView(camera.IdentityPose(), 90, 8, 6)
	covered := make([]int, 8*6)
	DrawMesh(&view, quadMesh(2, 2), func(f *Fragment) {
		covered[f.Y*8+f.X]++
		if math.Abs(f.Depth-2) > 1e-9 {
			t.Fatalf("fragment depth = %v, want 2", f.Depth)
		}
	})
	for i, c := range covered {
		if c == 0 {
			t.Fatalf("pixel %d not covered", i)
		}
	}
}

func TestRasterizePerspectiveCorrect(t *testing.T) {
	view := NewView(camera.IdentityPose(), 90, 16, 16)
	n := 0
	DrawMesh(&view, quadMesh(2, 6), func(f *Fragment) {
		n++
		x, y, depth, ok := view.ProjectPoint(f.World)
		if !ok {
			t.Fatalf("fragment world %v behind camera", f.World)
		}
		if math.Abs(x-(float64(f.X)+0.5)) > 1e-6 || math.Abs(y-(float64(f.Y)+0.5)) > 1e-6 {
			t.Fatalf("fragment (%d,%d) world projects to (%v,%v)", f.X, f.Y, x, y)
		}
		if math.Abs(depth-f.Depth) > 1e-9 {
			t.Fatalf("depth = %v, want %v", f.Depth, depth)
		}
		// UV.y is linear in world y on this quad.
		wantV := (4 - f.World[1]) / 8
		if math.Abs(f.UV[1]-wantV) > 1e-9 {
			t.Fatalf("UV.v = %v, want %v", f.UV[1], wantV)
		}
	})
	if n == 0 {
		t.Fatal("no fragments")
	}
}

func TestRasterizeClipsNearPlane(t *testing.T) {
	view := NewView(camera.IdentityPose(), 90, 16, 16)
	tri := [3]Vertex{
		{World: mathutil.Vec3{-1, -1, 2}},
		{World: mathutil.Vec3{1, -1, 2}},
		{World: mathutil.Vec3{0, -1, -3}},
	}
	n := 0
	RasterizeTriangle(&view, tri, func(f *Fragment) {
		n++
		if f.Depth < view.Near-1e-9 {
			t.Fatalf("fragment depth %v in front of near plane", f.Depth)
		}
	})
	if n == 0 {
		t.Error("partially visible triangle produced no fragments")
	}

	behind := [3]Vertex{
		{World: mathutil.Vec3{-1, 0, -1}},
		{World: mathutil.Vec3{1, 0, -1}},
		{World: mathutil.Vec3{0, 1, -1}},
	}
	RasterizeTriangle(&view, behind, func(f *Fragment) {
		t.Fatal("triangle behind the camera produced a fragment")
	})
}

func TestRenderTexturedNearestWins(t *testing.T) {
	view := NewView(camera.IdentityPose(), 90, 4, 4)
	red := func(u, v float64) [4]float64 { return [4]float64{1, 0, 0, 1} }
	blue := func(u, v float64) [4]float64 { return [4]float64{0, 0, 1, 1} }
	target := RenderTextured(&view, []TexturedMesh{
		{Mesh: quadMesh(3, 3), Sampler: red},
		{Mesh: quadMesh(2, 2), Sampler: blue},
	}, [4]float64{0, 0, 0, 0})
	img := target.ToNRGBA()
	got := img.NRGBAAt(1, 1)
	if got != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("pixel = %v, want blue", got)
	}
	if d := target.Depth[5]; math.Abs(d-2) > 1e-9 {
		t.Errorf("depth = %v, want 2", d)
	}
}

func TestRenderTexturedBackground(t *testing.T) {
	view := NewView(camera.IdentityPose(), 60, 4, 4)
	target := RenderTextured(&view, nil, [4]float64{1, 1, 1, 1})
	if got := target.ToNRGBA().NRGBAAt(0, 0); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("background = %v, want white", got)
	}
	if !math.IsInf(target.Depth[0], 1) {
		t.Errorf("depth = %v, want +Inf", target.Depth[0])
	}
	if got := target.DepthFloat32()[0]; got != 0 {
		t.Errorf("DepthFloat32 = %v, want 0", got)
	}
}

func TestSRGBRoundTrip(t *testing.T) {
	for i := 0; i < 256; i++ {
		v := float64(i) / 255
		if got := LinearToSRGB(LinearFromByte(uint8(i))); math.Abs(got-v) > 1e-9 {
			t.Fatalf("round trip %d = %v, want %v", i, got, v)
		}
	}
}

func TestAverageColor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{0, 0, 255, 255})
	got := AverageColor(img)
	if math.Abs(got[0]-0.5) > 1e-9 || math.Abs(got[2]-0.5) > 1e-9 {
		t.Errorf("AverageColor = %v, want [0.5 0 0.5 1]", got)
	}
}
