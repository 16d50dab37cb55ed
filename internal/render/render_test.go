package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"slices"
	"testing"
	"testing/fstest"
	"time"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/depthcodec"
	"ibr-renderer/internal/mathutil"
	"ibr-renderer/internal/raster"
	"ibr-renderer/internal/scene"
)

func pngFile(t *testing.T, c color.NRGBA) *fstest.MapFile {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return &fstest.MapFile{Data: buf.Bytes()}
}

// Four cameras on the X axis look down +Z at a quad on z=5.
const quadManifest = `{
  "name": "quad",
  "cameras": [
    {"kind": "perspective", "resolution": [4, 4], "field_of_view": [90, 0], "position": [-3, 0, 0], "near": 0.1, "far": 100, "color": "c0.png"},
    {"kind": "perspective", "resolution": [4, 4], "field_of_view": [90, 0], "position": [-1, 0, 0], "near": 0.1, "far": 100, "color": "c1.png"},
    {"kind": "perspective", "resolution": [4, 4], "field_of_view": [90, 0], "position": [1, 0, 0], "near": 0.1, "far": 100, "color": "c2.png"},
    {"kind": "perspective", "resolution": [4, 4], "field_of_view": [90, 0], "position": [3, 0, 0], "near": 0.1, "far": 100, "color": "c3.png"}
  ],
  "global_mesh": "quad.obj",
  "global_texture": "wall.png",
  "focal_distance": 5
}`

const quadOBJ = `v -1.5 -1.5 5
v 1.5 -1.5 5
v 1.5 1.5 5
v -1.5 1.5 5
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 -1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func quadScene(t *testing.T) *scene.Scene {
	t.Helper()
	fsys := fstest.MapFS{
		"scene.json": {Data: []byte(quadManifest)},
		"c0.png":     pngFile(t, color.NRGBA{255, 255, 255, 255}),
		"c1.png":     pngFile(t, color.NRGBA{255, 0, 0, 255}),
		"c2.png":     pngFile(t, color.NRGBA{0, 255, 0, 255}),
		"c3.png":     pngFile(t, color.NRGBA{0, 0, 255, 255}),
		"quad.obj":   {Data: []byte(quadOBJ)},
		"wall.png":   pngFile(t, color.NRGBA{200, 200, 0, 255}),
	}
	s, err := scene.OpenFS(fsys)
	if err != nil {
		t.Fatalf("OpenFS: %v", err)
	}
	return s
}

func testFrame(id string) *Frame {
	pose := camera.Pose{Position: mathutil.Vec3{0.9, 0, 0}, Rotation: mathutil.Mat3Identity()}
	return &Frame{ViewID: id, View: raster.NewView(pose, 60, 32, 24), FrameTime: 16 * time.Millisecond}
}

func readyInstance(t *testing.T, method string, pool *BufferPool) *Instance {
	t.Helper()
	in, err := NewInstance(method, pool, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	seq, err := in.InitializeRenderingMethod(context.Background(), quadScene(t))
	if err != nil {
		t.Fatalf("InitializeRenderingMethod: %v", err)
	}
	if err := seq.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if in.State() != Ready {
		t.Fatalf("state = %v, want ready", in.State())
	}
	return in
}

func center(t *raster.Target) [4]float64 {
	return t.Pixel(t.Width/2, t.Height/2)
}

func TestAvailable(t *testing.T) {
	tests := []struct {
		steps []scene.Step
		want  []string
	}{
		{nil, nil},
		{[]scene.Step{scene.StepFocalSurfaces}, []string{TexturedFocalSurfaces, DiskBlendedFocalSurfaces}},
		{[]scene.Step{scene.StepGlobalMesh}, []string{ULRGlobalMesh}},
		{
			[]scene.Step{scene.StepDepthMaps, scene.StepPerViewMeshes, scene.StepGlobalMesh, scene.StepGlobalTexture},
			[]string{TexturedPerViewMeshes, DiskBlendedPerViewMeshes, TexturedGlobalMesh, ULRGlobalMesh},
		},
	}
	for _, tt := range tests {
		if got := Available(tt.steps); !slices.Equal(got, tt.want) {
			t.Errorf("Available(%v) = %v, want %v", tt.steps, got, tt.want)
		}
	}
}

func TestUnknownMethod(t *testing.T) {
	if _, err := NewMethod("raytraced"); !errors.Is(err, ErrMethodUnavailable) {
		t.Errorf("NewMethod err = %v, want ErrMethodUnavailable", err)
	}
	if _, err := Requires("raytraced"); !errors.Is(err, ErrMethodUnavailable) {
		t.Errorf("Requires err = %v, want ErrMethodUnavailable", err)
	}
}

func TestInitializeUnavailable(t *testing.T) {
	in, err := NewInstance(TexturedPerViewMeshes, nil, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	// The quad scene has no depth maps.
	if _, err := in.InitializeRenderingMethod(context.Background(), quadScene(t)); !errors.Is(err, ErrMethodUnavailable) {
		t.Errorf("err = %v, want ErrMethodUnavailable", err)
	}
	if in.State() != Uninitialized {
		t.Errorf("state = %v, want uninitialized", in.State())
	}
}

func TestSequenceSteps(t *testing.T) {
	in, _ := NewInstance(ULRGlobalMesh, nil, DefaultOptions())
	seq, err := in.InitializeRenderingMethod(context.Background(), quadScene(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := in.InitializeRenderingMethod(context.Background(), quadScene(t)); !errors.Is(err, ErrBusy) {
		t.Errorf("second init err = %v, want ErrBusy", err)
	}
	steps := 0
	for {
		if in.State() != Loading {
			t.Fatalf("state = %v during loading", in.State())
		}
		if _, err := in.UpdateRenderingMethod(testFrame("a")); !errors.Is(err, ErrNotReady) {
			t.Errorf("update while loading err = %v, want ErrNotReady", err)
		}
		done, err := seq.Step()
		steps++
		if err != nil {
			t.Fatal(err)
		}
		if done {
			break
		}
	}
	if _, total := seq.Progress(); steps != total {
		t.Errorf("steps = %d, want %d", steps, total)
	}
	if in.State() != Ready {
		t.Errorf("state = %v, want ready", in.State())
	}
}

func TestSequenceAbort(t *testing.T) {
	pool := NewBufferPool(0)
	in, _ := NewInstance(ULRGlobalMesh, pool, DefaultOptions())
	seq, err := in.InitializeRenderingMethod(context.Background(), quadScene(t))
	if err != nil {
		t.Fatal(err)
	}
	seq.Step()
	seq.Step()
	if pool.Owned(in.ID) == 0 {
		t.Fatal("color array not accounted")
	}
	seq.Abort()
	if in.State() != Uninitialized {
		t.Errorf("state = %v, want uninitialized", in.State())
	}
	if n := pool.Owned(in.ID); n != 0 {
		t.Errorf("owned after abort = %d, want 0", n)
	}
	if done, err := seq.Step(); !done || err == nil {
		t.Errorf("Step after abort = %v, %v", done, err)
	}
	// A fresh initialization succeeds.
	seq, err = in.InitializeRenderingMethod(context.Background(), quadScene(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := seq.Run(); err != nil {
		t.Fatal(err)
	}
}

func TestDisposeWhileLoading(t *testing.T) {
	pool := NewBufferPool(0)
	in, _ := NewInstance(ULRGlobalMesh, pool, DefaultOptions())
	seq, err := in.InitializeRenderingMethod(context.Background(), quadScene(t))
	if err != nil {
		t.Fatal(err)
	}
	seq.Step()
	seq.Step()
	in.Dispose()
	if n := pool.Owned(in.ID); n != 0 {
		t.Fatalf("owned after dispose = %d, want 0", n)
	}

	if err := seq.Run(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Run after dispose = %v, want ErrDisposed", err)
	}
	if in.State() != Disposed {
		t.Errorf("state = %v, want disposed", in.State())
	}
	if n := pool.Owned(in.ID); n != 0 {
		t.Errorf("owned after Run = %d, want 0", n)
	}
	if _, err := in.UpdateRenderingMethod(testFrame("disposed")); !errors.Is(err, ErrDisposed) {
		t.Errorf("UpdateRenderingMethod = %v, want ErrDisposed", err)
	}
}

func TestSequenceCancelled(t *testing.T) {
	in, _ := NewInstance(ULRGlobalMesh, nil, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	seq, err := in.InitializeRenderingMethod(ctx, quadScene(t))
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := seq.Run(); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if in.State() != Uninitialized {
		t.Errorf("state = %v, want uninitialized", in.State())
	}
}

func TestResourceExhausted(t *testing.T) {
	pool := NewBufferPool(16)
	in, _ := NewInstance(ULRGlobalMesh, pool, DefaultOptions())
	seq, err := in.InitializeRenderingMethod(context.Background(), quadScene(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := seq.Run(); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("err = %v, want ErrResourceExhausted", err)
	}
	if in.State() != Disposed {
		t.Errorf("state = %v, want disposed", in.State())
	}
	if pool.Used() != 0 {
		t.Errorf("pool used = %d, want 0", pool.Used())
	}
	if _, err := in.UpdateRenderingMethod(testFrame("a")); !errors.Is(err, ErrDisposed) {
		t.Errorf("update err = %v, want ErrDisposed", err)
	}
}

func TestInvalidViewRejected(t *testing.T) {
	in := readyInstance(t, TexturedGlobalMesh, nil)
	tests := []struct {
		name  string
		frame *Frame
	}{
		{"zero pose", &Frame{ViewID: "zero", View: raster.NewView(camera.Pose{}, 60, 8, 8)}},
		{"scaled", &Frame{ViewID: "scaled", View: raster.NewView(camera.Pose{Rotation: mathutil.Mat3{2, 0, 0, 0, 2, 0, 0, 0, 2}}, 60, 8, 8)}},
		{"empty", &Frame{ViewID: "empty", View: raster.NewView(camera.IdentityPose(), 60, 0, 8)}},
	}
	for _, tt := range tests {
		if _, err := in.UpdateRenderingMethod(tt.frame); !errors.Is(err, ErrInvalidView) {
			t.Errorf("%s: err = %v, want ErrInvalidView", tt.name, err)
		}
	}
	if in.State() != Ready {
		t.Errorf("state = %v, want ready", in.State())
	}
}

func TestDisposeReleases(t *testing.T) {
	pool := NewBufferPool(0)
	in := readyInstance(t, ULRGlobalMesh, pool)
	if _, err := in.UpdateRenderingMethod(testFrame("a")); err != nil {
		t.Fatal(err)
	}
	if pool.Used() == 0 {
		t.Fatal("nothing accounted")
	}
	in.Dispose()
	in.Dispose()
	if pool.Used() != 0 {
		t.Errorf("pool used = %d, want 0", pool.Used())
	}
	if _, err := in.InitializeRenderingMethod(context.Background(), quadScene(t)); !errors.Is(err, ErrDisposed) {
		t.Errorf("init after dispose err = %v, want ErrDisposed", err)
	}
}

// The camera nearest in angle to the output camera dominates the blend.
func TestULRNearestCameraDominates(t *testing.T) {
	in := readyInstance(t, ULRGlobalMesh, nil)
	target, err := in.UpdateRenderingMethod(testFrame("a"))
	if err != nil {
		t.Fatal(err)
	}
	c := center(target)
	if !(c[1] > c[0] && c[1] > c[2]) {
		t.Errorf("center = %v, want green dominant", c)
	}

	// Without camera 2 the green source cannot contribute.
	in.ExcludeSourceView(2)
	target, err = in.UpdateRenderingMethod(testFrame("a"))
	if err != nil {
		t.Fatal(err)
	}
	if c := center(target); c[1] > 1e-9 {
		t.Errorf("center with camera 2 excluded = %v", c)
	}

	in.ExcludeSourceView(-1)
	target, _ = in.UpdateRenderingMethod(testFrame("a"))
	if c := center(target); !(c[1] > c[0] && c[1] > c[2]) {
		t.Errorf("center after restore = %v, want green dominant", c)
	}
}

// squareCams sit on the corners of a square in the z=0 plane and look down
// +Z at a wall on z=2.
var squareCams = []struct {
	pos   mathutil.Vec3
	color color.NRGBA
}{
	{mathutil.Vec3{-1, -1, 0}, color.NRGBA{255, 0, 0, 255}},
	{mathutil.Vec3{1, -1, 0}, color.NRGBA{0, 255, 0, 255}},
	{mathutil.Vec3{-1, 1, 0}, color.NRGBA{0, 0, 255, 255}},
	{mathutil.Vec3{1, 1, 0}, color.NRGBA{255, 255, 255, 255}},
}

const squareWall = 2.0

// squareScene stores each camera's view of the wall as a 9x9 precise depth
// map.
func squareScene(t *testing.T) *scene.Scene {
	t.Helper()
	const res = 9
	fov := [2]float64{120, 120}
	r := camera.DistanceRange{Near: 0.1, Far: 100}
	fsys := fstest.MapFS{}
	manifest := `{"name": "square", "depth_encoding": "precise", "cameras": [`
	for i, c := range squareCams {
		if i > 0 {
			manifest += ","
		}
		manifest += fmt.Sprintf(`{"kind": "perspective", "resolution": [%d, %d], "field_of_view": [120, 120], `+
			`"position": [%g, %g, %g], "near": 0.1, "far": 100, "color": "c%d.png", "depth": "d%d.png"}`,
			res, res, c.pos[0], c.pos[1], c.pos[2], i, i)
		fsys[fmt.Sprintf("c%d.png", i)] = pngFile(t, c.color)

		depth := image.NewNRGBA(image.Rect(0, 0, res, res))
		for y := 0; y < res; y++ {
			for x := 0; x < res; x++ {
				uv := mathutil.Vec2{float64(x) / (res - 1), float64(y) / (res - 1)}
				d := camera.DepthToDistance(uv, squareWall-c.pos[2], camera.Perspective, fov)
				depth.SetNRGBA(x, y, depthcodec.EncodePrecise(depthcodec.Encode(d, r)))
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, depth); err != nil {
			t.Fatal(err)
		}
		fsys[fmt.Sprintf("d%d.png", i)] = &fstest.MapFile{Data: buf.Bytes()}
	}
	fsys["scene.json"] = &fstest.MapFile{Data: []byte(manifest + "]}")}
	s, err := scene.OpenFS(fsys)
	if err != nil {
		t.Fatalf("OpenFS: %v", err)
	}
	return s
}

// A view from the center of a square of four cameras reproduces the
// angle-weighted blend of the sources, led by the nearest-angle ones.
func TestDiskBlendedPerViewMeshesSquare(t *testing.T) {
	opts := DefaultOptions()
	opts.DiskBlend.MaxAngle = 40
	in, err := NewInstance(DiskBlendedPerViewMeshes, NewBufferPool(0), opts)
	if err != nil {
		t.Fatal(err)
	}
	seq, err := in.InitializeRenderingMethod(context.Background(), squareScene(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := seq.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer in.Dispose()

	const size = 32
	view := raster.NewView(camera.IdentityPose(), 90, size, size)
	target, err := in.UpdateRenderingMethod(&Frame{ViewID: "center", View: view, FrameTime: 16 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	params := opts.DiskBlend.Clamped()
	tests := []struct {
		x, y    int
		nearest int
	}{
		{24, 8, 0},
		{8, 24, 3},
		{20, 12, 0},
	}
	for _, tt := range tests {
		// Wall point seen through the pixel center.
		p := mathutil.Vec3{
			squareWall * (2*(float64(tt.x)+0.5)/size - 1),
			squareWall * (1 - 2*(float64(tt.y)+0.5)/size),
			squareWall,
		}
		var want [3]float64
		var total, best, second float64
		bestCam := -1
		for i, c := range squareCams {
			dev := mathutil.Rad2Deg(mathutil.AngleBetween(p, p.Sub(c.pos)))
			w, keep, _ := params.Weight(dev, false, 0)
			if !keep {
				continue
			}
			lin := raster.Linearize([4]float64{float64(c.color.R) / 255, float64(c.color.G) / 255, float64(c.color.B) / 255, 1})
			for k := range want {
				want[k] += w * lin[k]
			}
			total += w
			switch {
			case w > best:
				best, second, bestCam = w, best, i
			case w > second:
				second = w
			}
		}
		if bestCam != tt.nearest {
			t.Fatalf("pixel (%d,%d): nearest camera = %d, want %d", tt.x, tt.y, bestCam, tt.nearest)
		}
		if share := (best + second) / total; share < 0.6 {
			t.Errorf("pixel (%d,%d): two nearest cameras carry %.2f of the weight", tt.x, tt.y, share)
		}

		got := target.Pixel(tt.x, tt.y)
		for k := range want {
			if w := want[k] / total; math.Abs(got[k]-w) > 0.02 {
				t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got[:3], [3]float64{want[0] / total, want[1] / total, want[2] / total})
				break
			}
		}
	}

	// The red camera leads at the upper right.
	if c := target.Pixel(24, 8); !(c[0] > c[1] && c[0] > c[2]) {
		t.Errorf("pixel (24,8) = %v, want red dominant", c)
	}
}

func TestULRBackgroundOutsideMesh(t *testing.T) {
	in := readyInstance(t, ULRGlobalMesh, nil)
	target, err := in.UpdateRenderingMethod(testFrame("a"))
	if err != nil {
		t.Fatal(err)
	}
	if d := target.Depth[0]; !math.IsInf(d, 1) {
		t.Errorf("corner depth = %v, want +Inf", d)
	}
	if c := target.Pixel(0, 0); c != [4]float64{0, 0, 0, 1} {
		t.Errorf("corner = %v, want background", c)
	}
}

func TestTexturedGlobalMesh(t *testing.T) {
	in := readyInstance(t, TexturedGlobalMesh, nil)
	target, err := in.UpdateRenderingMethod(testFrame("a"))
	if err != nil {
		t.Fatal(err)
	}
	c := center(target)
	want := raster.Linearize([4]float64{200.0 / 255, 200.0 / 255, 0, 1})
	for i := range 3 {
		if math.Abs(c[i]-want[i]) > 1e-3 {
			t.Errorf("center = %v, want %v", c, want)
			break
		}
	}
}

func TestFocalSurfaceMethods(t *testing.T) {
	for _, name := range []string{TexturedFocalSurfaces, DiskBlendedFocalSurfaces} {
		in := readyInstance(t, name, NewBufferPool(0))
		target, err := in.UpdateRenderingMethod(testFrame("a"))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		c := center(target)
		if c[0]+c[1]+c[2] == 0 {
			t.Errorf("%s: center = %v, want a source color", name, c)
		}
		if d := target.Depth[target.Width*target.Height/2+target.Width/2]; math.IsInf(d, 1) {
			t.Errorf("%s: center depth = +Inf", name)
		}
	}
}

func TestBufferPool(t *testing.T) {
	in, _ := NewInstance(ULRGlobalMesh, nil, DefaultOptions())
	p := NewBufferPool(100)
	if err := p.Alloc(in.ID, "a", 60); err != nil {
		t.Fatal(err)
	}
	if err := p.Alloc(in.ID, "b", 60); !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("over budget err = %v, want ErrResourceExhausted", err)
	}
	// Replacing a named buffer only counts the difference.
	if err := p.Alloc(in.ID, "a", 90); err != nil {
		t.Errorf("resize err = %v", err)
	}
	p.Free(in.ID, "a")
	if p.Used() != 0 {
		t.Errorf("Used = %d, want 0", p.Used())
	}
	p.Alloc(in.ID, "c", 10)
	if n := p.Release(in.ID); n != 10 {
		t.Errorf("Release = %d, want 10", n)
	}
}

func TestContextAttachDetach(t *testing.T) {
	pool := NewBufferPool(0)
	ctx := NewContext(pool)
	in, err := ctx.Add(ULRGlobalMesh, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := ctx.Get(in.ID); !ok || got != in {
		t.Fatal("Get did not return the added instance")
	}
	seq, err := in.InitializeRenderingMethod(context.Background(), quadScene(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := seq.Run(); err != nil {
		t.Fatal(err)
	}
	if err := ctx.AttachCamera(in.ID, "left"); err != nil {
		t.Fatal(err)
	}
	before := pool.Owned(in.ID)
	if _, err := in.UpdateRenderingMethod(testFrame("left")); err != nil {
		t.Fatal(err)
	}
	withView := pool.Owned(in.ID)
	if withView <= before {
		t.Fatalf("owned = %d, want more than %d", withView, before)
	}
	ctx.DetachCamera(in.ID, "left")
	if ctx.Attached(in.ID, "left") {
		t.Error("still attached")
	}
	if n := pool.Owned(in.ID); n != before {
		t.Errorf("owned after detach = %d, want %d", n, before)
	}

	ctx.Remove(in.ID)
	if ctx.Len() != 0 || in.State() != Disposed {
		t.Errorf("after Remove: len %d, state %v", ctx.Len(), in.State())
	}
	if err := ctx.AttachCamera(in.ID, "left"); err == nil {
		t.Error("attach to removed instance succeeded")
	}
}

func TestFork(t *testing.T) {
	pool := NewBufferPool(0)
	base := readyInstance(t, ULRGlobalMesh, pool)
	fork, err := base.Fork(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fork.ID == base.ID || fork.State() != Ready {
		t.Fatalf("fork id %v state %v", fork.ID, fork.State())
	}
	if fork.Sources() != base.Sources() {
		t.Error("fork does not share the source set")
	}
	a, _ := base.UpdateRenderingMethod(testFrame("a"))
	b, _ := fork.UpdateRenderingMethod(testFrame("a"))
	if center(a) != center(b) {
		t.Errorf("fork center = %v, base %v", center(b), center(a))
	}
	baseOwned := pool.Owned(base.ID)
	fork.Dispose()
	if pool.Owned(base.ID) != baseOwned || pool.Owned(fork.ID) != 0 {
		t.Error("disposing the fork touched the base buffers")
	}

	idle, _ := NewInstance(ULRGlobalMesh, pool, DefaultOptions())
	if _, err := idle.Fork(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("fork of idle instance err = %v, want ErrNotReady", err)
	}
}
