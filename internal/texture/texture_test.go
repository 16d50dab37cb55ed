package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/depthcodec"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestLoadTextureFS(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, solid(8, 8, color.NRGBA{200, 40, 40, 255}), &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	fsys := fstest.MapFS{
		"cam0.png":  {Data: pngBytes(t, solid(3, 2, color.NRGBA{10, 20, 30, 255}))},
		"cam1.JPG":  {Data: jpg.Bytes()},
		"cam2.tga":  {Data: pngBytes(t, solid(1, 1, color.NRGBA{}))},
		"notes.txt": {Data: []byte("x")},
	}

	img, err := LoadTextureFS(fsys, "cam0.png")
	if err != nil {
		t.Fatalf("LoadTextureFS(png): %v", err)
	}
	if img.Rect.Dx() != 3 || img.Rect.Dy() != 2 {
		t.Errorf("png size = %v, want 3x2", img.Rect.Size())
	}
	if got := img.NRGBAAt(1, 1); got != (color.NRGBA{10, 20, 30, 255}) {
		t.Errorf("png pixel = %v, want {10 20 30 255}", got)
	}

	img, err = LoadTextureFS(fsys, "cam1.JPG")
	if err != nil {
		t.Fatalf("LoadTextureFS(jpg): %v", err)
	}
	if got := img.NRGBAAt(4, 4); got.A != 255 || got.R < 190 || got.G > 55 {
		t.Errorf("jpeg pixel = %v, want about {200 40 40 255}", got)
	}

	for _, name := range []string{"cam2.tga", "notes.txt", "missing.png"} {
		if _, err := LoadTextureFS(fsys, name); err == nil {
			t.Errorf("LoadTextureFS(%s) succeeded, want error", name)
		}
	}
}

func TestSampleBilinearMidpoint(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{255, 255, 255, 255})

	got := SampleBilinear(img, 0.5, 0, Clamp)
	if math.Abs(got[0]-0.5) > 1e-9 {
		t.Errorf("midpoint red = %v, want 0.5", got[0])
	}
	got = SampleBilinear(img, 1.7, 0, Clamp)
	if got[0] != 1 {
		t.Errorf("clamped red = %v, want 1", got[0])
	}
	got = SampleBilinear(img, -0.5, 0, Repeat)
	if math.Abs(got[0]-0.5) > 1e-9 {
		t.Errorf("repeat red = %v, want 0.5", got[0])
	}
}

func TestNewColorArrayRejectsMismatchedLayers(t *testing.T) {
	_, err := NewColorArray([]*image.NRGBA{
		solid(4, 4, color.NRGBA{A: 255}),
		solid(4, 2, color.NRGBA{A: 255}),
	})
	if err == nil {
		t.Error("expected size mismatch error")
	}
	if _, err := NewColorArray(nil); err == nil {
		t.Error("expected empty array error")
	}
}

func TestDepthArrayDistanceAndNeighborhood(t *testing.T) {
	r := camera.DistanceRange{Near: 0.5, Far: 20}
	dist := make([]float32, 9)
	for i := range dist {
		dist[i] = float32(1 + i)
	}
	d, err := NewDepthArray(3, 3, [][]float32{EncodeDistances(dist, r)}, []camera.DistanceRange{r})
	if err != nil {
		t.Fatalf("NewDepthArray: %v", err)
	}
	if got := d.Distance(0, 0.5, 0.5); math.Abs(got-5) > 1e-5 {
		t.Errorf("center distance = %v, want 5", got)
	}
	n := d.Neighborhood(0, 0.5, 0.5)
	for i, v := range n {
		if math.Abs(v-float64(i+1)) > 1e-4 {
			t.Errorf("neighborhood[%d] = %v, want %d", i, v, i+1)
		}
	}
	// A corner lookup clamps beyond the border.
	n = d.Neighborhood(0, 0, 0)
	if math.Abs(n[0]-1) > 1e-4 || math.Abs(n[8]-5) > 1e-4 {
		t.Errorf("corner neighborhood = %v", n)
	}
}

func TestEncodeDistancesMarksMissing(t *testing.T) {
	r := camera.DistanceRange{Near: 1, Far: 10}
	got := EncodeDistances([]float32{0, float32(math.Inf(1)), 2}, r)
	if got[0] != 1 || got[1] != 1 {
		t.Errorf("missing distances encode to %v, want far", got[:2])
	}
	if want := float32(depthcodec.Encode(2, r)); got[2] != want {
		t.Errorf("encoded = %v, want %v", got[2], want)
	}
}

func TestDepthEXRRoundTrip(t *testing.T) {
	for _, useHalf := range []bool{false, true} {
		dir := t.TempDir()
		values := []float32{0.5, 1, 2, 4, 8, 16}
		f, err := os.Create(filepath.Join(dir, "depth.exr"))
		if err != nil {
			t.Fatal(err)
		}
		if err := WriteDepthEXR(f, values, 3, 2, useHalf); err != nil {
			t.Fatalf("WriteDepthEXR(half=%v): %v", useHalf, err)
		}
		f.Close()

		got, w, h, err := LoadDepthEXR(os.DirFS(dir), "depth.exr")
		if err != nil {
			t.Fatalf("LoadDepthEXR(half=%v): %v", useHalf, err)
		}
		if w != 3 || h != 2 {
			t.Fatalf("size = %dx%d, want 3x2", w, h)
		}
		for i := range values {
			if got[i] != values[i] {
				t.Errorf("half=%v value[%d] = %v, want %v", useHalf, i, got[i], values[i])
			}
		}
	}
}

func TestIndexAndCache(t *testing.T) {
	red := pngBytes(t, solid(2, 2, color.NRGBA{255, 0, 0, 255}))
	fsys := fstest.MapFS{
		"color/cam_000.png": {Data: red},
		"color/cam_000.jpg": {Data: []byte("lossy duplicate")},
		"color/notes.txt":   {Data: []byte("skip")},
	}
	idx := BuildIndex(fsys, "color")
	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", idx.Len())
	}
	p, ok := idx.ResolvePath(`scene\color\CAM_000.jpg`)
	if !ok || p != "color/cam_000.png" {
		t.Errorf("ResolvePath = %q, %v; want color/cam_000.png", p, ok)
	}

	c := NewCache(fsys, idx)
	img := c.Resolve("cam_000")
	if img == nil {
		t.Fatal("Resolve returned nil")
	}
	if img.Pix[0] != 255 || img.Pix[1] != 0 {
		t.Errorf("pixel = %v, want red", img.Pix[:4])
	}
	if again := c.Resolve("cam_000"); again != img {
		t.Error("second Resolve should hit the cache")
	}
	if c.Resolve("missing") != nil {
		t.Error("unknown texture should resolve to nil")
	}
}

func TestBlurredLevels(t *testing.T) {
	a, err := NewColorArray([]*image.NRGBA{solid(64, 32, color.NRGBA{10, 20, 30, 255})})
	if err != nil {
		t.Fatal(err)
	}
	b := a.Blurred(0, 2)
	if b.Rect.Dx() != 16 || b.Rect.Dy() != 8 {
		t.Errorf("level 2 size = %v, want 16x8", b.Rect.Size())
	}
	if a.Blurred(0, 2) != b {
		t.Error("blurred level should be cached")
	}
	if a.Blurred(0, 0) != a.Layers[0] {
		t.Error("level 0 should be the layer itself")
	}
	got := a.SampleBlurred(0, 0.3, 0.7, 2, Clamp)
	if math.Abs(got[0]-10.0/255) > 2.0/255 {
		t.Errorf("blurred solid color red = %v, want ≈ %v", got[0], 10.0/255)
	}
}
