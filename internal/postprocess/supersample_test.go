package postprocess

import (
	"image"
	"testing"
)

func fill(img *image.NRGBA, r, g, b, a uint8) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = r, g, b, a
	}
}

func TestDownsampleSize(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	fill(img, 10, 20, 30, 255)
	tests := []struct {
		w, h   int
		wantW  int
		wantH  int
		shared bool
	}{
		{32, 24, 32, 24, false},
		{64, 48, 64, 48, true},
		{0, 10, 64, 48, true},
	}
	for _, tt := range tests {
		out := Downsample(img, tt.w, tt.h)
		if b := out.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("Downsample(%d, %d) size = %v, want %dx%d", tt.w, tt.h, b, tt.wantW, tt.wantH)
		}
		if (out == img) != tt.shared {
			t.Errorf("Downsample(%d, %d) returned input = %v, want %v", tt.w, tt.h, out == img, tt.shared)
		}
	}
}

func TestDownsampleUniform(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	fill(img, 200, 100, 50, 255)
	out := Resolve(img, 4)
	if b := out.Bounds(); b.Dx() != 10 || b.Dy() != 10 {
		t.Fatalf("size = %v, want 10x10", b)
	}
	for i := 0; i < len(out.Pix); i += 4 {
		p := out.Pix[i : i+4]
		for c, want := range []int{200, 100, 50, 255} {
			if d := int(p[c]) - want; d < -1 || d > 1 {
				t.Fatalf("pixel %d = %v, want [200 100 50 255]", i/4, p)
			}
		}
	}
}

// Transparent pixels must not bleed their color into opaque neighbours.
func TestDownsampleNoHalo(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			i := img.PixOffset(x, y)
			if x < 4 {
				copy(img.Pix[i:i+4], []uint8{255, 255, 255, 255})
			} else {
				copy(img.Pix[i:i+4], []uint8{0, 0, 0, 0})
			}
		}
	}
	out := Downsample(img, 4, 4)
	for y := 0; y < 4; y++ {
		i := out.PixOffset(0, y)
		if out.Pix[i+3] > 1 && out.Pix[i] < 250 {
			t.Errorf("row %d edge = %v, want white", y, out.Pix[i:i+4])
		}
	}
}
