package depthcodec

import (
	"math"
	"testing"

	"ibr-renderer/internal/camera"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ranges := []camera.DistanceRange{
		{Near: 0.1, Far: 10},
		{Near: 0.3, Far: 500},
		{Near: 2, Far: 2.5},
	}
	for _, r := range ranges {
		const steps = 200
		prev := -1.0
		for i := 0; i <= steps; i++ {
			d := r.Near + (r.Far-r.Near)*float64(i)/steps
			c := Encode(d, r)
			if c < 0 || c > 1 {
				t.Fatalf("Encode(%v, %v) = %v outside [0,1]", d, r, c)
			}
			if c <= prev {
				t.Errorf("Encode not strictly increasing at d=%v: %v <= %v", d, c, prev)
			}
			prev = c
			if got := Decode(c, r); math.Abs(got-d) > 1e-9*r.Far {
				t.Errorf("Decode(Encode(%v)) = %v", d, got)
			}
		}
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	r := camera.DistanceRange{Near: 1, Far: 10}
	if got := Encode(0.2, r); got != 0 {
		t.Errorf("Encode(below near) = %v, want 0", got)
	}
	if got := Encode(50, r); got != 1 {
		t.Errorf("Encode(beyond far) = %v, want 1", got)
	}
	if got := Encode(5, camera.DistanceRange{}); got != 0 {
		t.Errorf("Encode with invalid range = %v, want 0", got)
	}
}

func TestNearPrecisionExceedsFarPrecision(t *testing.T) {
	r := camera.DistanceRange{Near: 0.5, Far: 50}
	nearSlope := Encode(0.6, r) - Encode(0.5, r)
	farSlope := Encode(50, r) - Encode(49.9, r)
	if nearSlope <= farSlope {
		t.Errorf("near code span %v should exceed far code span %v", nearSlope, farSlope)
	}
}

func TestPreciseRoundTrip(t *testing.T) {
	for _, c := range []float64{0, 1e-7, 0.25, 0.5, 0.123456, 0.999999, 1} {
		got := DecodePrecise(EncodePrecise(c))
		if math.Abs(got-c) > 1.0/preciseSteps {
			t.Errorf("DecodePrecise(EncodePrecise(%v)) = %v", c, got)
		}
	}
}

func TestPreciseIsFinerThanByte(t *testing.T) {
	a, b := EncodePrecise(0.5), EncodePrecise(0.5+1.0/1000)
	if a == b {
		t.Error("precise encoding should distinguish values 1/1000 apart")
	}
}

func TestHalfRoundTrip(t *testing.T) {
	for _, c := range []float64{0, 0.25, 0.5, 1} {
		if got := DecodeHalf(EncodeHalf(c)); got != c {
			t.Errorf("DecodeHalf(EncodeHalf(%v)) = %v", c, got)
		}
	}
}

func TestPlasmaEndpoints(t *testing.T) {
	lo, hi := Plasma(0), Plasma(1)
	// Plasma starts dark blue-violet and ends bright yellow.
	if lo.B <= lo.R || hi.R <= hi.B || hi.G <= lo.G {
		t.Errorf("unexpected plasma endpoints: %v .. %v", lo, hi)
	}
}

func TestVisualizeFarIsBlack(t *testing.T) {
	img := Visualize([]float32{1, 0}, 2, 1)
	if img.Pix[0] != 0 || img.Pix[1] != 0 || img.Pix[2] != 0 {
		t.Errorf("far pixel = %v, want black", img.Pix[:4])
	}
	if img.Pix[4] == 0 && img.Pix[5] == 0 && img.Pix[6] == 0 {
		t.Error("near pixel should be colored")
	}
}
