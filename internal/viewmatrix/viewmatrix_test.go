package viewmatrix

import (
	"math"
	"testing"

	"ibr-renderer/internal/mathutil"
)

func near(a, b mathutil.Vec3) bool {
	return a.Sub(b).Len() < 1e-9
}

func TestLookAt(t *testing.T) {
	tests := []struct {
		eye, target, forward mathutil.Vec3
	}{
		{mathutil.Vec3{0, 0, 0}, mathutil.Vec3{0, 0, 5}, mathutil.Vec3{0, 0, 1}},
		{mathutil.Vec3{1, 0, 0}, mathutil.Vec3{-3, 0, 0}, mathutil.Vec3{-1, 0, 0}},
		{mathutil.Vec3{0, 2, 0}, mathutil.Vec3{0, 2, -1}, mathutil.Vec3{0, 0, -1}},
	}
	for _, tt := range tests {
		p := LookAt(tt.eye, tt.target)
		f := p.Rotation.MulVec3(mathutil.Vec3{0, 0, 1})
		if !near(f, tt.forward) {
			t.Errorf("LookAt(%v, %v) forward = %v, want %v", tt.eye, tt.target, f, tt.forward)
		}
		if up := p.Rotation.MulVec3(mathutil.Vec3{0, 1, 0}); up[1] < 0 {
			t.Errorf("LookAt(%v, %v) up = %v, want upright", tt.eye, tt.target, up)
		}
	}
}

func TestOrbit(t *testing.T) {
	center := mathutil.Vec3{1, 0, 2}
	poses := Orbit(center, 4, 30, 8)
	if len(poses) != 8 {
		t.Fatalf("len = %d, want 8", len(poses))
	}
	for i, p := range poses {
		if d := p.Position.Dist(center); math.Abs(d-4) > 1e-9 {
			t.Errorf("pose %d distance = %v, want 4", i, d)
		}
		toCenter := center.Sub(p.Position).Normalize()
		if f := p.Rotation.MulVec3(mathutil.Vec3{0, 0, 1}); !near(f, toCenter) {
			t.Errorf("pose %d forward = %v, want %v", i, f, toCenter)
		}
		if h := p.Position[1] - center[1]; math.Abs(h-2) > 1e-9 {
			t.Errorf("pose %d height = %v, want 2", i, h)
		}
	}
	if !near(poses[0].Position, mathutil.Vec3{1, 2, 2 - 4*math.Cos(mathutil.Deg2Rad(30))}) {
		t.Errorf("pose 0 = %v, want behind center", poses[0].Position)
	}
	if Orbit(center, 1, 0, 0) != nil {
		t.Error("Orbit with zero frames returned poses")
	}
}

func TestFitDistance(t *testing.T) {
	lo, hi := mathutil.Vec3{-1, -1, -1}, mathutil.Vec3{1, 1, 1}
	d := FitDistance(lo, hi, 90)
	want := math.Sqrt(3) / math.Sin(math.Pi/4)
	if math.Abs(d-want) > 1e-9 {
		t.Errorf("FitDistance = %v, want %v", d, want)
	}
	if FitDistance(lo, hi, 30) <= d {
		t.Error("narrower FOV should back the camera off")
	}
	if c := Center(lo, hi); c != (mathutil.Vec3{}) {
		t.Errorf("Center = %v, want origin", c)
	}
}
