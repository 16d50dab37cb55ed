package diskblend

import (
	"math"

	"ibr-renderer/internal/raster"
)

// Untouched marks stored-depth pixels no draw has written. Valid depths
// are positive view-space distances.
const Untouched = -1.0

// Targets are the two render-target pairs of the compositor. Draw targets
// hold one instance's result and are cleared before every draw; stored
// targets carry the running composite. Color holds weighted linear RGB and
// the weight sum in the fourth channel; Depth holds view depth.
type Targets struct {
	Draw   *raster.Target
	Stored *raster.Target

	// hw is the per-draw hardware-style depth buffer in the instance's
	// partition of [0, 1].
	hw []float64
}

// NewTargets allocates targets of w×h pixels.
func NewTargets(w, h int) *Targets {
	return &Targets{
		Draw:   raster.NewTarget(w, h, Untouched),
		Stored: raster.NewTarget(w, h, Untouched),
		hw:     make([]float64, w*h),
	}
}

// Fits reports whether the targets match a w×h view.
func (t *Targets) Fits(w, h int) bool {
	return t.Draw.Width == w && t.Draw.Height == h
}

func (t *Targets) clearStored() {
	t.Stored.Clear([4]float64{}, Untouched)
}

func (t *Targets) clearDraw() {
	t.Draw.Clear([4]float64{}, Untouched)
	for i := range t.hw {
		t.hw[i] = 1
	}
}

// copyWritten copies the pixels the last draw wrote into the stored
// targets.
func (t *Targets) copyWritten() int {
	n := 0
	for i, d := range t.Draw.Depth {
		if d == Untouched {
			continue
		}
		t.Stored.Depth[i] = d
		copy(t.Stored.Color[i*4:i*4+4], t.Draw.Color[i*4:i*4+4])
		n++
	}
	return n
}

// PartitionDepth maps a normalized depth z in [0, 1] of instance i out of n
// into the disjoint subrange [i/n, (i+1)/n). Precision per instance shrinks
// as n grows.
func PartitionDepth(i, n int, z float64) float64 {
	if n <= 0 {
		return z
	}
	z = math.Min(math.Max(z, 0), 1)
	hi := float64(i+1) / float64(n)
	v := (float64(i) + z) / float64(n)
	if v >= hi {
		v = math.Nextafter(hi, 0)
	}
	return v
}
