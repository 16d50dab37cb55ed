// Package schedule amortizes per-vertex weight updates over several frames.
// Each frame refreshes a circular window of vertices whose size adapts to
// the measured frame time while guaranteeing a full pass within a bounded
// number of frames.
package schedule

import (
	"math"
	"time"

	"ibr-renderer/internal/mathutil"
)

// Params bound the scheduler.
type Params struct {
	TargetFPS            float64 // [1, 120]
	MaxFramesForFullPass int     // [1, 10]
}

// DefaultParams returns 60 fps and a full pass every 4 frames.
func DefaultParams() Params {
	return Params{TargetFPS: 60, MaxFramesForFullPass: 4}
}

// Clamped returns p forced into the valid ranges.
func (p Params) Clamped() Params {
	p.TargetFPS = mathutil.Clamp(p.TargetFPS, 1, 120)
	p.MaxFramesForFullPass = mathutil.ClampInt(p.MaxFramesForFullPass, 1, 10)
	return p
}

// State is the update window of one mesh for one output camera. Front is
// always in [0, Total) when Total > 0.
type State struct {
	Front int
	Count int
	Total int
}

// NewState starts with a window covering every vertex, so the first frame
// computes all weights.
func NewState(total int) State {
	if total < 0 {
		total = 0
	}
	return State{Front: 0, Count: total, Total: total}
}

// AdvanceWindow moves the window past the vertices processed last frame and
// sizes it for this frame:
//
//	count = max(last × 1/(targetFPS × frameTime), ceil(total/maxFrames))
//
// clamped to [1, total]. A non-positive frameTime keeps the last size.
func AdvanceWindow(s State, targetFPS float64, frameTime time.Duration, maxFrames int) State {
	if s.Total <= 0 {
		return State{}
	}
	maxFrames = max(maxFrames, 1)

	ratio := 1.0
	if secs := frameTime.Seconds(); secs > 0 && targetFPS > 0 {
		ratio = 1 / (targetFPS * secs)
	}
	adaptive := float64(s.Count) * ratio
	floor := math.Ceil(float64(s.Total) / float64(maxFrames))
	count := int(math.Min(math.Max(adaptive, floor), float64(s.Total)))

	return State{
		Front: (s.Front + s.Count) % s.Total,
		Count: mathutil.ClampInt(count, 1, s.Total),
		Total: s.Total,
	}
}

// ShouldRecomputeVertex reports whether vertex i falls in the circular
// window [Front, Front+Count) modulo Total.
func ShouldRecomputeVertex(s State, i int) bool {
	if s.Total <= 0 || i < 0 || i >= s.Total {
		return false
	}
	d := i - s.Front
	if d < 0 {
		d += s.Total
	}
	return d < s.Count
}
