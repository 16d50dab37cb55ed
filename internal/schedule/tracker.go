package schedule

import (
	"time"

	"ibr-renderer/internal/logger"
)

// Key identifies one mesh rendered for one output camera.
type Key struct {
	View string
	Mesh int
}

// Tracker keeps a State per (view, mesh) pair. It is not safe for
// concurrent use; each rendering method instance owns one.
type Tracker struct {
	Params Params
	states map[Key]State
}

// NewTracker creates an empty tracker.
func NewTracker(p Params) *Tracker {
	return &Tracker{Params: p.Clamped(), states: make(map[Key]State)}
}

// Next returns the window for this frame. An unseen key, or a key whose
// vertex count changed, starts over with a full pass.
func (t *Tracker) Next(k Key, total int, frameTime time.Duration) State {
	s, ok := t.states[k]
	if !ok || s.Total != total {
		s = NewState(total)
	} else {
		s = AdvanceWindow(s, t.Params.TargetFPS, frameTime, t.Params.MaxFramesForFullPass)
	}
	t.states[k] = s
	logger.L().Debug("schedule: window", "view", k.View, "mesh", k.Mesh, "front", s.Front, "count", s.Count, "total", s.Total)
	return s
}

// Forget drops every state of view.
func (t *Tracker) Forget(view string) {
	for k := range t.states {
		if k.View == view {
			delete(t.states, k)
		}
	}
}

// Reset drops all states so that the next frame recomputes everything.
func (t *Tracker) Reset() {
	clear(t.states)
}

// Len returns the number of tracked pairs.
func (t *Tracker) Len() int {
	return len(t.states)
}
