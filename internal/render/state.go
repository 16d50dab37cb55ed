package render

import "fmt"

// State is the lifecycle state of a method instance.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
