package ulr

import "ibr-renderer/internal/mathutil"

// BlendWeight is one source camera's contribution to a point.
type BlendWeight struct {
	CameraIndex int
	UV          mathutil.Vec2 // texture coordinate in the source camera
	Weight      float64       // [0, 1]
	Relevance   float64       // lower is better
}

// WeightSet is a bounded list of blend weights ordered by relevance.
// Only the first Count entries are meaningful.
type WeightSet struct {
	Entries [MaxBlendCameras]BlendWeight
	Count   int
}

// Valid returns the meaningful entries.
func (s *WeightSet) Valid() []BlendWeight {
	return s.Entries[:s.Count]
}

// Total returns the sum of weights.
func (s *WeightSet) Total() float64 {
	var t float64
	for _, e := range s.Valid() {
		t += e.Weight
	}
	return t
}

// Has reports whether camera index appears in the set.
func (s *WeightSet) Has(index int) bool {
	for _, e := range s.Valid() {
		if e.CameraIndex == index {
			return true
		}
	}
	return false
}

// candidateList keeps the lowest-relevance candidates in ascending order.
// It holds one more slot than the caller asked for so that the best
// rejected candidate can normalize the weights.
type candidateList struct {
	items [MaxBlendCameras + 1]BlendWeight
	n     int
	limit int
}

// insert places c after every entry with equal or lower relevance, so the
// first candidate seen wins ties. The worst entry drops off when full.
func (l *candidateList) insert(c BlendWeight) {
	pos := l.n
	for pos > 0 && l.items[pos-1].Relevance > c.Relevance {
		pos--
	}
	if pos >= l.limit {
		return
	}
	end := l.n
	if end == l.limit {
		end--
	}
	for j := end; j > pos; j-- {
		l.items[j] = l.items[j-1]
	}
	l.items[pos] = c
	if l.n < l.limit {
		l.n++
	}
}
