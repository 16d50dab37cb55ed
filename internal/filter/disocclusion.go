// Package filter detects disocclusion triangles: mesh triangles of a
// per-view depth mesh that bridge a depth discontinuity and appear as a
// stretched sheet between foreground and background.
package filter

import (
	"fmt"
	"math"

	"ibr-renderer/internal/mathutil"
	"ibr-renderer/internal/proxy"
	"ibr-renderer/internal/texture"
)

// Handling selects what happens to flagged triangles.
type Handling int

const (
	// Off leaves flagged triangles untouched.
	Off Handling = iota
	// DebugColor paints flagged triangles with a fixed color.
	DebugColor
	// Blur samples flagged triangles from a coarser mip of the source image.
	Blur
)

func (h Handling) String() string {
	switch h {
	case Off:
		return "off"
	case DebugColor:
		return "debug"
	case Blur:
		return "blur"
	}
	return fmt.Sprintf("Handling(%d)", int(h))
}

// ParseHandling accepts "off", "debug" and "blur". Empty means off.
func ParseHandling(s string) (Handling, error) {
	switch s {
	case "", "off":
		return Off, nil
	case "debug":
		return DebugColor, nil
	case "blur":
		return Blur, nil
	}
	return Off, fmt.Errorf("filter: unknown disocclusion handling %q", s)
}

// Params configure detection and handling.
type Params struct {
	Orthogonality float64 // [0, 1]
	Size          float64 // [0, 1]
	Handling      Handling
	Color         texture.RGBA // DebugColor fill, sRGB
	BlurLevel     int          // mip level for Blur, [1, texture.MaxBlurLevel]
}

// DefaultParams flags triangles within ~6° of edge-on whose longest edge is
// larger than 2% of their distance, and blurs them.
func DefaultParams() Params {
	return Params{
		Orthogonality: 0.1,
		Size:          0.02,
		Handling:      Blur,
		Color:         texture.RGBA{1, 0, 1, 1},
		BlurLevel:     3,
	}
}

// Clamped returns p with thresholds in [0, 1] and a valid blur level.
func (p Params) Clamped() Params {
	p.Orthogonality = mathutil.Clamp(p.Orthogonality, 0, 1)
	p.Size = mathutil.Clamp(p.Size, 0, 1)
	p.BlurLevel = mathutil.ClampInt(p.BlurLevel, 1, texture.MaxBlurLevel)
	return p
}

// IsDisocclusionArtifact reports whether tri is nearly edge-on to the ray
// from camPos to its centroid and large relative to its distance:
//
//	|n · normalize(centroid - camPos)| < orthogonality
//	longest edge > size × |centroid - camPos|
//
// The absolute value makes the result independent of vertex winding.
// Degenerate triangles are never flagged.
func IsDisocclusionArtifact(tri [3]mathutil.Vec3, camPos mathutil.Vec3, orthogonality, size float64) bool {
	n := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))
	if n.Len() < mathutil.Epsilon || !n.IsFinite() {
		return false
	}
	n = n.Normalize()
	centroid := tri[0].Add(tri[1]).Add(tri[2]).Scale(1.0 / 3)
	toCentroid := centroid.Sub(camPos)
	dist := toCentroid.Len()
	if dist < mathutil.Epsilon {
		return false
	}
	if math.Abs(n.Dot(toCentroid.Scale(1/dist))) >= orthogonality {
		return false
	}
	longest := math.Max(tri[0].Dist(tri[1]), math.Max(tri[1].Dist(tri[2]), tri[2].Dist(tri[0])))
	return longest > size*dist
}

// MarkArtifacts classifies every triangle of a per-view proxy. Proxies
// without an owning camera are never flagged.
func MarkArtifacts(p *proxy.Proxy, params Params) []bool {
	flags := make([]bool, p.Mesh.TriangleCount())
	if !p.PerView() {
		return flags
	}
	for t := range flags {
		flags[t] = IsDisocclusionArtifact(p.Mesh.Triangle(t), p.CameraPosition, params.Orthogonality, params.Size)
	}
	return flags
}

// Recolor returns the replacement color of a flagged fragment that samples
// layer at uv. ok is false when the handling is Off.
func (p Params) Recolor(colors *texture.ColorArray, layer int, uv mathutil.Vec2) (c texture.RGBA, ok bool) {
	switch p.Handling {
	case DebugColor:
		return p.Color, true
	case Blur:
		return colors.SampleBlurred(layer, uv[0], uv[1], p.BlurLevel, texture.Clamp), true
	}
	return c, false
}
