package ulr

import (
	"math"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/logger"
	"ibr-renderer/internal/mathutil"
	"ibr-renderer/internal/texture"
)

// Engine selects and weights source cameras for surface points.
type Engine struct {
	Cameras []camera.Model
	Depth   *texture.DepthArray // optional, enables the occlusion check
	Params  Params

	excluded []bool
}

// NewEngine creates an engine over cams. depth may be nil.
func NewEngine(cams []camera.Model, depth *texture.DepthArray, p Params) *Engine {
	return &Engine{
		Cameras:  cams,
		Depth:    depth,
		Params:   p.Clamped(),
		excluded: make([]bool, len(cams)),
	}
}

// ExcludeSourceView omits camera index from every later selection. A
// negative index clears all exclusions.
func (e *Engine) ExcludeSourceView(index int) {
	if index < 0 {
		clear(e.excluded)
		return
	}
	if index < len(e.excluded) {
		e.excluded[index] = true
	}
}

// Excluded reports whether camera index is omitted from blending.
func (e *Engine) Excluded(index int) bool {
	return index >= 0 && index < len(e.excluded) && e.excluded[index]
}

// SelectBlendCameras returns at most maxCount weighted source cameras for a
// world point with outward normal seen from viewPos. maxCount is clamped to
// the configured blend camera count.
//
// A candidate is rejected when its angular deviation from the viewing ray
// exceeds MaxBlendAngle, when the surface faces away from it, when the
// point projects outside its image, or when its depth map disagrees with
// the point's distance anywhere in the 3×3 neighborhood. Relevance mixes
// normalized angular deviation with a resolution penalty; the weight of
// each kept candidate is normalized by the relevance of the best rejected
// one.
func (e *Engine) SelectBlendCameras(point, normal mathutil.Vec3, maxCount int, viewPos mathutil.Vec3) WeightSet {
	var out WeightSet
	if !point.IsFinite() || !normal.IsFinite() {
		return out
	}
	p := e.Params
	k := mathutil.ClampInt(min(maxCount, p.BlendCamCount), 1, MaxBlendCameras)
	list := candidateList{limit: k + 1}

	viewToPoint := point.Sub(viewPos)
	viewDist := viewToPoint.Len()
	for i := range e.Cameras {
		if e.Excluded(i) {
			continue
		}
		cam := &e.Cameras[i]
		srcToPoint := point.Sub(cam.Pose.Position)
		srcDist := srcToPoint.Len()
		if srcDist < mathutil.Epsilon {
			continue
		}

		dev := mathutil.Rad2Deg(mathutil.AngleBetween(viewToPoint, srcToPoint)) / p.MaxBlendAngle
		if !(dev <= 1) {
			continue
		}
		if srcToPoint.Dot(normal) >= 0 {
			continue
		}

		uv, ok := cam.WorldToTexCoord(point)
		if !ok || !uv.InUnitSquare(p.FOVMargin) {
			continue
		}

		if p.UseOcclusion && e.Depth != nil && i < e.Depth.Len() && e.occluded(i, uv, srcDist) {
			continue
		}

		res := 0.0
		if viewDist < srcDist {
			res = 1 - viewDist/srcDist
		}
		rel := (1-p.ResolutionWeight)*dev + p.ResolutionWeight*res
		list.insert(BlendWeight{CameraIndex: i, UV: uv, Relevance: rel})
	}

	threshold := 1.0
	if list.n > k {
		threshold = list.items[k].Relevance
	}
	out.Count = min(list.n, k)
	for j := 0; j < out.Count; j++ {
		c := list.items[j]
		w := 1.0
		if threshold > 0 {
			w = math.Max(0, 1-c.Relevance/threshold)
		}
		c.Weight = mathutil.Clamp(w, 0, 1)
		out.Entries[j] = c
	}
	return out
}

// occluded compares the point distance against the source depth map. All
// nine neighborhood samples must agree within the correction tolerance.
func (e *Engine) occluded(i int, uv mathutil.Vec2, actual float64) bool {
	tol := e.Params.DepthCorrectionFactor
	for _, expected := range e.Depth.Neighborhood(i, uv[0], uv[1]) {
		if math.Abs(expected-actual) > tol*expected {
			return true
		}
	}
	return false
}

// ComputeRange refreshes dst for count vertices starting at start, wrapping
// modulo the vertex count. It returns the number of vertices with at least
// one contributing camera.
func (e *Engine) ComputeRange(positions, normals []mathutil.Vec3, viewPos mathutil.Vec3, dst []WeightSet, start, count int) int {
	n := len(positions)
	if n == 0 || len(dst) < n || len(normals) < n {
		return 0
	}
	covered := 0
	for j := 0; j < count && j < n; j++ {
		i := (start + j) % n
		dst[i] = e.SelectBlendCameras(positions[i], normals[i], e.Params.BlendCamCount, viewPos)
		if dst[i].Total() > 0 {
			covered++
		}
	}
	logger.L().Debug("ulr: weights refreshed", "start", start, "count", count, "covered", covered)
	return covered
}

// Shade blends source colors with ws. It returns false when no camera
// contributes.
func Shade(ws *WeightSet, colors *texture.ColorArray) (texture.RGBA, bool) {
	var acc texture.RGBA
	var total float64
	for _, e := range ws.Valid() {
		if e.Weight <= 0 || e.CameraIndex < 0 || e.CameraIndex >= colors.Len() {
			continue
		}
		c := colors.Sample(e.CameraIndex, e.UV[0], e.UV[1], texture.Clamp)
		for ch := 0; ch < 4; ch++ {
			acc[ch] += e.Weight * c[ch]
		}
		total += e.Weight
	}
	if total <= 0 {
		return acc, false
	}
	for ch := 0; ch < 4; ch++ {
		acc[ch] /= total
	}
	return acc, true
}

// ShadeInterpolated shades a fragment of a triangle whose corners carry
// weight sets. Each camera's weight is interpolated with bary (zero at
// corners that do not list it) and its color is fetched by projecting the
// fragment's world position.
func (e *Engine) ShadeInterpolated(sets [3]*WeightSet, bary [3]float64, world mathutil.Vec3, colors *texture.ColorArray) (texture.RGBA, bool) {
	var (
		cams    [3 * MaxBlendCameras]int
		weights [3 * MaxBlendCameras]float64
		n       int
	)
	for k, s := range sets {
		if s == nil {
			continue
		}
		for _, entry := range s.Valid() {
			w := bary[k] * entry.Weight
			if w <= 0 {
				continue
			}
			j := 0
			for j < n && cams[j] != entry.CameraIndex {
				j++
			}
			if j == n {
				cams[n] = entry.CameraIndex
				n++
			}
			weights[j] += w
		}
	}

	var acc texture.RGBA
	var total float64
	for j := 0; j < n; j++ {
		idx := cams[j]
		if idx < 0 || idx >= len(e.Cameras) || idx >= colors.Len() {
			continue
		}
		uv, ok := e.Cameras[idx].WorldToTexCoord(world)
		if !ok {
			continue
		}
		c := colors.Sample(idx, uv[0], uv[1], texture.Clamp)
		for ch := 0; ch < 4; ch++ {
			acc[ch] += weights[j] * c[ch]
		}
		total += weights[j]
	}
	if total <= 0 {
		return acc, false
	}
	for ch := 0; ch < 4; ch++ {
		acc[ch] /= total
	}
	return acc, true
}
