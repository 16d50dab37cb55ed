package render

import (
	"context"
	"fmt"
	"math"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/logger"
	"ibr-renderer/internal/raster"
	"ibr-renderer/internal/scene"
	"ibr-renderer/internal/schedule"
	"ibr-renderer/internal/ulr"
)

// ulrMethod renders the global mesh with unstructured lumigraph weights.
// Weights are computed per vertex and refreshed incrementally; fragments
// interpolate the weights of their triangle's corners.
type ulrMethod struct {
	env     *Env
	engine  *ulr.Engine
	tracker *schedule.Tracker
	params  []camera.Params
	weights map[string][]ulr.WeightSet
}

func (m *ulrMethod) Name() string { return ULRGlobalMesh }

func (m *ulrMethod) Requires() []scene.Step { return []scene.Step{scene.StepGlobalMesh} }

// Depth maps are optional; without them the occlusion check is skipped.
func (m *ulrMethod) NeedsDepth() bool { return false }

func (m *ulrMethod) Prepare(ctx context.Context, env *Env) error {
	if env.Global == nil {
		return fmt.Errorf("%w: %s needs a global mesh", ErrMethodUnavailable, ULRGlobalMesh)
	}
	m.env = env
	src := env.Sources
	p := env.Options.ULR
	if p.UseOcclusion && src.Depth == nil {
		logger.L().Warn("render: no depth maps, ULR occlusion check disabled")
	}
	m.engine = ulr.NewEngine(src.Cameras, src.Depth, p)
	m.tracker = schedule.NewTracker(env.Options.Schedule)
	m.weights = make(map[string][]ulr.WeightSet)

	m.params = camera.EncodeParamsArray(src.Cameras)
	if err := env.alloc("camera-params", int64(len(m.params))*paramsBlockBytes); err != nil {
		return err
	}
	mesh := env.Global.Mesh
	return env.alloc("global-mesh", int64(len(mesh.Positions))*vertexBytes+int64(len(mesh.Indices))*indexBytes)
}

// weightsFor returns the per-vertex weight buffer of an output camera,
// allocating it on first use.
func (m *ulrMethod) weightsFor(viewID string) ([]ulr.WeightSet, error) {
	if ws, ok := m.weights[viewID]; ok {
		return ws, nil
	}
	n := len(m.env.Global.Mesh.Positions)
	if err := m.env.alloc("vertex-weights/"+viewID, int64(n)*weightSetBytes); err != nil {
		return nil, err
	}
	ws := make([]ulr.WeightSet, n)
	m.weights[viewID] = ws
	return ws, nil
}

func (m *ulrMethod) Render(f *Frame) (*raster.Target, error) {
	mesh := m.env.Global.Mesh
	ws, err := m.weightsFor(f.ViewID)
	if err != nil {
		return nil, err
	}
	viewPos := f.View.Position()
	s := m.tracker.Next(schedule.Key{View: f.ViewID, Mesh: 0}, len(mesh.Positions), f.FrameTime)
	m.engine.ComputeRange(mesh.Positions, mesh.Normals, viewPos, ws, s.Front, s.Count)

	bg := m.env.Options.Background
	bgLin := raster.Linearize(bg)
	colors := m.env.Sources.Color
	t := raster.NewTarget(f.View.Width, f.View.Height, math.Inf(1))
	t.Clear([4]float64{bgLin[0], bgLin[1], bgLin[2], bg[3]}, math.Inf(1))

	raster.DrawMesh(&f.View, mesh, func(fr *raster.Fragment) {
		idx := fr.Y*t.Width + fr.X
		if fr.Depth >= t.Depth[idx] {
			return
		}
		t.Depth[idx] = fr.Depth
		tri := fr.Triangle
		sets := [3]*ulr.WeightSet{
			&ws[mesh.Indices[3*tri]],
			&ws[mesh.Indices[3*tri+1]],
			&ws[mesh.Indices[3*tri+2]],
		}
		o := idx * 4
		c, ok := m.engine.ShadeInterpolated(sets, fr.Bary, fr.World, colors)
		if !ok {
			// Surface present but unexplained by any source camera.
			t.Color[o], t.Color[o+1], t.Color[o+2], t.Color[o+3] = bgLin[0], bgLin[1], bgLin[2], bg[3]
			return
		}
		lin := raster.Linearize([4]float64(c))
		t.Color[o], t.Color[o+1], t.Color[o+2], t.Color[o+3] = lin[0], lin[1], lin[2], 1
	})
	return t, nil
}

func (m *ulrMethod) ExcludeSourceView(index int) {
	if m.engine != nil {
		m.engine.ExcludeSourceView(index)
		// Cached weights may reference the excluded camera.
		m.tracker.Reset()
	}
}

func (m *ulrMethod) ForgetView(viewID string) {
	if _, ok := m.weights[viewID]; !ok {
		return
	}
	delete(m.weights, viewID)
	m.tracker.Forget(viewID)
	if m.env.Pool != nil {
		m.env.Pool.Free(m.env.Owner, "vertex-weights/"+viewID)
	}
}

func (m *ulrMethod) Release() {
	m.weights = nil
	m.engine = nil
	m.params = nil
}
