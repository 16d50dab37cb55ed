package render

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"ibr-renderer/internal/logger"
	"ibr-renderer/internal/raster"
	"ibr-renderer/internal/scene"
)

// Instance is one rendering method's lifecycle:
// Uninitialized -> Loading -> Ready -> Disposed. It owns every buffer its
// method allocates. Not safe for concurrent use.
type Instance struct {
	ID     uuid.UUID
	method Method
	state  State
	pool   *BufferPool
	opts   Options

	env      *Env
	excluded []int
}

// NewInstance creates an uninitialized instance of the named method.
func NewInstance(name string, pool *BufferPool, opts Options) (*Instance, error) {
	m, err := NewMethod(name)
	if err != nil {
		return nil, err
	}
	return &Instance{ID: uuid.New(), method: m, pool: pool, opts: opts}, nil
}

// Name returns the method name.
func (in *Instance) Name() string { return in.method.Name() }

// State returns the lifecycle state.
func (in *Instance) State() State { return in.state }

// InitializeRenderingMethod checks that sc produced every step the method
// requires and returns the loading sequence. The host drives it with Step
// between frames; the instance becomes Ready when the sequence completes.
func (in *Instance) InitializeRenderingMethod(ctx context.Context, sc *scene.Scene) (*Sequence, error) {
	switch in.state {
	case Disposed:
		return nil, ErrDisposed
	case Loading, Ready:
		return nil, ErrBusy
	}
	for _, s := range in.method.Requires() {
		if !sc.Manifest.Has(s) {
			return nil, fmt.Errorf("%w: %s requires %s", ErrMethodUnavailable, in.method.Name(), s)
		}
	}
	in.state = Loading
	in.env = &Env{Owner: in.ID, Pool: in.pool, Scene: sc, Sources: &scene.SourceCameraSet{}, Options: in.opts}
	seq := &Sequence{ctx: ctx, inst: in}
	seq.stages = in.stages(sc)
	logger.L().Info("render: loading", "method", in.method.Name(), "instance", in.ID, "stages", len(seq.stages))
	return seq, nil
}

// stage is one suspension-free unit of loading work.
type stage struct {
	name string
	run  func(ctx context.Context) error
}

func (in *Instance) stages(sc *scene.Scene) []stage {
	env := in.env
	st := []stage{
		{"cameras", func(context.Context) error {
			cams, err := sc.LoadCameras()
			env.Sources.Cameras = cams
			return err
		}},
		{"color", func(ctx context.Context) error {
			colors, err := sc.LoadColor(ctx)
			if err != nil {
				return err
			}
			env.Sources.Color = colors
			b := colors.Layers[0].Rect
			return env.alloc("color-array", int64(colors.Len()*b.Dx()*b.Dy())*texelBytes)
		}},
	}
	if in.method.NeedsDepth() || sc.Manifest.Has(scene.StepDepthMaps) {
		required := in.method.NeedsDepth()
		st = append(st, stage{"depth", func(ctx context.Context) error {
			depth, err := sc.LoadDepth(ctx, env.Sources.Cameras)
			if errors.Is(err, scene.ErrNoDepth) && !required {
				return nil
			}
			if err != nil {
				return err
			}
			env.Sources.Depth = depth
			return env.alloc("depth-array", int64(depth.Len()*depth.Width*depth.Height)*depthTexelBytes)
		}})
	}
	st = append(st, stage{"validate", func(context.Context) error {
		return env.Sources.Validate()
	}})
	if slices.Contains(in.method.Requires(), scene.StepGlobalMesh) {
		st = append(st, stage{"global mesh", func(context.Context) error {
			p, tex, err := sc.LoadGlobalMesh()
			env.Global, env.GlobalTexture = p, tex
			return err
		}})
	}
	st = append(st, stage{"prepare", func(ctx context.Context) error {
		if err := in.method.Prepare(ctx, env); err != nil {
			return err
		}
		for _, i := range in.excluded {
			in.method.ExcludeSourceView(i)
		}
		return nil
	}})
	return st
}

// Fork creates a Ready instance of the same method that shares in's loaded
// source data read-only and prepares its own proxies and buffers. in must
// outlive the fork.
func (in *Instance) Fork(ctx context.Context) (*Instance, error) {
	if in.state != Ready {
		return nil, fmt.Errorf("render: fork %s: %w", in.method.Name(), ErrNotReady)
	}
	m, err := NewMethod(in.method.Name())
	if err != nil {
		return nil, err
	}
	f := &Instance{ID: uuid.New(), method: m, pool: in.pool, opts: in.opts, excluded: slices.Clone(in.excluded)}
	env := *in.env
	env.Owner = f.ID
	f.env = &env
	if err := m.Prepare(ctx, f.env); err != nil {
		f.release()
		f.state = Disposed
		return nil, fmt.Errorf("render: fork %s: %w", in.method.Name(), err)
	}
	for _, i := range f.excluded {
		m.ExcludeSourceView(i)
	}
	f.state = Ready
	return f, nil
}

// UpdateRenderingMethod renders one frame. The view must have a size and a
// rotation pose.
func (in *Instance) UpdateRenderingMethod(f *Frame) (*raster.Target, error) {
	switch in.state {
	case Disposed:
		return nil, ErrDisposed
	case Ready:
	default:
		return nil, ErrNotReady
	}
	if f.View.Width <= 0 || f.View.Height <= 0 || !f.View.Pose.Rotation.IsRotation(1e-6) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidView, f.ViewID)
	}
	t, err := in.method.Render(f)
	if errors.Is(err, ErrResourceExhausted) {
		in.fail(err)
	}
	return t, err
}

// ExcludeSourceView omits source camera index from blending; a negative
// index restores every camera. It may be called in any state before
// Dispose.
func (in *Instance) ExcludeSourceView(index int) {
	if index < 0 {
		in.excluded = nil
	} else {
		in.excluded = append(in.excluded, index)
	}
	if in.state == Ready {
		in.method.ExcludeSourceView(index)
	}
}

// ForgetView drops per-view state of a detached output camera.
func (in *Instance) ForgetView(viewID string) {
	if in.state == Ready {
		in.method.ForgetView(viewID)
	}
}

// Sources returns the loaded source camera set, or nil before loading.
func (in *Instance) Sources() *scene.SourceCameraSet {
	if in.env == nil {
		return nil
	}
	return in.env.Sources
}

// Dispose releases every buffer. It is idempotent.
func (in *Instance) Dispose() {
	if in.state == Disposed {
		return
	}
	in.release()
	in.state = Disposed
	logger.L().Info("render: disposed", "method", in.method.Name(), "instance", in.ID)
}

func (in *Instance) release() {
	in.method.Release()
	if in.pool != nil {
		in.pool.Release(in.ID)
	}
	in.env = nil
}

// fail disposes the instance after a fatal error.
func (in *Instance) fail(err error) {
	logger.L().Warn("render: method failed", "method", in.method.Name(), "instance", in.ID, "err", err)
	in.Dispose()
}

// Sequence is a cooperatively suspending loading sequence. Each Step runs
// one stage; the host calls it between frames until done.
type Sequence struct {
	ctx    context.Context
	inst   *Instance
	stages []stage
	next   int
	err    error
}

// Step runs the next stage. done is true once the instance is Ready or the
// sequence ended with an error. A cancelled context aborts the sequence; an
// instance disposed mid-load ends it with ErrDisposed.
func (s *Sequence) Step() (done bool, err error) {
	if s.err != nil {
		return true, s.err
	}
	if s.next >= len(s.stages) {
		return true, nil
	}
	if s.inst.state != Loading {
		// Disposed while loading.
		s.next = len(s.stages)
		s.err = fmt.Errorf("render: %s: %w", s.inst.method.Name(), ErrDisposed)
		return true, s.err
	}
	if err := s.ctx.Err(); err != nil {
		s.Abort()
		s.err = err
		return true, err
	}
	st := s.stages[s.next]
	if err := st.run(s.ctx); err != nil {
		s.err = fmt.Errorf("render: %s stage %q: %w", s.inst.method.Name(), st.name, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.Abort()
		} else {
			s.inst.fail(s.err)
		}
		return true, s.err
	}
	s.next++
	logger.L().Debug("render: stage done", "method", s.inst.method.Name(), "stage", st.name)
	if s.next == len(s.stages) {
		s.inst.state = Ready
		logger.L().Info("render: ready", "method", s.inst.method.Name(), "instance", s.inst.ID)
		return true, nil
	}
	return false, nil
}

// Run steps the sequence to completion.
func (s *Sequence) Run() error {
	for {
		done, err := s.Step()
		if done {
			return err
		}
	}
}

// Abort stops loading and releases partially acquired resources. The
// instance returns to Uninitialized and may be initialized again.
func (s *Sequence) Abort() {
	if s.inst.state != Loading {
		return
	}
	s.inst.release()
	s.inst.state = Uninitialized
	s.next = len(s.stages)
	if s.err == nil {
		s.err = context.Canceled
	}
	logger.L().Info("render: loading aborted", "method", s.inst.method.Name(), "instance", s.inst.ID)
}

// Progress returns completed and total stage counts.
func (s *Sequence) Progress() (done, total int) {
	return min(s.next, len(s.stages)), len(s.stages)
}
