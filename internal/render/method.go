package render

import (
	"context"
	"fmt"
	"image"
	"slices"
	"time"

	"github.com/google/uuid"

	"ibr-renderer/internal/diskblend"
	"ibr-renderer/internal/filter"
	"ibr-renderer/internal/proxy"
	"ibr-renderer/internal/raster"
	"ibr-renderer/internal/scene"
	"ibr-renderer/internal/schedule"
	"ibr-renderer/internal/ulr"
)

// Method names.
const (
	TexturedPerViewMeshes    = "textured-per-view-meshes"
	DiskBlendedPerViewMeshes = "disk-blended-per-view-meshes"
	TexturedFocalSurfaces    = "textured-focal-surfaces"
	DiskBlendedFocalSurfaces = "disk-blended-focal-surfaces"
	TexturedGlobalMesh       = "textured-global-mesh"
	ULRGlobalMesh            = "ulr-global-mesh"
)

// Options are the tuning values handed to every method.
type Options struct {
	ULR               ulr.Params
	Schedule          schedule.Params
	Filter            filter.Params
	DiskBlend         diskblend.Params
	MeshStep          int
	FocalDistance     float64
	FocalSubdivisions int
	Background        [4]float64 // sRGB, alpha in the fourth channel
}

// DefaultOptions returns every package's defaults.
func DefaultOptions() Options {
	return Options{
		ULR:               ulr.DefaultParams(),
		Schedule:          schedule.DefaultParams(),
		Filter:            filter.DefaultParams(),
		DiskBlend:         diskblend.DefaultParams(),
		MeshStep:          2,
		FocalDistance:     5,
		FocalSubdivisions: 16,
		Background:        [4]float64{0, 0, 0, 1},
	}
}

// Env is what a method sees while preparing: the shared source data, its
// own buffer owner, and the tuning.
type Env struct {
	Owner         uuid.UUID
	Pool          *BufferPool
	Scene         *scene.Scene
	Sources       *scene.SourceCameraSet
	Global        *proxy.Proxy // loaded when the method requires the global mesh
	GlobalTexture *image.NRGBA
	Options       Options
}

func (e *Env) alloc(name string, n int64) error {
	if e.Pool == nil {
		return nil
	}
	return e.Pool.Alloc(e.Owner, name, n)
}

// Frame is one render request for an attached output camera.
type Frame struct {
	ViewID    string
	View      raster.View
	FrameTime time.Duration // measured duration of the previous frame
}

// Method is one way of synthesizing a novel view. Implementations own the
// buffers they allocate in Prepare and free them in Release.
type Method interface {
	Name() string
	// Requires lists the processing steps the method depends on.
	Requires() []scene.Step
	// NeedsDepth reports whether loading must include depth maps.
	NeedsDepth() bool
	Prepare(ctx context.Context, env *Env) error
	Render(f *Frame) (*raster.Target, error)
	ExcludeSourceView(index int)
	// ForgetView drops per-view state kept for an output camera.
	ForgetView(viewID string)
	Release()
}

type methodInfo struct {
	name     string
	requires []scene.Step
	build    func() Method
}

var registry = []methodInfo{
	{TexturedPerViewMeshes, []scene.Step{scene.StepDepthMaps, scene.StepPerViewMeshes}, func() Method { return &perViewMethod{name: TexturedPerViewMeshes} }},
	{DiskBlendedPerViewMeshes, []scene.Step{scene.StepDepthMaps, scene.StepPerViewMeshes}, func() Method { return &perViewMethod{name: DiskBlendedPerViewMeshes, blended: true} }},
	{TexturedFocalSurfaces, []scene.Step{scene.StepFocalSurfaces}, func() Method { return &perViewMethod{name: TexturedFocalSurfaces, focal: true} }},
	{DiskBlendedFocalSurfaces, []scene.Step{scene.StepFocalSurfaces}, func() Method { return &perViewMethod{name: DiskBlendedFocalSurfaces, focal: true, blended: true} }},
	{TexturedGlobalMesh, []scene.Step{scene.StepGlobalMesh, scene.StepGlobalTexture}, func() Method { return &texturedGlobalMethod{} }},
	{ULRGlobalMesh, []scene.Step{scene.StepGlobalMesh}, func() Method { return &ulrMethod{} }},
}

// Methods returns every method name in registry order.
func Methods() []string {
	names := make([]string, len(registry))
	for i, m := range registry {
		names[i] = m.name
	}
	return names
}

// Requires returns the processing steps of a named method.
func Requires(name string) ([]scene.Step, error) {
	for _, m := range registry {
		if m.name == name {
			return slices.Clone(m.requires), nil
		}
	}
	return nil, fmt.Errorf("%w: unknown method %q", ErrMethodUnavailable, name)
}

// Available returns the methods whose required steps all appear in
// produced, in registry order.
func Available(produced []scene.Step) []string {
	var out []string
	for _, m := range registry {
		ok := true
		for _, s := range m.requires {
			if !slices.Contains(produced, s) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, m.name)
		}
	}
	return out
}

// NewMethod builds a method by name.
func NewMethod(name string) (Method, error) {
	for _, m := range registry {
		if m.name == name {
			return m.build(), nil
		}
	}
	return nil, fmt.Errorf("%w: unknown method %q", ErrMethodUnavailable, name)
}
