package render

import (
	"context"
	"fmt"

	"ibr-renderer/internal/raster"
	"ibr-renderer/internal/scene"
)

// texturedGlobalMethod draws the scene-wide mesh with its own texture.
type texturedGlobalMethod struct {
	env *Env
}

func (m *texturedGlobalMethod) Name() string { return TexturedGlobalMesh }

func (m *texturedGlobalMethod) Requires() []scene.Step {
	return []scene.Step{scene.StepGlobalMesh, scene.StepGlobalTexture}
}

func (m *texturedGlobalMethod) NeedsDepth() bool { return false }

func (m *texturedGlobalMethod) Prepare(ctx context.Context, env *Env) error {
	if env.Global == nil || env.GlobalTexture == nil {
		return fmt.Errorf("%w: %s needs a textured global mesh", ErrMethodUnavailable, TexturedGlobalMesh)
	}
	m.env = env
	mesh := env.Global.Mesh
	b := env.GlobalTexture.Rect
	bytes := int64(len(mesh.Positions))*vertexBytes + int64(len(mesh.Indices))*indexBytes +
		int64(b.Dx()*b.Dy())*texelBytes
	return env.alloc("global-mesh", bytes)
}

func (m *texturedGlobalMethod) Render(f *Frame) (*raster.Target, error) {
	return raster.RenderTextured(&f.View, []raster.TexturedMesh{{
		Mesh:    m.env.Global.Mesh,
		Sampler: raster.ImageSampler(m.env.GlobalTexture),
	}}, m.env.Options.Background), nil
}

// The global texture is not tied to any source camera.
func (m *texturedGlobalMethod) ExcludeSourceView(int) {}

func (m *texturedGlobalMethod) ForgetView(string) {}

func (m *texturedGlobalMethod) Release() {}
