package render

import (
	"context"
	"errors"
	"fmt"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/diskblend"
	"ibr-renderer/internal/logger"
	"ibr-renderer/internal/proxy"
	"ibr-renderer/internal/raster"
	"ibr-renderer/internal/scene"
	"ibr-renderer/internal/texture"
)

// perViewMethod renders one proxy per source camera, either per-view depth
// meshes or focal surfaces, textured with nearest-surface visibility or
// disk-blended.
type perViewMethod struct {
	name    string
	focal   bool
	blended bool

	env      *Env
	proxies  []*proxy.Proxy
	params   []camera.Params
	comp     *diskblend.Compositor
	excluded map[int]bool
}

func (m *perViewMethod) Name() string { return m.name }

func (m *perViewMethod) Requires() []scene.Step {
	if m.focal {
		return []scene.Step{scene.StepFocalSurfaces}
	}
	return []scene.Step{scene.StepDepthMaps, scene.StepPerViewMeshes}
}

func (m *perViewMethod) NeedsDepth() bool { return !m.focal }

func (m *perViewMethod) Prepare(ctx context.Context, env *Env) error {
	m.env = env
	m.excluded = make(map[int]bool)
	cams := env.Sources.Cameras
	m.params = camera.EncodeParamsArray(cams)
	if err := env.alloc("camera-params", int64(len(m.params))*paramsBlockBytes); err != nil {
		return err
	}

	focalDistance := env.Options.FocalDistance
	if env.Scene != nil && env.Scene.Manifest.FocalDistance > 0 {
		focalDistance = env.Scene.Manifest.FocalDistance
	}

	m.proxies = make([]*proxy.Proxy, 0, len(cams))
	for i := range cams {
		if err := ctx.Err(); err != nil {
			return err
		}
		var (
			p   *proxy.Proxy
			err error
		)
		if m.focal {
			p, err = proxy.BuildFocalSurface(&cams[i], focalDistance, env.Options.FocalSubdivisions)
		} else {
			p, err = proxy.BuildPerViewMesh(&cams[i], env.Sources.Depth, i, env.Options.MeshStep)
		}
		if errors.Is(err, proxy.ErrNoSurface) {
			logger.L().Warn("render: camera has no surface", "method", m.name, "camera", i)
			continue
		}
		if err != nil {
			return fmt.Errorf("render: camera %d proxy: %w", i, err)
		}
		bytes := int64(len(p.Mesh.Positions))*vertexBytes + int64(len(p.Mesh.Indices))*indexBytes
		if err := env.alloc(fmt.Sprintf("mesh-%d", i), bytes); err != nil {
			return err
		}
		m.proxies = append(m.proxies, p)
	}

	if m.blended {
		m.comp = diskblend.New(env.Options.DiskBlend)
		m.comp.Params.Background = env.Options.Background
		if !m.focal {
			fp := env.Options.Filter
			m.comp.Filter = &fp
		}
	}
	logger.L().Info("render: proxies built", "method", m.name, "proxies", len(m.proxies))
	return nil
}

func (m *perViewMethod) Render(f *Frame) (*raster.Target, error) {
	colors := m.env.Sources.Color
	if m.blended {
		if err := m.allocTargets(f); err != nil {
			return nil, err
		}
		return m.comp.CompositeSourceViews(&f.View, m.proxies, diskblend.Sources{
			Cameras: m.env.Sources.Cameras,
			Colors:  colors,
		}), nil
	}

	meshes := make([]raster.TexturedMesh, 0, len(m.proxies))
	for _, p := range m.proxies {
		if m.excluded[p.CameraIndex] {
			continue
		}
		meshes = append(meshes, raster.TexturedMesh{Mesh: p.Mesh, Sampler: layerSampler(colors, p.CameraIndex)})
	}
	return raster.RenderTextured(&f.View, meshes, m.env.Options.Background), nil
}

// allocTargets accounts the compositor's two target pairs for the view
// size.
func (m *perViewMethod) allocTargets(f *Frame) error {
	px := int64(f.View.Width) * int64(f.View.Height)
	return m.env.alloc("blend-targets", 2*px*(4+1)*8+px*8)
}

func (m *perViewMethod) ExcludeSourceView(index int) {
	if index < 0 {
		clear(m.excluded)
	} else {
		m.excluded[index] = true
	}
	if m.comp != nil {
		m.comp.ExcludeSourceView(index)
	}
}

func (m *perViewMethod) ForgetView(string) {}

func (m *perViewMethod) Release() {
	if m.comp != nil {
		m.comp.Release()
	}
	m.proxies = nil
	m.params = nil
}

func layerSampler(colors *texture.ColorArray, layer int) raster.Sampler {
	return func(u, v float64) [4]float64 {
		return [4]float64(colors.Sample(layer, u, v, texture.Clamp))
	}
}
