package proxy

import (
	"errors"
	"fmt"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/depthcodec"
	"ibr-renderer/internal/mathutil"
	"ibr-renderer/internal/texture"
)

// Kind enumerates the proxy variants.
type Kind int

const (
	PerViewMesh Kind = iota
	FocalSurface
	GlobalMesh
)

func (k Kind) String() string {
	switch k {
	case PerViewMesh:
		return "per-view mesh"
	case FocalSurface:
		return "focal surface"
	case GlobalMesh:
		return "global mesh"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// GlobalCamera is the CameraIndex of proxies not owned by a source camera.
const GlobalCamera = -1

// Proxy is geometry that source views are reprojected onto. Per-view
// variants carry the owning camera's index and position; a global mesh
// carries neither.
type Proxy struct {
	Kind           Kind
	Mesh           *Mesh
	CameraIndex    int
	CameraPosition mathutil.Vec3
}

// PerView reports whether the proxy belongs to a single source camera.
func (p *Proxy) PerView() bool {
	return p.Kind != GlobalMesh && p.CameraIndex != GlobalCamera
}

// ErrNoSurface is returned when a depth layer contains no valid sample.
var ErrNoSurface = errors.New("proxy: depth layer has no surface")

// BuildPerViewMesh unprojects a grid over the depth layer of cam. Every
// step-th texel becomes a vertex carrying the source texture coordinate as
// its UV. Triangles touching a far texel are dropped. Triangles wind so
// that normals face the source camera.
func BuildPerViewMesh(cam *camera.Model, depth *texture.DepthArray, layer, step int) (*Proxy, error) {
	if layer < 0 || layer >= depth.Len() {
		return nil, fmt.Errorf("proxy: depth layer %d out of range [0, %d)", layer, depth.Len())
	}
	if step < 1 {
		step = 1
	}
	cols := (depth.Width-1)/step + 1
	rows := (depth.Height-1)/step + 1
	if cols < 2 || rows < 2 {
		return nil, fmt.Errorf("proxy: depth layer %d is %dx%d, too small for a mesh", layer, depth.Width, depth.Height)
	}

	r := depth.Ranges[layer]
	data := depth.Layers[layer]
	mesh := &Mesh{}
	remap := make([]int, cols*rows)
	for gy := 0; gy < rows; gy++ {
		py := min(gy*step, depth.Height-1)
		for gx := 0; gx < cols; gx++ {
			px := min(gx*step, depth.Width-1)
			c := float64(data[py*depth.Width+px])
			if depthcodec.IsFar(c) {
				remap[gy*cols+gx] = -1
				continue
			}
			uv := mathutil.Vec2{
				float64(px) / float64(depth.Width-1),
				float64(py) / float64(depth.Height-1),
			}
			remap[gy*cols+gx] = len(mesh.Positions)
			mesh.Positions = append(mesh.Positions, cam.TexCoordToWorld(uv, depthcodec.Decode(c, r)))
			mesh.UVs = append(mesh.UVs, uv)
		}
	}

	for gy := 0; gy < rows-1; gy++ {
		for gx := 0; gx < cols-1; gx++ {
			a := remap[gy*cols+gx]
			b := remap[gy*cols+gx+1]
			c := remap[(gy+1)*cols+gx]
			d := remap[(gy+1)*cols+gx+1]
			if a >= 0 && b >= 0 && c >= 0 {
				mesh.Indices = append(mesh.Indices, a, b, c)
			}
			if b >= 0 && c >= 0 && d >= 0 {
				mesh.Indices = append(mesh.Indices, b, d, c)
			}
		}
	}
	if len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("proxy: layer %d: %w", layer, ErrNoSurface)
	}
	mesh.RecalculateNormals()
	return &Proxy{
		Kind:           PerViewMesh,
		Mesh:           mesh,
		CameraIndex:    cam.Index,
		CameraPosition: cam.Pose.Position,
	}, nil
}

// BuildFocalSurface builds the focal surface of cam at focalDistance: a
// plane perpendicular to the optical axis for perspective cameras, a
// sphere around the camera for omnidirectional ones. The surface is a
// (subdivisions+1)² vertex grid with source texture coordinates as UVs.
func BuildFocalSurface(cam *camera.Model, focalDistance float64, subdivisions int) (*Proxy, error) {
	if !(focalDistance > 0) {
		return nil, fmt.Errorf("proxy: focal distance %g must be positive", focalDistance)
	}
	if subdivisions < 1 {
		subdivisions = 1
	}
	n := subdivisions + 1
	alongAxis := cam.Kind == camera.Perspective
	mesh := &Mesh{
		Positions: make([]mathutil.Vec3, 0, n*n),
		UVs:       make([]mathutil.Vec2, 0, n*n),
		Indices:   make([]int, 0, subdivisions*subdivisions*6),
	}
	for gy := 0; gy < n; gy++ {
		for gx := 0; gx < n; gx++ {
			uv := mathutil.Vec2{float64(gx) / float64(subdivisions), float64(gy) / float64(subdivisions)}
			local := camera.UnprojectFromTexCoord(uv, focalDistance, alongAxis, cam.Kind, cam.FieldOfView)
			mesh.Positions = append(mesh.Positions, cam.CameraToWorld(local))
			mesh.UVs = append(mesh.UVs, uv)
		}
	}
	for gy := 0; gy < subdivisions; gy++ {
		for gx := 0; gx < subdivisions; gx++ {
			a := gy*n + gx
			b := a + 1
			c := a + n
			d := c + 1
			mesh.Indices = append(mesh.Indices, a, b, c, b, d, c)
		}
	}
	mesh.RecalculateNormals()
	return &Proxy{
		Kind:           FocalSurface,
		Mesh:           mesh,
		CameraIndex:    cam.Index,
		CameraPosition: cam.Pose.Position,
	}, nil
}

// NewGlobal wraps a scene-wide mesh. Normals are computed when missing.
func NewGlobal(mesh *Mesh) (*Proxy, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	if mesh.Normals == nil {
		mesh.RecalculateNormals()
	}
	return &Proxy{Kind: GlobalMesh, Mesh: mesh, CameraIndex: GlobalCamera}, nil
}
