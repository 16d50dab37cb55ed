// Package scene loads a prepared scene representation: calibrated source
// cameras, their color and depth images, and the proxies produced by the
// upstream processing steps.
package scene

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/mathutil"
)

// ManifestName is the manifest file at the scene root.
const ManifestName = "scene.json"

// Step is an upstream processing step whose output rendering methods
// depend on.
type Step string

const (
	StepPerViewMeshes Step = "PerViewMeshes"
	StepFocalSurfaces Step = "FocalSurfaces"
	StepGlobalMesh    Step = "GlobalMesh"
	StepGlobalTexture Step = "GlobalTexture"
	StepDepthMaps     Step = "DepthMaps"
)

// Depth encodings of the per-camera depth files.
const (
	// DepthDistance files are float EXRs of metric distance (0 = no surface).
	DepthDistance = "distance"
	// DepthPrecise files are PNGs holding the reciprocal-encoded value
	// packed across the RGB channels.
	DepthPrecise = "precise"
)

// CameraEntry is one source camera in the manifest.
type CameraEntry struct {
	Name        string      `json:"name"`
	Kind        string      `json:"kind"`
	Resolution  [2]int      `json:"resolution"`
	FieldOfView [2]float64  `json:"field_of_view"`
	Position    [3]float64  `json:"position"`
	Rotation    *[4]float64 `json:"rotation,omitempty"` // quaternion x, y, z, w
	Euler       *[3]float64 `json:"euler,omitempty"`    // degrees, XYZ
	Near        float64     `json:"near"`
	Far         float64     `json:"far"`
	Color       string      `json:"color"`
	Depth       string      `json:"depth,omitempty"`
}

// MeshPose places the global mesh in world space when its file uses a
// different frame.
type MeshPose struct {
	Position [3]float64  `json:"position"`
	Rotation *[4]float64 `json:"rotation,omitempty"` // quaternion x, y, z, w
}

// Matrix returns the mesh-to-world transform.
func (p *MeshPose) Matrix() mathutil.Mat4 {
	rot := mathutil.Mat3Identity()
	if p.Rotation != nil {
		rot = mathutil.QuatToMat3(mathutil.Quat(*p.Rotation).Normalize())
	}
	return mathutil.FromMat3Translation(rot, mathutil.Vec3(p.Position))
}

// Manifest describes a scene directory.
type Manifest struct {
	Name          string        `json:"name"`
	Cameras       []CameraEntry `json:"cameras"`
	DepthEncoding string        `json:"depth_encoding,omitempty"`
	GlobalMesh    string        `json:"global_mesh,omitempty"`
	GlobalPose    *MeshPose     `json:"global_mesh_pose,omitempty"`
	GlobalTexture string        `json:"global_texture,omitempty"`
	FocalDistance float64       `json:"focal_distance,omitempty"`
	Steps         []Step        `json:"steps,omitempty"`
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("scene: parse manifest: %w", err)
	}
	if len(m.Cameras) == 0 {
		return nil, fmt.Errorf("scene: manifest lists no cameras")
	}
	switch m.DepthEncoding {
	case "":
		m.DepthEncoding = DepthDistance
	case DepthDistance, DepthPrecise:
	default:
		return nil, fmt.Errorf("scene: unknown depth encoding %q", m.DepthEncoding)
	}
	if m.Steps == nil {
		m.Steps = m.inferSteps()
	}
	return &m, nil
}

// inferSteps derives the produced steps from the files a manifest lists.
func (m *Manifest) inferSteps() []Step {
	steps := []Step{StepFocalSurfaces}
	if m.hasDepth() {
		steps = append(steps, StepDepthMaps, StepPerViewMeshes)
	}
	if m.GlobalMesh != "" {
		steps = append(steps, StepGlobalMesh)
		if m.GlobalTexture != "" {
			steps = append(steps, StepGlobalTexture)
		}
	}
	return steps
}

func (m *Manifest) hasDepth() bool {
	for _, c := range m.Cameras {
		if c.Depth == "" {
			return false
		}
	}
	return true
}

// Has reports whether step was produced.
func (m *Manifest) Has(step Step) bool {
	return slices.Contains(m.Steps, step)
}

// Model converts entry i into a camera model.
func (e *CameraEntry) Model(index int) (camera.Model, error) {
	kind, err := camera.ParseProjectionKind(e.Kind)
	if err != nil {
		return camera.Model{}, fmt.Errorf("scene: camera %d: %w", index, err)
	}
	r := camera.DistanceRange{Near: e.Near, Far: e.Far}
	if !r.Valid() {
		return camera.Model{}, fmt.Errorf("scene: camera %d: invalid distance range [%g, %g]", index, e.Near, e.Far)
	}
	if e.Resolution[0] <= 0 || e.Resolution[1] <= 0 {
		return camera.Model{}, fmt.Errorf("scene: camera %d: invalid resolution %v", index, e.Resolution)
	}
	fov := e.FieldOfView
	if kind == camera.Perspective {
		if fov[0] <= 0 || fov[0] >= 180 {
			return camera.Model{}, fmt.Errorf("scene: camera %d: horizontal field of view %g out of (0, 180)", index, fov[0])
		}
		if fov[1] <= 0 {
			// Derive the vertical FOV from the aspect ratio.
			aspect := float64(e.Resolution[0]) / float64(e.Resolution[1])
			fov[1] = mathutil.Rad2Deg(2 * math.Atan(math.Tan(mathutil.Deg2Rad(fov[0])/2)/aspect))
		}
	} else {
		fov = [2]float64{}
	}

	rot := mathutil.Mat3Identity()
	switch {
	case e.Rotation != nil:
		rot = mathutil.QuatToMat3(mathutil.Quat(*e.Rotation).Normalize())
	case e.Euler != nil:
		q := mathutil.EulerToQuat(mathutil.Deg2Rad(e.Euler[0]), mathutil.Deg2Rad(e.Euler[1]), mathutil.Deg2Rad(e.Euler[2]))
		rot = mathutil.QuatToMat3(q)
	}
	return camera.Model{
		Kind:        kind,
		Resolution:  e.Resolution,
		FieldOfView: fov,
		Pose:        camera.Pose{Position: mathutil.Vec3(e.Position), Rotation: rot},
		Range:       r,
		Index:       index,
	}, nil
}
