package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"ibr-renderer/internal/diskblend"
	"ibr-renderer/internal/filter"
	"ibr-renderer/internal/logger"
	"ibr-renderer/internal/mathutil"
	"ibr-renderer/internal/render"
	"ibr-renderer/internal/schedule"
	"ibr-renderer/internal/ulr"
)

// Config holds all configurable paths and render settings.
type Config struct {
	// Paths
	SceneDir  string `json:"scene_dir"`
	ViewList  string `json:"view_list_xml"`
	OutputDir string `json:"output_dir"`

	// Render settings
	Method            string  `json:"method"`
	RenderWidth       int     `json:"render_width"`
	RenderHeight      int     `json:"render_height"`
	FieldOfView       float64 `json:"field_of_view"`
	Supersample       int     `json:"supersample"`
	Workers           int     `json:"workers"`
	OrbitFrames       int     `json:"orbit_frames"`
	MeshStep          int     `json:"mesh_step"`
	FocalDistance     float64 `json:"focal_distance"`
	FocalSubdivisions int     `json:"focal_subdivisions"`
	BufferBudgetMB    int     `json:"buffer_budget_mb"`

	Tuning Tuning `json:"tuning"`
}

// Tuning holds the blending knobs. Out-of-range values are clamped by
// Resolve, never rejected.
type Tuning struct {
	MaxBlendAngle         float64 `json:"max_blend_angle"`
	BlendCamCount         int     `json:"blend_cam_count"`
	ResolutionWeight      float64 `json:"resolution_weight"`
	DepthCorrectionFactor float64 `json:"depth_correction_factor"`
	UseOcclusion          *bool   `json:"use_occlusion"`
	TargetFPS             float64 `json:"target_fps"`
	MaxFramesForFullPass  int     `json:"max_frames_for_full_pass"`

	DisocclusionOrthogonality float64 `json:"disocclusion_orthogonality"`
	DisocclusionSize          float64 `json:"disocclusion_size"`
	DisocclusionHandling      string  `json:"disocclusion_handling"`

	DiskMaxAngle    float64 `json:"disk_max_angle"`
	DiskMinWeight   float64 `json:"disk_min_weight"`
	DiskDepthFactor float64 `json:"disk_depth_factor"`
	ClipNullValues  *bool   `json:"clip_null_values"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	SceneDir  string
	OutputDir string
	ViewList  string
	Method    string
	Width     int
	Height    int
	Workers   int
}

// Resolve fills in any empty fields with auto-detected defaults and clamps
// tuning parameters into range. CLI flags take priority when
// non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.SceneDir != "" {
		c.SceneDir = flags.SceneDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.ViewList != "" {
		c.ViewList = flags.ViewList
	}
	if flags.Method != "" {
		c.Method = flags.Method
	}
	if flags.Width > 0 {
		c.RenderWidth = flags.Width
	}
	if flags.Height > 0 {
		c.RenderHeight = flags.Height
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}

	if c.SceneDir == "" {
		c.SceneDir = detectSceneDir()
	}
	if c.SceneDir != "" {
		if c.OutputDir == "" {
			c.OutputDir = filepath.Join(c.SceneDir, "renders")
		}
		if c.ViewList != "" && !filepath.IsAbs(c.ViewList) {
			c.ViewList = filepath.Join(c.SceneDir, c.ViewList)
		}
	}

	// Defaults for render settings
	if c.Method == "" {
		c.Method = "ulr-global-mesh"
	}
	if c.RenderWidth <= 0 {
		c.RenderWidth = 640
	}
	if c.RenderHeight <= 0 {
		c.RenderHeight = 480
	}
	if c.FieldOfView <= 0 {
		c.FieldOfView = 60
	}
	c.FieldOfView = clampWarn("field_of_view", c.FieldOfView, 1, 179)
	if c.Supersample <= 0 {
		c.Supersample = 1
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.OrbitFrames <= 0 {
		c.OrbitFrames = 36
	}
	if c.MeshStep <= 0 {
		c.MeshStep = 2
	}
	if c.FocalDistance <= 0 {
		c.FocalDistance = 5
	}
	if c.FocalSubdivisions <= 0 {
		c.FocalSubdivisions = 16
	}
	if c.BufferBudgetMB <= 0 {
		c.BufferBudgetMB = 512
	}

	c.Tuning.resolve()
}

func (t *Tuning) resolve() {
	ud := ulr.DefaultParams()
	sd := schedule.DefaultParams()
	fd := filter.DefaultParams()
	dd := diskblend.DefaultParams()

	if t.MaxBlendAngle == 0 {
		t.MaxBlendAngle = ud.MaxBlendAngle
	}
	if t.BlendCamCount == 0 {
		t.BlendCamCount = ud.BlendCamCount
	}
	if t.DepthCorrectionFactor == 0 {
		t.DepthCorrectionFactor = ud.DepthCorrectionFactor
	}
	if t.UseOcclusion == nil {
		t.UseOcclusion = &ud.UseOcclusion
	}
	if t.TargetFPS == 0 {
		t.TargetFPS = sd.TargetFPS
	}
	if t.MaxFramesForFullPass == 0 {
		t.MaxFramesForFullPass = sd.MaxFramesForFullPass
	}
	if t.DisocclusionOrthogonality == 0 {
		t.DisocclusionOrthogonality = fd.Orthogonality
	}
	if t.DisocclusionSize == 0 {
		t.DisocclusionSize = fd.Size
	}
	if t.DisocclusionHandling == "" {
		t.DisocclusionHandling = fd.Handling.String()
	}
	if t.DiskMaxAngle == 0 {
		t.DiskMaxAngle = dd.MaxAngle
	}
	if t.DiskMinWeight == 0 {
		t.DiskMinWeight = dd.MinWeight
	}
	if t.DiskDepthFactor == 0 {
		t.DiskDepthFactor = dd.DepthFactor
	}
	if t.ClipNullValues == nil {
		t.ClipNullValues = &dd.ClipNullValues
	}

	t.MaxBlendAngle = clampWarn("max_blend_angle", t.MaxBlendAngle, 1, 180)
	t.BlendCamCount = int(clampWarn("blend_cam_count", float64(t.BlendCamCount), 1, ulr.MaxBlendCameras))
	t.ResolutionWeight = clampWarn("resolution_weight", t.ResolutionWeight, 0, 0.9)
	t.DepthCorrectionFactor = clampWarn("depth_correction_factor", t.DepthCorrectionFactor, 0, 10)
	t.TargetFPS = clampWarn("target_fps", t.TargetFPS, 1, 120)
	t.MaxFramesForFullPass = int(clampWarn("max_frames_for_full_pass", float64(t.MaxFramesForFullPass), 1, 10))
	t.DisocclusionOrthogonality = clampWarn("disocclusion_orthogonality", t.DisocclusionOrthogonality, 0, 1)
	t.DisocclusionSize = clampWarn("disocclusion_size", t.DisocclusionSize, 0, 1)
	t.DiskMaxAngle = clampWarn("disk_max_angle", t.DiskMaxAngle, 1, 180)
	t.DiskMinWeight = clampWarn("disk_min_weight", t.DiskMinWeight, 0, 1)
	t.DiskDepthFactor = clampWarn("disk_depth_factor", t.DiskDepthFactor, 0, 1)
	if _, err := filter.ParseHandling(t.DisocclusionHandling); err != nil {
		logger.L().Warn("config: disocclusion handling reset", "value", t.DisocclusionHandling, "err", err)
		t.DisocclusionHandling = fd.Handling.String()
	}
}

func clampWarn(name string, v, lo, hi float64) float64 {
	c := mathutil.Clamp(v, lo, hi)
	if c != v {
		logger.L().Warn("config: value clamped", "field", name, "value", v, "clamped", c)
	}
	return c
}

// ULRParams converts the tuning into weighting engine parameters.
func (t *Tuning) ULRParams() ulr.Params {
	p := ulr.DefaultParams()
	p.MaxBlendAngle = t.MaxBlendAngle
	p.BlendCamCount = t.BlendCamCount
	p.ResolutionWeight = t.ResolutionWeight
	p.DepthCorrectionFactor = t.DepthCorrectionFactor
	if t.UseOcclusion != nil {
		p.UseOcclusion = *t.UseOcclusion
	}
	return p.Clamped()
}

// ScheduleParams converts the tuning into scheduler parameters.
func (t *Tuning) ScheduleParams() schedule.Params {
	return schedule.Params{TargetFPS: t.TargetFPS, MaxFramesForFullPass: t.MaxFramesForFullPass}.Clamped()
}

// FilterParams converts the tuning into disocclusion filter parameters.
func (t *Tuning) FilterParams() filter.Params {
	p := filter.DefaultParams()
	p.Orthogonality = t.DisocclusionOrthogonality
	p.Size = t.DisocclusionSize
	if h, err := filter.ParseHandling(t.DisocclusionHandling); err == nil {
		p.Handling = h
	}
	return p.Clamped()
}

// DiskBlendParams converts the tuning into compositor parameters.
func (t *Tuning) DiskBlendParams() diskblend.Params {
	p := diskblend.DefaultParams()
	p.MaxAngle = t.DiskMaxAngle
	p.MinWeight = t.DiskMinWeight
	p.DepthFactor = t.DiskDepthFactor
	if t.ClipNullValues != nil {
		p.ClipNullValues = *t.ClipNullValues
	}
	return p.Clamped()
}

// RenderOptions collects everything a rendering method needs.
func (c *Config) RenderOptions() render.Options {
	o := render.DefaultOptions()
	o.ULR = c.Tuning.ULRParams()
	o.Schedule = c.Tuning.ScheduleParams()
	o.Filter = c.Tuning.FilterParams()
	o.DiskBlend = c.Tuning.DiskBlendParams()
	o.MeshStep = c.MeshStep
	o.FocalDistance = c.FocalDistance
	o.FocalSubdivisions = c.FocalSubdivisions
	return o
}

// BufferBudget returns the buffer pool budget in bytes.
func (c *Config) BufferBudget() int64 {
	return int64(c.BufferBudgetMB) << 20
}

func detectSceneDir() string {
	// Try relative to executable
	exe, _ := os.Executable()
	if exe != "" {
		dir := filepath.Dir(exe)
		for _, base := range []string{dir, filepath.Dir(dir)} {
			if hasManifest(base) {
				return base
			}
		}
	}

	// Try current working directory, then a scene/ subdirectory
	cwd, _ := os.Getwd()
	for _, base := range []string{cwd, filepath.Join(cwd, "scene")} {
		if hasManifest(base) {
			return base
		}
	}
	return ""
}

func hasManifest(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "scene.json"))
	return err == nil
}
