package batch

import (
	"encoding/json"
	"os"
	"time"
)

// Manifest describes one batch run.
type Manifest struct {
	Scene   string          `json:"scene"`
	Method  string          `json:"method"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Created time.Time       `json:"created"`
	Views   []ManifestEntry `json:"views"`
}

// ManifestEntry represents one rendered view in the output manifest.
type ManifestEntry struct {
	Name   string  `json:"name"`
	Image  string  `json:"image,omitempty"`
	Millis float64 `json:"render_ms,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// NewManifest builds the manifest of a finished run. Failed views keep
// their error and no image.
func NewManifest(scene, method string, cfg Config, results []Result) Manifest {
	m := Manifest{
		Scene:   scene,
		Method:  method,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Created: time.Now().UTC(),
		Views:   make([]ManifestEntry, len(results)),
	}
	for i, r := range results {
		e := ManifestEntry{Name: r.Name, Error: r.Error}
		if r.Success {
			e.Image = r.Image
			e.Millis = float64(r.Duration.Microseconds()) / 1000
		}
		m.Views[i] = e
	}
	return m
}

// WriteManifest writes m as indented JSON.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Failed counts unsuccessful results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}
