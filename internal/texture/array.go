package texture

import (
	"fmt"
	"image"
	"sync"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/depthcodec"
)

// ColorArray holds one color image per source camera, all the same size.
// Layer i belongs to the camera whose Index is i.
type ColorArray struct {
	Width  int
	Height int
	Layers []*image.NRGBA

	mu   sync.Mutex
	mips map[mipKey]*image.NRGBA
}

type mipKey struct {
	layer int
	level int
}

// NewColorArray validates that every layer has the same size.
func NewColorArray(layers []*image.NRGBA) (*ColorArray, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("texture: empty color array")
	}
	w, h := layers[0].Rect.Dx(), layers[0].Rect.Dy()
	for i, l := range layers {
		if l == nil {
			return nil, fmt.Errorf("texture: color layer %d is missing", i)
		}
		if l.Rect.Dx() != w || l.Rect.Dy() != h {
			return nil, fmt.Errorf("texture: color layer %d is %dx%d, want %dx%d",
				i, l.Rect.Dx(), l.Rect.Dy(), w, h)
		}
	}
	return &ColorArray{Width: w, Height: h, Layers: layers}, nil
}

// Len returns the number of layers.
func (a *ColorArray) Len() int {
	return len(a.Layers)
}

// Sample returns the bilinearly filtered color of layer at uv.
func (a *ColorArray) Sample(layer int, u, v float64, wrap WrapMode) RGBA {
	if layer < 0 || layer >= len(a.Layers) {
		return RGBA{}
	}
	return SampleBilinear(a.Layers[layer], u, v, wrap)
}

// DepthArray holds one encoded depth map per source camera. Values are
// depthcodec channel values in [0, 1] relative to each layer's range.
type DepthArray struct {
	Width  int
	Height int
	Layers [][]float32
	Ranges []camera.DistanceRange
}

// NewDepthArray validates layer sizes and ranges.
func NewDepthArray(w, h int, layers [][]float32, ranges []camera.DistanceRange) (*DepthArray, error) {
	if len(layers) != len(ranges) {
		return nil, fmt.Errorf("texture: %d depth layers but %d ranges", len(layers), len(ranges))
	}
	for i, l := range layers {
		if len(l) != w*h {
			return nil, fmt.Errorf("texture: depth layer %d has %d values, want %d", i, len(l), w*h)
		}
		if !ranges[i].Valid() {
			return nil, fmt.Errorf("texture: depth layer %d has invalid range %+v", i, ranges[i])
		}
	}
	return &DepthArray{Width: w, Height: h, Layers: layers, Ranges: ranges}, nil
}

// Len returns the number of layers.
func (d *DepthArray) Len() int {
	return len(d.Layers)
}

// Encoded returns the nearest encoded value of layer at uv.
func (d *DepthArray) Encoded(layer int, u, v float64) float64 {
	if layer < 0 || layer >= len(d.Layers) {
		return 1
	}
	x, y := texelIndex(u, v, d.Width, d.Height)
	return float64(d.Layers[layer][y*d.Width+x])
}

// Distance returns the decoded distance of layer at uv.
func (d *DepthArray) Distance(layer int, u, v float64) float64 {
	return depthcodec.Decode(d.Encoded(layer, u, v), d.Ranges[layer])
}

// Neighborhood returns the decoded distances of the 3×3 texels around uv.
// Texels beyond the border are clamped to the edge.
func (d *DepthArray) Neighborhood(layer int, u, v float64) [9]float64 {
	var out [9]float64
	if layer < 0 || layer >= len(d.Layers) {
		return out
	}
	cx, cy := texelIndex(u, v, d.Width, d.Height)
	r := d.Ranges[layer]
	data := d.Layers[layer]
	k := 0
	for dy := -1; dy <= 1; dy++ {
		y := clampInt(cy+dy, 0, d.Height-1)
		for dx := -1; dx <= 1; dx++ {
			x := clampInt(cx+dx, 0, d.Width-1)
			out[k] = depthcodec.Decode(float64(data[y*d.Width+x]), r)
			k++
		}
	}
	return out
}

// EncodeDistances converts metric distances into a depth layer. Zero,
// negative or non-finite distances mark "no surface" and encode as far.
func EncodeDistances(distances []float32, r camera.DistanceRange) []float32 {
	out := make([]float32, len(distances))
	for i, d := range distances {
		if !(d > 0) || float64(d) > 1e30 {
			out[i] = 1
			continue
		}
		out[i] = float32(depthcodec.Encode(float64(d), r))
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
