package texture

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"

	"github.com/mrjoshuak/go-openexr/exr"
	"github.com/mrjoshuak/go-openexr/exrutil"
	"github.com/mrjoshuak/go-openexr/half"
)

// depthChannels are tried in order when reading a depth EXR.
var depthChannels = []string{"Z", "depth", "Y", "R"}

// LoadDepthEXR reads the first depth-like channel of an OpenEXR file as a
// row-major float32 slice.
func LoadDepthEXR(fsys fs.FS, name string) ([]float32, int, int, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("texture: read %s: %w", name, err)
	}
	f, err := exr.OpenReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("texture: open exr %s: %w", name, err)
	}
	h := f.Header(0)
	cl := h.Channels()
	if cl == nil {
		return nil, 0, 0, fmt.Errorf("texture: %s has no channels", name)
	}
	for _, ch := range depthChannels {
		if cl.Get(ch) == nil {
			continue
		}
		data, err := exrutil.ExtractChannel(f, ch)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("texture: read channel %s of %s: %w", ch, name, err)
		}
		return data, h.Width(), h.Height(), nil
	}
	return nil, 0, 0, fmt.Errorf("texture: %s has no depth channel", name)
}

// WriteDepthEXR writes row-major depth values into a single-channel "Z"
// OpenEXR image. useHalf stores 16-bit floats instead of 32-bit.
func WriteDepthEXR(w io.WriteSeeker, values []float32, width, height int, useHalf bool) error {
	if width <= 0 || height <= 0 || len(values) < width*height {
		return fmt.Errorf("texture: depth buffer %dx%d has %d values", width, height, len(values))
	}

	h := exr.NewScanlineHeader(width, height)
	h.SetCompression(exr.CompressionZIP)

	pixelType := exr.PixelTypeFloat
	if useHalf {
		pixelType = exr.PixelTypeHalf
	}
	cl := exr.NewChannelList()
	cl.Add(exr.NewChannel("Z", pixelType))
	h.SetChannels(cl)

	fb := exr.NewFrameBuffer()
	if useHalf {
		hv := make([]half.Half, width*height)
		half.ConvertSlice32(hv, values[:width*height])
		fb.Set("Z", exr.NewSliceFromHalf(hv, width, height))
	} else {
		fb.Set("Z", exr.NewSliceFromFloat32(values[:width*height], width, height))
	}

	sw, err := exr.NewScanlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("texture: exr writer: %w", err)
	}
	sw.SetFrameBuffer(fb)

	yMin := int(h.DataWindow().Min.Y)
	yMax := int(h.DataWindow().Max.Y)
	if err := sw.WritePixels(yMin, yMax); err != nil {
		return fmt.Errorf("texture: write exr pixels: %w", err)
	}
	return sw.Close()
}
