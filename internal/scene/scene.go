package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bodgit/sevenzip"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/depthcodec"
	"ibr-renderer/internal/logger"
	"ibr-renderer/internal/proxy"
	"ibr-renderer/internal/texture"
)

// ErrNoDepth is returned by LoadDepth when the scene has no depth maps.
var ErrNoDepth = errors.New("scene: no depth maps")

// Scene is an opened scene representation. Files are read through FS,
// which is a directory or a .7z archive.
type Scene struct {
	Path     string
	FS       fs.FS
	Manifest *Manifest

	closer io.Closer

	texOnce  sync.Once
	textures texture.Resolver
}

// Open opens a scene directory or a .7z archive holding one.
func Open(p string) (*Scene, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("scene: open %s: %w", p, err)
	}
	var (
		fsys   fs.FS
		closer io.Closer
	)
	switch {
	case info.IsDir():
		fsys = os.DirFS(p)
	case strings.EqualFold(filepath.Ext(p), ".7z"):
		rc, err := sevenzip.OpenReader(p)
		if err != nil {
			return nil, fmt.Errorf("scene: open archive %s: %w", p, err)
		}
		fsys, closer = rc, rc
	default:
		return nil, fmt.Errorf("scene: %s is neither a directory nor a .7z archive", p)
	}

	s, err := OpenFS(fsys)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("scene: open %s: %w", p, err)
	}
	s.Path = p
	s.closer = closer
	logger.L().Info("scene: opened", "path", p, "cameras", len(s.Manifest.Cameras), "steps", s.Manifest.Steps)
	return s, nil
}

// OpenFS reads the manifest at the root of fsys.
func OpenFS(fsys fs.FS) (*Scene, error) {
	data, err := fs.ReadFile(fsys, ManifestName)
	if err != nil {
		return nil, fmt.Errorf("scene: read %s: %w", ManifestName, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	return &Scene{FS: fsys, Manifest: m}, nil
}

// Close releases the archive, if any.
func (s *Scene) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Textures returns a resolver that finds images by stem anywhere in the
// scene, whatever their format.
func (s *Scene) Textures() texture.Resolver {
	s.texOnce.Do(func() {
		idx := texture.BuildIndex(s.FS)
		s.textures = texture.NewCache(s.FS, idx)
		logger.L().Debug("scene: images indexed", "count", idx.Len())
	})
	return s.textures
}

// loadImage reads name, falling back to an image with the same stem when
// the file was exported in another format or directory.
func (s *Scene) loadImage(name string) (*image.NRGBA, error) {
	img, err := texture.LoadTextureFS(s.FS, name)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return img, err
	}
	if alt := s.Textures().Resolve(name); alt != nil {
		logger.L().Warn("scene: image resolved by stem", "name", name)
		return alt, nil
	}
	return nil, err
}

// LoadCameras converts every manifest entry into a camera model. Camera i
// gets reference index i.
func (s *Scene) LoadCameras() ([]camera.Model, error) {
	cams := make([]camera.Model, len(s.Manifest.Cameras))
	for i := range s.Manifest.Cameras {
		m, err := s.Manifest.Cameras[i].Model(i)
		if err != nil {
			return nil, err
		}
		cams[i] = m
	}
	return cams, nil
}

// LoadColor loads one color layer per camera. ctx is checked between
// images.
func (s *Scene) LoadColor(ctx context.Context) (*texture.ColorArray, error) {
	layers := make([]*image.NRGBA, len(s.Manifest.Cameras))
	for i, c := range s.Manifest.Cameras {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := s.loadImage(c.Color)
		if err != nil {
			return nil, fmt.Errorf("scene: camera %d color: %w", i, err)
		}
		layers[i] = img
	}
	return texture.NewColorArray(layers)
}

// LoadDepth loads one depth layer per camera, encoded relative to each
// camera's distance range. It returns ErrNoDepth when any camera lacks a
// depth file.
func (s *Scene) LoadDepth(ctx context.Context, cams []camera.Model) (*texture.DepthArray, error) {
	if !s.Manifest.hasDepth() {
		return nil, ErrNoDepth
	}
	var (
		w, h   int
		layers = make([][]float32, len(cams))
		ranges = make([]camera.DistanceRange, len(cams))
	)
	for i, c := range s.Manifest.Cameras {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i >= len(cams) {
			break
		}
		var (
			layer  []float32
			lw, lh int
			err    error
		)
		switch s.Manifest.DepthEncoding {
		case DepthPrecise:
			layer, lw, lh, err = s.loadPrecise(c.Depth)
		default:
			var dist []float32
			dist, lw, lh, err = texture.LoadDepthEXR(s.FS, c.Depth)
			if err == nil {
				layer = texture.EncodeDistances(dist, cams[i].Range)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("scene: camera %d depth: %w", i, err)
		}
		if i == 0 {
			w, h = lw, lh
		} else if lw != w || lh != h {
			return nil, fmt.Errorf("scene: camera %d depth is %dx%d, want %dx%d", i, lw, lh, w, h)
		}
		layers[i] = layer
		ranges[i] = cams[i].Range
	}
	return texture.NewDepthArray(w, h, layers, ranges)
}

func (s *Scene) loadPrecise(name string) ([]float32, int, int, error) {
	img, err := texture.LoadTextureFS(s.FS, name)
	if err != nil {
		return nil, 0, 0, err
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = float32(depthcodec.DecodePrecise(img.NRGBAAt(x, y)))
		}
	}
	return out, w, h, nil
}

// LoadGlobalMesh reads the scene-wide mesh, placed by the manifest's mesh
// pose if any, and, when the manifest or the mesh's material names one, its
// texture. The texture is nil otherwise.
func (s *Scene) LoadGlobalMesh() (*proxy.Proxy, *image.NRGBA, error) {
	name := s.Manifest.GlobalMesh
	if name == "" {
		return nil, nil, fmt.Errorf("scene: no global mesh")
	}
	f, err := s.FS.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("scene: open %s: %w", name, err)
	}
	mesh, info, err := proxy.ReadOBJ(f)
	f.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("scene: %s: %w", name, err)
	}
	if s.Manifest.GlobalPose != nil {
		mesh.Transform(s.Manifest.GlobalPose.Matrix())
	}
	p, err := proxy.NewGlobal(mesh)
	if err != nil {
		return nil, nil, fmt.Errorf("scene: %s: %w", name, err)
	}

	texName := s.Manifest.GlobalTexture
	if texName == "" && info.MaterialLib != "" {
		texName = s.materialTexture(path.Join(path.Dir(name), info.MaterialLib), info.Material)
	}
	if texName == "" || mesh.UVs == nil {
		return p, nil, nil
	}
	tex, err := s.loadImage(texName)
	if err != nil {
		return nil, nil, fmt.Errorf("scene: global texture: %w", err)
	}
	return p, tex, nil
}

func (s *Scene) materialTexture(mtl, material string) string {
	f, err := s.FS.Open(mtl)
	if err != nil {
		logger.L().Warn("scene: material library missing", "path", mtl, "err", err)
		return ""
	}
	defer f.Close()
	tex, err := proxy.ReadMTLTexture(f, material)
	if err != nil || tex == "" {
		return ""
	}
	return path.Join(path.Dir(mtl), tex)
}

// SourceCameraSet bundles the cameras with their color and optional depth
// layers. Layer i of each array belongs to camera i.
type SourceCameraSet struct {
	Cameras []camera.Model
	Color   *texture.ColorArray
	Depth   *texture.DepthArray
}

// Validate checks the layer/index invariants.
func (s *SourceCameraSet) Validate() error {
	for i, c := range s.Cameras {
		if c.Index != i {
			return fmt.Errorf("scene: camera at position %d has index %d", i, c.Index)
		}
	}
	if s.Color == nil {
		return fmt.Errorf("scene: missing color array")
	}
	if s.Color.Len() != len(s.Cameras) {
		return fmt.Errorf("scene: %d color layers for %d cameras", s.Color.Len(), len(s.Cameras))
	}
	if s.Depth != nil && s.Depth.Len() != len(s.Cameras) {
		return fmt.Errorf("scene: %d depth layers for %d cameras", s.Depth.Len(), len(s.Cameras))
	}
	return nil
}

// Len returns the number of source cameras.
func (s *SourceCameraSet) Len() int {
	return len(s.Cameras)
}
