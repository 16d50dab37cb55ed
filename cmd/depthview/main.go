package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/depthcodec"
	"ibr-renderer/internal/scene"
	"ibr-renderer/internal/texture"
)

func main() {
	sceneDir := flag.String("scene", "", "Scene directory or .7z archive: preview every camera's depth map")
	outDir := flag.String("out", ".", "Output directory for previews")
	near := flag.Float64("near", 0.1, "Near distance for standalone EXR files")
	far := flag.Float64("far", 100, "Far distance for standalone EXR files")
	flag.Parse()

	if *sceneDir == "" && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: depthview -scene <dir> | depthview [-near n -far f] file.exr...")
		os.Exit(2)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "ERR %v\n", err)
		os.Exit(1)
	}

	errors := 0
	if *sceneDir != "" {
		n, err := previewScene(*sceneDir, *outDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERR %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d depth maps written\n", n)
	}

	r := camera.DistanceRange{Near: *near, Far: *far}
	if flag.NArg() > 0 && !r.Valid() {
		fmt.Fprintf(os.Stderr, "ERR invalid range [%g, %g]\n", *near, *far)
		os.Exit(1)
	}
	for _, p := range flag.Args() {
		if err := previewFile(p, r, *outDir); err != nil {
			fmt.Fprintf(os.Stderr, "ERR %v\n", err)
			errors++
		}
	}
	if errors > 0 {
		fmt.Printf("\nDone with %d error(s).\n", errors)
		os.Exit(1)
	}
}

func previewScene(dir, outDir string) (int, error) {
	sc, err := scene.Open(dir)
	if err != nil {
		return 0, err
	}
	defer sc.Close()
	cams, err := sc.LoadCameras()
	if err != nil {
		return 0, err
	}
	depth, err := sc.LoadDepth(context.Background(), cams)
	if err != nil {
		return 0, err
	}
	for i := range depth.Layers {
		name := sc.Manifest.Cameras[i].Name
		if name == "" {
			name = fmt.Sprintf("camera%03d", i)
		}
		img := depthcodec.Visualize(depth.Layers[i], depth.Width, depth.Height)
		out := filepath.Join(outDir, name+"_depth.webp")
		if err := writeWebP(out, img); err != nil {
			return i, err
		}
		fmt.Printf("OK  camera %d -> %s  (%dx%d, range %g..%g)\n",
			i, out, depth.Width, depth.Height, depth.Ranges[i].Near, depth.Ranges[i].Far)
	}
	return len(depth.Layers), nil
}

func previewFile(p string, r camera.DistanceRange, outDir string) error {
	values, w, h, err := texture.LoadDepthEXR(os.DirFS(filepath.Dir(p)), filepath.Base(p))
	if err != nil {
		return err
	}
	img := depthcodec.Visualize(texture.EncodeDistances(values, r), w, h)
	out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))+"_depth.webp")
	if err := writeWebP(out, img); err != nil {
		return err
	}
	fmt.Printf("OK  %s -> %s  (%dx%d)\n", p, out, w, h)
	return nil
}

func writeWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
