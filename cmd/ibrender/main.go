package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"time"

	"ibr-renderer/internal/batch"
	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/config"
	"ibr-renderer/internal/logger"
	"ibr-renderer/internal/mathutil"
	"ibr-renderer/internal/render"
	"ibr-renderer/internal/scene"
	"ibr-renderer/internal/viewlist"
	"ibr-renderer/internal/viewmatrix"
)

func main() {
	configFile := flag.String("config", "", "Path to config.json file")
	sceneDir := flag.String("scene", "", "Scene directory or .7z archive (default: auto-detect)")
	outputDir := flag.String("output", "", "Output directory (default: <scene>/renders)")
	views := flag.String("views", "", "XML view list (default: orbit around the capture rig)")
	method := flag.String("method", "", "Rendering method (default: ulr-global-mesh)")
	width := flag.Int("width", 0, "Output width in pixels")
	height := flag.Int("height", 0, "Output height in pixels")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	testN := flag.Int("test", 0, "Render only the first N views")
	exclude := flag.Int("exclude", -1, "Exclude this source camera from blending")
	listMethods := flag.Bool("methods", false, "List rendering methods available for the scene and exit")
	verbose := flag.Bool("v", false, "Log diagnostics to stderr")

	flag.Parse()

	if *verbose {
		logger.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	cfg.Resolve(config.Flags{
		SceneDir:  *sceneDir,
		OutputDir: *outputDir,
		ViewList:  *views,
		Method:    *method,
		Width:     *width,
		Height:    *height,
		Workers:   *workers,
	})

	if cfg.SceneDir == "" {
		fmt.Fprintln(os.Stderr, "Error: cannot find a scene. Use -scene flag or config.json.")
		os.Exit(1)
	}

	sc, err := scene.Open(cfg.SceneDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening scene: %v\n", err)
		os.Exit(1)
	}
	defer sc.Close()

	available := render.Available(sc.Manifest.Steps)
	if *listMethods {
		for _, name := range render.Methods() {
			mark := " "
			if slices.Contains(available, name) {
				mark = "*"
			}
			fmt.Printf("%s %s\n", mark, name)
		}
		return
	}
	if !slices.Contains(available, cfg.Method) {
		fmt.Fprintf(os.Stderr, "Error: method %q is not available for this scene (available: %v)\n", cfg.Method, available)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rctx := render.NewContext(render.NewBufferPool(cfg.BufferBudget()))
	defer rctx.Close()

	inst, err := rctx.Add(cfg.Method, cfg.RenderOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Image-based renderer → WebP\n")
	fmt.Printf("Scene: %s (%d cameras)\n", cfg.SceneDir, len(sc.Manifest.Cameras))
	fmt.Printf("Method: %s\n", cfg.Method)

	loadStart := time.Now()
	seq, err := inst.InitializeRenderingMethod(ctx, sc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for {
		done, err := seq.Step()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading scene: %v\n", err)
			os.Exit(1)
		}
		if done {
			break
		}
		n, total := seq.Progress()
		fmt.Printf("  loading %d/%d\n", n, total)
	}
	fmt.Printf("Loaded in %.1fs\n", time.Since(loadStart).Seconds())

	if *exclude >= 0 {
		inst.ExcludeSourceView(*exclude)
		fmt.Printf("Excluding source camera %d\n", *exclude)
	}

	var jobs []batch.Job
	if cfg.ViewList != "" {
		vps, err := viewlist.Parse(cfg.ViewList)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading view list: %v\n", err)
			os.Exit(1)
		}
		jobs = batch.ViewpointJobs(vps)
	} else {
		center, radius := rigOrbit(inst.Sources().Cameras)
		jobs = batch.OrbitJobs(viewmatrix.Orbit(center, radius, viewmatrix.DefaultElevation, cfg.OrbitFrames))
	}

	if *testN > 0 && *testN < len(jobs) {
		jobs = jobs[:*testN]
	}
	if len(jobs) == 0 {
		fmt.Println("No views to render.")
		os.Exit(0)
	}

	fmt.Printf("Views: %d, Size: %dx%d, Workers: %d\n", len(jobs), cfg.RenderWidth, cfg.RenderHeight, cfg.Workers)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	start := time.Now()

	batchCfg := batch.Config{
		OutputDir:   cfg.OutputDir,
		Width:       cfg.RenderWidth,
		Height:      cfg.RenderHeight,
		FOV:         cfg.FieldOfView,
		Supersample: cfg.Supersample,
		Workers:     cfg.Workers,
	}
	results := batch.Run(ctx, batchCfg, inst, jobs)

	elapsed := time.Since(start)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())

	failed := batch.Failed(results)
	fmt.Printf("Rendered: %d/%d\n", len(results)-failed, len(results))

	if failed > 0 {
		fmt.Printf("\nFailed (%d):\n", failed)
		shown := 0
		for _, r := range results {
			if r.Success {
				continue
			}
			fmt.Printf("  %s: %s\n", r.Name, r.Error)
			if shown++; shown == 20 {
				break
			}
		}
	}

	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	os.MkdirAll(cfg.OutputDir, 0755)
	m := batch.NewManifest(sc.Manifest.Name, cfg.Method, batchCfg, results)
	if err := batch.WriteManifest(manifestPath, m); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// rigOrbit centers the orbit on the source cameras. Its radius is their
// mean distance from that center, so an inward-facing rig is orbited at
// capture distance.
func rigOrbit(cams []camera.Model) (mathutil.Vec3, float64) {
	if len(cams) == 0 {
		return mathutil.Vec3{}, 1
	}
	var center mathutil.Vec3
	for i := range cams {
		center = center.Add(cams[i].Pose.Position)
	}
	center = center.Scale(1 / float64(len(cams)))
	var radius float64
	for i := range cams {
		radius += cams[i].Pose.Position.Dist(center)
	}
	radius /= float64(len(cams))
	return center, max(radius, 1)
}
