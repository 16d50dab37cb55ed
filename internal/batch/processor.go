// Package batch renders many viewpoints of one scene with a worker pool
// and writes them as WebP images.
package batch

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/logger"
	"ibr-renderer/internal/postprocess"
	"ibr-renderer/internal/raster"
	"ibr-renderer/internal/render"
	"ibr-renderer/internal/viewlist"
	"ibr-renderer/internal/viewmatrix"
)

// Config holds the output settings shared by every worker.
type Config struct {
	OutputDir   string
	Width       int
	Height      int
	FOV         float64 // horizontal degrees, used when a job has none
	Supersample int
	Workers     int
}

// Job is one viewpoint to render.
type Job struct {
	Name string
	Slug string // output path stem relative to OutputDir
	Pose camera.Pose
	FOV  float64
}

// Result holds the outcome of rendering one job.
type Result struct {
	Name     string
	Image    string
	Success  bool
	Error    string
	Duration time.Duration
}

// ViewpointJobs converts a parsed view list into jobs.
func ViewpointJobs(views []viewlist.Viewpoint) []Job {
	jobs := make([]Job, len(views))
	for i := range views {
		v := &views[i]
		jobs[i] = Job{
			Name: v.Group + "/" + v.Name,
			Slug: v.Slug(),
			Pose: viewmatrix.LookAt(v.Position, v.Target),
			FOV:  v.FOV,
		}
	}
	return jobs
}

// OrbitJobs names a sequence of orbit poses.
func OrbitJobs(poses []camera.Pose) []Job {
	jobs := make([]Job, len(poses))
	for i, p := range poses {
		jobs[i] = Job{
			Name: fmt.Sprintf("orbit %d", i),
			Slug: fmt.Sprintf("orbit/%03d", i),
			Pose: p,
		}
	}
	return jobs
}

// Run renders jobs with cfg.Workers workers. base must be Ready; the first
// worker renders through it and every other worker through a fork of it.
// Failed jobs are reported in their Result; a cancelled context leaves the
// remaining jobs unrendered.
func Run(ctx context.Context, cfg Config, base *render.Instance, jobs []Job) []Result {
	total := len(jobs)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					elapsed := time.Since(start).Seconds()
					rate := float64(p) / elapsed
					fmt.Printf("  [%d/%d] %.1f views/sec\n", p, total, rate)
				}
			}
		}
	}()

	instances := []*render.Instance{base}
	for w := 1; w < max(cfg.Workers, 1) && w < total; w++ {
		f, err := base.Fork(ctx)
		if err != nil {
			logger.L().Warn("batch: fewer workers", "workers", w, "err", err)
			break
		}
		instances = append(instances, f)
	}

	jobChan := make(chan int, len(instances)*2)
	var wg sync.WaitGroup
	for _, in := range instances {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				results[idx] = renderJob(cfg, in, jobs[idx])
				processed.Add(1)
			}
		}()
	}

send:
	for i := range jobs {
		select {
		case jobChan <- i:
		case <-ctx.Done():
			for j := i; j < total; j++ {
				results[j] = Result{Name: jobs[j].Name, Error: ctx.Err().Error()}
			}
			break send
		}
	}
	close(jobChan)

	wg.Wait()
	close(done)

	for _, in := range instances[1:] {
		in.Dispose()
	}
	return results
}

func renderJob(cfg Config, in *render.Instance, job Job) Result {
	start := time.Now()
	res := Result{Name: job.Name, Image: job.Slug + ".webp"}

	img, err := RenderImage(cfg, in, job)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	outPath := filepath.Join(cfg.OutputDir, filepath.FromSlash(res.Image))
	if err := writeWebP(outPath, img); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Duration = time.Since(start)
	return res
}

// RenderImage renders one job at the configured size, resolving
// supersampling.
func RenderImage(cfg Config, in *render.Instance, job Job) (*image.NRGBA, error) {
	ss := max(cfg.Supersample, 1)
	fov := job.FOV
	if fov <= 0 {
		fov = cfg.FOV
	}
	frame := &render.Frame{
		ViewID: job.Slug,
		View:   raster.NewView(job.Pose, fov, cfg.Width*ss, cfg.Height*ss),
	}
	// Each job is a separate view; its cached weights are useless afterwards.
	defer in.ForgetView(frame.ViewID)

	target, err := in.UpdateRenderingMethod(frame)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Name, err)
	}
	return postprocess.Resolve(target.ToNRGBA(), ss), nil
}

func writeWebP(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("WebP encode: %w", err)
	}
	return f.Close()
}
