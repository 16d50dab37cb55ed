package diskblend

import (
	"fmt"
	"math"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/depthcodec"
	"ibr-renderer/internal/filter"
	"ibr-renderer/internal/logger"
	"ibr-renderer/internal/mathutil"
	"ibr-renderer/internal/proxy"
	"ibr-renderer/internal/raster"
	"ibr-renderer/internal/texture"
)

// Phase is the compositor's position in a frame.
type Phase int

const (
	Idle Phase = iota
	Drawing
	Finalizing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Drawing:
		return "draw"
	case Finalizing:
		return "finalize"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Op is a render-graph operation.
type Op int

const (
	OpClear Op = iota
	OpDraw
	OpCopy
	OpFinalize
)

func (o Op) String() string {
	switch o {
	case OpClear:
		return "clear"
	case OpDraw:
		return "draw"
	case OpCopy:
		return "copy"
	case OpFinalize:
		return "finalize"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Command is one entry of a frame's command list. Instance is the proxy
// index for OpDraw and OpCopy.
type Command struct {
	Op       Op
	Instance int
}

// Sources are the source cameras and their color layers. Layer i belongs
// to camera i.
type Sources struct {
	Cameras []camera.Model
	Colors  *texture.ColorArray
}

// Compositor blends per-view proxies into a frame. It owns its targets and
// is not safe for concurrent use.
type Compositor struct {
	Params Params
	Filter *filter.Params // nil disables disocclusion handling

	targets  *Targets
	excluded map[int]bool
	flags    map[*proxy.Mesh][]bool
	phase    Phase
	draws    int
}

// New creates a compositor.
func New(p Params) *Compositor {
	return &Compositor{
		Params:   p.Clamped(),
		excluded: make(map[int]bool),
		flags:    make(map[*proxy.Mesh][]bool),
	}
}

// Phase returns the current phase; Idle between frames.
func (c *Compositor) Phase() Phase {
	return c.phase
}

// ExcludeSourceView omits proxies of camera index from later frames. A
// negative index clears all exclusions.
func (c *Compositor) ExcludeSourceView(index int) {
	if index < 0 {
		clear(c.excluded)
		return
	}
	c.excluded[index] = true
}

// Commands returns the command list of a frame over n proxy instances:
// clear the stored targets, then for every included instance clear the
// draw targets, draw, and copy, then finalize.
func (c *Compositor) Commands(proxies []*proxy.Proxy) []Command {
	cmds := []Command{{Op: OpClear, Instance: -1}}
	for i, p := range proxies {
		if p == nil || c.excluded[p.CameraIndex] {
			continue
		}
		cmds = append(cmds,
			Command{Op: OpClear, Instance: i},
			Command{Op: OpDraw, Instance: i},
			Command{Op: OpCopy, Instance: i},
		)
	}
	return append(cmds, Command{Op: OpFinalize, Instance: -1})
}

// Release drops the targets and cached filter flags.
func (c *Compositor) Release() {
	c.targets = nil
	clear(c.flags)
}

// CompositeSourceViews renders one frame. The returned target holds linear
// color with alpha in the fourth channel and view depth (+Inf where no
// proxy contributed). Proxies whose camera has no color layer are skipped.
func (c *Compositor) CompositeSourceViews(view *raster.View, proxies []*proxy.Proxy, src Sources) *raster.Target {
	if c.targets == nil || !c.targets.Fits(view.Width, view.Height) {
		c.targets = NewTargets(view.Width, view.Height)
	}
	out := raster.NewTarget(view.Width, view.Height, math.Inf(1))
	cmds := c.Commands(proxies)
	c.draws = 0
	for _, cmd := range cmds {
		c.execute(cmd, view, proxies, src, out)
	}
	logger.L().Debug("diskblend: frame composited", "draws", c.draws, "commands", len(cmds))
	return out
}

func (c *Compositor) execute(cmd Command, view *raster.View, proxies []*proxy.Proxy, src Sources, out *raster.Target) {
	t := c.targets
	switch cmd.Op {
	case OpClear:
		if cmd.Instance < 0 {
			t.clearStored()
			return
		}
		t.clearDraw()
	case OpDraw:
		c.phase = Drawing
		c.draw(view, cmd.Instance, len(proxies), proxies[cmd.Instance], src)
		c.draws++
	case OpCopy:
		t.copyWritten()
	case OpFinalize:
		c.phase = Finalizing
		c.finalize(out)
		c.phase = Idle
	}
}

func (c *Compositor) artifactFlags(p *proxy.Proxy) []bool {
	if c.Filter == nil || c.Filter.Handling == filter.Off {
		return nil
	}
	if f, ok := c.flags[p.Mesh]; ok {
		return f
	}
	f := filter.MarkArtifacts(p, *c.Filter)
	c.flags[p.Mesh] = f
	return f
}

// draw renders instance i into the draw targets, resolving each fragment
// against the stored composite with the soft depth test.
func (c *Compositor) draw(view *raster.View, i, n int, p *proxy.Proxy, src Sources) {
	cam := p.CameraIndex
	if p.Mesh == nil || cam < 0 || cam >= len(src.Cameras) || cam >= src.Colors.Len() {
		return
	}
	t := c.targets
	params := c.Params
	source := &src.Cameras[cam]
	omni := source.Kind == camera.Omnidirectional
	viewPos := view.Position()
	viewToSource := viewPos.Dist(p.CameraPosition)
	depthRange := camera.DistanceRange{Near: view.Near, Far: view.Far}
	flags := c.artifactFlags(p)

	raster.DrawMesh(view, p.Mesh, func(f *raster.Fragment) {
		idx := f.Y*view.Width + f.X

		// Nearest fragment of this instance wins within the draw.
		hw := PartitionDepth(i, n, depthcodec.Encode(f.Depth, depthRange))
		if hw >= t.hw[idx] {
			return
		}

		dev := mathutil.Rad2Deg(mathutil.AngleBetween(f.World.Sub(viewPos), f.World.Sub(p.CameraPosition)))
		w, keep, black := params.Weight(dev, omni, viewToSource)
		if !keep {
			return
		}

		var lin [3]float64
		if !black {
			var col texture.RGBA
			recolored := false
			if flags != nil && f.Triangle >= 0 && f.Triangle < len(flags) && flags[f.Triangle] {
				col, recolored = c.Filter.Recolor(src.Colors, cam, f.UV)
			}
			if !recolored {
				col = src.Colors.Sample(cam, f.UV[0], f.UV[1], texture.Clamp)
			}
			lin = raster.Linearize([4]float64(col))
		}

		stored := t.Stored.Depth[idx]
		o := idx * 4
		switch {
		case stored == Untouched || f.Depth < stored-params.DepthFactor*stored:
			// Replace: first or clearly nearer surface.
			t.Draw.Color[o] = w * lin[0]
			t.Draw.Color[o+1] = w * lin[1]
			t.Draw.Color[o+2] = w * lin[2]
			t.Draw.Color[o+3] = w
			t.Draw.Depth[idx] = f.Depth
		case math.Abs(f.Depth-stored) <= params.DepthFactor*stored:
			// Same surface: accumulate onto the stored composite.
			t.Draw.Color[o] = t.Stored.Color[o] + w*lin[0]
			t.Draw.Color[o+1] = t.Stored.Color[o+1] + w*lin[1]
			t.Draw.Color[o+2] = t.Stored.Color[o+2] + w*lin[2]
			t.Draw.Color[o+3] = t.Stored.Color[o+3] + w
			t.Draw.Depth[idx] = math.Min(stored, f.Depth)
		default:
			return
		}
		t.hw[idx] = hw
	})
}

// finalize divides accumulated color by the weight sum. Pixels without
// weight get the background color.
func (c *Compositor) finalize(out *raster.Target) {
	bg := raster.Linearize(c.Params.Background)
	s := c.targets.Stored
	for idx := 0; idx < s.Width*s.Height; idx++ {
		o := idx * 4
		w := s.Color[o+3]
		if s.Depth[idx] == Untouched || w <= 0 {
			out.Color[o] = bg[0]
			out.Color[o+1] = bg[1]
			out.Color[o+2] = bg[2]
			out.Color[o+3] = c.Params.Background[3]
			out.Depth[idx] = math.Inf(1)
			continue
		}
		out.Color[o] = s.Color[o] / w
		out.Color[o+1] = s.Color[o+1] / w
		out.Color[o+2] = s.Color[o+2] / w
		out.Color[o+3] = 1
		out.Depth[idx] = s.Depth[idx]
	}
}
