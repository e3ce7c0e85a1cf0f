package software

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/internal/color"
	"github.com/gogpu/oit/internal/parallel"
	"github.com/gogpu/wgpu/hal/software/raster"
)

// queue executes command buffers synchronously, one at a time.
type queue struct {
	dev *Device
	mu  sync.Mutex
}

// CommandBuffer implements backend.Queue.
func (q *queue) CommandBuffer(label string) *backend.CommandBuffer {
	return backend.NewCommandBuffer(label)
}

// Submit implements backend.Queue. Passes run to completion once started;
// ctx is checked only before the first pass.
func (q *queue) Submit(ctx context.Context, cb *backend.CommandBuffer) error {
	err := cb.Commit()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil && q.dev.closed.Load() {
		err = backend.ErrClosed
	}
	if err != nil {
		cb.Complete(err)
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, pass := range cb.Passes() {
		if err := q.execute(pass); err != nil {
			err = fmt.Errorf("execute pass %q: %w", pass.Descriptor.Label, err)
			cb.Complete(err)
			return err
		}
	}
	cb.Complete(nil)
	return nil
}

// phase is one recorded step replayed by every tile in order.
type phase interface {
	run(tile *parallel.Tile, index int)
}

// passStats summarizes an executed pass for debug logging.
type passStats struct {
	draws      int
	dispatches int
	triangles  int
}

// execute applies the attachment load ops, turns the command list into
// phases and replays them on every tile in parallel.
func (q *queue) execute(pass *backend.RenderPass) error {
	start := time.Now()
	desc := &pass.Descriptor

	target, ok := desc.ColorTexture.(*texture)
	if !ok || target.pixels == nil {
		return fmt.Errorf("%w: color attachment %q is not a software color texture",
			backend.ErrInvalidCommand, desc.ColorTexture.Label())
	}
	var depth *texture
	if desc.DepthTexture != nil {
		depth, ok = desc.DepthTexture.(*texture)
		if !ok || depth.depth == nil {
			return fmt.Errorf("%w: depth attachment %q is not a software depth texture",
				backend.ErrInvalidCommand, desc.DepthTexture.Label())
		}
	}

	if desc.ColorLoadOp == gputypes.LoadOpClear {
		target.codec.Fill(target.pixels, color.FromGPU(desc.ClearColor))
	}
	if depth != nil && desc.DepthLoadOp == gputypes.LoadOpClear {
		depth.depth.Clear(desc.ClearDepth)
		if depth.stencil != nil {
			depth.stencil.Clear(0)
		}
	}

	grid, err := q.dev.exec.Configure(target.width, target.height, parallel.GridConfig{
		TileWidth:    desc.TileWidth,
		TileHeight:   desc.TileHeight,
		SampleLength: desc.ImageBlockSampleLength,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", backend.ErrTileSize, err)
	}

	phases, stats, err := record(pass, grid, target, depth)
	if err != nil {
		return err
	}

	err = q.dev.exec.Run(context.Background(), func(tile *parallel.Tile) error {
		index := grid.Index(tile)
		for _, p := range phases {
			p.run(tile, index)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slogger().Debug("software: pass executed",
		"label", desc.Label,
		"size", fmt.Sprintf("%dx%d", target.width, target.height),
		"tiles", grid.TileCount(),
		"draws", stats.draws,
		"dispatches", stats.dispatches,
		"triangles", stats.triangles,
		"elapsed", time.Since(start))
	return nil
}

// recordState is the binding state while walking a pass's commands.
type recordState struct {
	render       *renderPipeline
	tile         *tilePipeline
	depthState   *depthStencilState
	cull         gputypes.CullMode
	vertexArgs   bindings
	fragmentArgs bindings
}

// record walks the commands on the submitting goroutine. Vertex work and
// triangle setup happen here once per draw; per-pixel work is deferred to
// the phases.
func record(pass *backend.RenderPass, grid *parallel.TileGrid, target, depth *texture) ([]phase, passStats, error) {
	var (
		st     recordState
		phases []phase
		stats  passStats
	)
	for i := range pass.Commands {
		c := &pass.Commands[i]
		switch c.Kind {
		case backend.CmdSetRenderPipeline:
			p, ok := c.RenderPipeline.(*renderPipeline)
			if !ok {
				return nil, stats, fmt.Errorf("%w: foreign render pipeline %q", backend.ErrInvalidCommand, c.RenderPipeline.Label())
			}
			st.render = p
		case backend.CmdSetTilePipeline:
			p, ok := c.TilePipeline.(*tilePipeline)
			if !ok {
				return nil, stats, fmt.Errorf("%w: foreign tile pipeline %q", backend.ErrInvalidCommand, c.TilePipeline.Label())
			}
			st.tile = p
		case backend.CmdSetDepthStencilState:
			s, ok := c.DepthStencil.(*depthStencilState)
			if c.DepthStencil != nil && !ok {
				return nil, stats, fmt.Errorf("%w: foreign depth/stencil state", backend.ErrInvalidCommand)
			}
			st.depthState = s
		case backend.CmdSetCullMode:
			st.cull = c.CullMode
		case backend.CmdSetVertexBuffer, backend.CmdSetFragmentBuffer:
			b, ok := c.Buffer.(*buffer)
			if !ok {
				return nil, stats, fmt.Errorf("%w: foreign buffer %q", backend.ErrInvalidCommand, c.Buffer.Label())
			}
			if c.Kind == backend.CmdSetVertexBuffer {
				st.vertexArgs[c.Index] = b.data[c.Offset:]
			} else {
				st.fragmentArgs[c.Index] = b.data[c.Offset:]
			}
		case backend.CmdDraw:
			p, err := st.draw(c.FirstVertex, c.VertexCount, grid, target, depth)
			if err != nil {
				return nil, stats, err
			}
			stats.draws++
			stats.triangles += len(p.tris)
			phases = append(phases, p)
		case backend.CmdDispatchTile:
			stats.dispatches++
			phases = append(phases, &tilePhase{fn: st.tile.fn, target: target})
		}
	}
	return phases, stats, nil
}

type tilePhase struct {
	fn     *function
	target *texture
}

func (p *tilePhase) run(tile *parallel.Tile, _ int) {
	p.fn.tile(&tileContext{tile: tile, target: p.target})
}

// drawPhase rasterizes the triangles binned to a tile and runs the fragment
// program on every fragment passing the depth test.
type drawPhase struct {
	fn      *function
	args    bindings
	depth   *raster.DepthBuffer
	compare raster.CompareFunc
	write   bool
	tris    []raster.Triangle
	bins    [][]int32
}

func (p *drawPhase) run(tile *parallel.Tile, index int) {
	bin := p.bins[index]
	if len(bin) == 0 {
		return
	}
	rt := raster.Tile{
		X: tile.X, Y: tile.Y,
		MinX: tile.OriginX, MinY: tile.OriginY,
		MaxX: tile.MaxX(), MaxY: tile.MaxY(),
	}
	for _, ti := range bin {
		raster.RasterizeTile(p.tris[ti], rt, func(f raster.Fragment) {
			if p.depth != nil && !p.depth.TestAndSet(f.X, f.Y, f.Depth, p.compare, p.write) {
				return
			}
			p.fn.fragment(&p.args, &f, tile.SampleAt(f.X, f.Y))
		})
	}
}

// draw runs the vertex program, assembles, clips and culls triangles, maps
// them to the viewport and bins them by tile.
func (st *recordState) draw(first, count int, grid *parallel.TileGrid, target, depth *texture) (*drawPhase, error) {
	vs := st.render.vertex
	for _, r := range vs.requires {
		if len(st.vertexArgs[r.index]) < r.size {
			return nil, fmt.Errorf("%w: %q needs %d bytes at vertex buffer %d, %d bound",
				backend.ErrInvalidCommand, vs.name, r.size, r.index, len(st.vertexArgs[r.index]))
		}
	}

	verts := make([]raster.ClipSpaceVertex, count)
	attrs := make([]float32, count*vs.varyings)
	for i := range verts {
		verts[i].Attributes = attrs[i*vs.varyings : (i+1)*vs.varyings : (i+1)*vs.varyings]
		vs.vertex(&st.vertexArgs, first+i, &verts[i])
	}

	cull := cullModes[st.cull]
	w, h := float32(target.width), float32(target.height)
	var tris []raster.Triangle
	for i := 0; i+2 < count; i += 3 {
		for _, clipped := range raster.ClipTriangle([3]raster.ClipSpaceVertex{verts[i], verts[i+1], verts[i+2]}) {
			if raster.ShouldCullClipSpace(clipped, cull, raster.FrontFaceCCW) {
				continue
			}
			if tri, ok := toViewport(clipped, w, h); ok {
				tris = append(tris, tri)
			}
		}
	}

	p := &drawPhase{
		fn:      st.render.fragment,
		args:    st.fragmentArgs,
		compare: raster.CompareAlways,
		tris:    tris,
		bins:    make([][]int32, grid.TileCount()),
	}
	if depth != nil {
		p.depth = depth.depth
	}
	if st.depthState != nil {
		p.compare = st.depthState.test
		p.write = st.depthState.write
	}

	for i, tri := range tris {
		minX := math.Floor(float64(min(tri.V0.X, tri.V1.X, tri.V2.X)))
		maxX := math.Ceil(float64(max(tri.V0.X, tri.V1.X, tri.V2.X)))
		minY := math.Floor(float64(min(tri.V0.Y, tri.V1.Y, tri.V2.Y)))
		maxY := math.Ceil(float64(max(tri.V0.Y, tri.V1.Y, tri.V2.Y)))
		for _, t := range grid.TilesInRect(int(minX), int(minY), int(maxX-minX), int(maxY-minY)) {
			idx := grid.Index(t)
			p.bins[idx] = append(p.bins[idx], int32(i))
		}
	}
	return p, nil
}

var cullModes = map[gputypes.CullMode]raster.CullMode{
	gputypes.CullModeNone:  raster.CullNone,
	gputypes.CullModeFront: raster.CullFront,
	gputypes.CullModeBack:  raster.CullBack,
}

// toViewport divides by w and maps NDC to pixels with y pointing down. The
// result is wound counter-clockwise in screen space.
func toViewport(c [3]raster.ClipSpaceVertex, width, height float32) (raster.Triangle, bool) {
	var v [3]raster.ScreenVertex
	for i, cv := range c {
		p := cv.Position
		if p[3] <= 0 {
			return raster.Triangle{}, false
		}
		inv := 1 / p[3]
		v[i] = raster.ScreenVertex{
			X:          (p[0]*inv*0.5 + 0.5) * width,
			Y:          (0.5 - p[1]*inv*0.5) * height,
			Z:          p[2] * inv,
			W:          inv,
			Attributes: cv.Attributes,
		}
	}
	area := (v[1].X-v[0].X)*(v[2].Y-v[0].Y) - (v[2].X-v[0].X)*(v[1].Y-v[0].Y)
	switch {
	case area == 0:
		return raster.Triangle{}, false
	case area < 0:
		v[1], v[2] = v[2], v[1]
	}
	return raster.Triangle{V0: v[0], V1: v[1], V2: v[2]}, true
}
