package oit

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
)

// Stats are cumulative frame counters.
type Stats struct {
	// FramesSubmitted counts frames that reached the queue and presented.
	FramesSubmitted uint64
	// FramesDropped counts frames skipped for a recoverable error.
	FramesDropped uint64
	// LastDrawCount is the number of draws in the last submitted frame.
	LastDrawCount int
	// LastTriangleCount is the number of triangles in the last submitted frame.
	LastTriangleCount int
}

// Renderer records and submits OIT frames. Frames are produced from a single
// goroutine; Stats may be read concurrently.
type Renderer struct {
	ctx    *Context
	pipes  *Pipelines
	frames *framePool

	// depth is the transient depth attachment, recreated when the drawable
	// size changes.
	depth                   backend.Texture
	depthWidth, depthHeight int

	mu     sync.Mutex
	stats  Stats
	closed bool
}

// NewRenderer builds the pipelines for c. Pipeline errors are fatal and no
// renderer is returned.
func NewRenderer(c *Context) (*Renderer, error) {
	pipes, err := BuildPipelines(c)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		ctx:    c,
		pipes:  pipes,
		frames: newFramePool(c.dev, c.opts.workers),
	}, nil
}

// Pipelines returns the pipeline state objects. They survive resizes.
func (r *Renderer) Pipelines() *Pipelines { return r.pipes }

// Stats returns a snapshot of the frame counters.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// RenderFrame renders instances with cam into the next drawable of surface
// and presents it.
//
// Instances are validated before anything is recorded; a malformed one fails
// the frame with ErrStreamMismatch. Errors for which IsFrameRecoverable is
// true count a dropped frame. ctx bounds the wait for a drawable (together
// with the drawable timeout) and may cancel the frame until submission.
func (r *Renderer) RenderFrame(ctx context.Context, surface backend.Surface, instances []Instance, cam Camera) error {
	if r.isClosed() {
		return ErrClosed
	}
	for i := range instances {
		if err := instances[i].Validate(); err != nil {
			return fmt.Errorf("instance %d: %w", i, err)
		}
	}
	uniforms, err := cam.Uniforms()
	if err != nil {
		return err
	}

	drawable, err := r.nextDrawable(ctx, surface)
	if err != nil {
		return r.drop(err)
	}

	res, err := r.frames.allocate(uniforms, instances)
	if err != nil {
		drawable.Discard()
		return r.drop(err)
	}

	target := drawable.Texture()
	depth, err := r.depthFor(target.Width(), target.Height())
	if err != nil {
		res.release()
		drawable.Discard()
		return r.drop(err)
	}

	cb := r.ctx.queue.CommandBuffer("oit frame")
	cb.AddCompletedHandler(func(error) { res.release() })
	draws, triangles := r.encode(cb, target, depth, res, instances)
	cb.Present(drawable)

	if err := r.ctx.queue.Submit(ctx, cb); err != nil {
		err = classify(fmt.Errorf("submit frame: %w", err))
		if IsFrameRecoverable(err) {
			return r.drop(err)
		}
		return err
	}

	r.mu.Lock()
	r.stats.FramesSubmitted++
	r.stats.LastDrawCount = draws
	r.stats.LastTriangleCount = triangles
	r.mu.Unlock()
	return nil
}

func (r *Renderer) nextDrawable(ctx context.Context, surface backend.Surface) (backend.Drawable, error) {
	timeout := r.ctx.opts.drawableTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	d, err := surface.NextDrawable(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("next drawable: %w", err))
	}
	return d, nil
}

// encode records the frame: clear, one draw per non-empty instance, resolve.
// Recording errors surface from Submit.
func (r *Renderer) encode(cb *backend.CommandBuffer, target, depth backend.Texture, res *frameResources, instances []Instance) (draws, triangles int) {
	p := r.pipes
	enc, err := cb.BeginRenderPass(&backend.RenderPassDescriptor{
		Label:                  "oit",
		ColorTexture:           target,
		ColorLoadOp:            gputypes.LoadOpClear,
		ClearColor:             r.ctx.opts.clearColor,
		DepthTexture:           depth,
		DepthLoadOp:            gputypes.LoadOpClear,
		ClearDepth:             1,
		TileWidth:              p.TileWidth,
		TileHeight:             p.TileHeight,
		ImageBlockSampleLength: p.SampleLength(),
	})
	if err != nil {
		return 0, 0
	}

	enc.SetTilePipeline(p.Clear)
	enc.DispatchThreadsPerTile()

	for i := range instances {
		n := instances[i].VertexCount()
		if n == 0 {
			continue
		}
		enc.SetRenderPipeline(p.Accumulate)
		enc.SetDepthStencilState(p.DepthStencil)
		enc.SetCullMode(gputypes.CullModeNone)
		enc.SetVertexBuffer(UniformsIndex, res.uniforms, 0)
		enc.SetFragmentBuffer(UniformsIndex, res.uniforms, 0)
		for s, buf := range res.streams[i] {
			enc.SetVertexBuffer(s, buf, 0)
		}
		enc.Draw(n, 0)
		draws++
		triangles += n / 3
	}

	enc.SetTilePipeline(p.Resolve)
	enc.DispatchThreadsPerTile()
	_ = enc.End()
	return draws, triangles
}

// depthFor returns a depth attachment of the given size, replacing the old
// one when the drawable size changed. Pipelines are left untouched.
func (r *Renderer) depthFor(width, height int) (backend.Texture, error) {
	if r.depth != nil && r.depthWidth == width && r.depthHeight == height {
		return r.depth, nil
	}
	tex, err := r.ctx.dev.CreateTexture(&backend.TextureDescriptor{
		Label:  "oit depth",
		Width:  width,
		Height: height,
		Format: r.pipes.DepthFormat,
		Usage:  gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("create depth attachment: %w", err))
	}
	if r.depth != nil {
		r.depth.Release()
		Logger().Debug("oit: depth attachment recreated", "width", width, "height", height)
	}
	r.depth, r.depthWidth, r.depthHeight = tex, width, height
	return tex, nil
}

func (r *Renderer) drop(err error) error {
	if !IsFrameRecoverable(err) {
		return err
	}
	r.mu.Lock()
	r.stats.FramesDropped++
	dropped := r.stats.FramesDropped
	r.mu.Unlock()
	Logger().Warn("oit: frame dropped", "err", err, "dropped", dropped)
	return err
}

func (r *Renderer) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close releases the depth attachment and the encoding workers. The context
// and its device stay open.
func (r *Renderer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	if r.depth != nil {
		r.depth.Release()
		r.depth = nil
	}
	r.frames.close()
}
