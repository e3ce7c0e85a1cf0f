package backend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
)

// RenderPassDescriptor configures one tile-shading render pass.
type RenderPassDescriptor struct {
	Label string

	ColorTexture Texture
	ColorLoadOp  gputypes.LoadOp
	ClearColor   gputypes.Color

	// DepthTexture is optional. It must match the color size.
	DepthTexture Texture
	DepthLoadOp  gputypes.LoadOp
	ClearDepth   float32

	TileWidth, TileHeight int

	// ImageBlockSampleLength is the tile memory allocated per pixel. Every
	// tile pipeline dispatched in the pass must require exactly this much.
	ImageBlockSampleLength int
}

// Validate checks the descriptor for internal consistency.
func (d *RenderPassDescriptor) Validate() error {
	if d.ColorTexture == nil {
		return fmt.Errorf("%w: render pass %q has no color attachment", ErrInvalidCommand, d.Label)
	}
	if d.TileWidth <= 0 || d.TileHeight <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrTileSize, d.TileWidth, d.TileHeight)
	}
	if d.ImageBlockSampleLength <= 0 {
		return fmt.Errorf("%w: pass requests %d bytes", ErrSampleLength, d.ImageBlockSampleLength)
	}
	if d.DepthTexture != nil {
		if !d.DepthTexture.Format().HasDepth() {
			return fmt.Errorf("%w: depth attachment %v", ErrUnsupportedFormat, d.DepthTexture.Format())
		}
		if d.DepthTexture.Width() != d.ColorTexture.Width() || d.DepthTexture.Height() != d.ColorTexture.Height() {
			return fmt.Errorf("%w: depth %dx%d does not match color %dx%d", ErrInvalidCommand,
				d.DepthTexture.Width(), d.DepthTexture.Height(),
				d.ColorTexture.Width(), d.ColorTexture.Height())
		}
	}
	return nil
}

// CommandKind identifies a recorded command.
type CommandKind uint8

const (
	CmdSetRenderPipeline CommandKind = iota
	CmdSetTilePipeline
	CmdSetDepthStencilState
	CmdSetCullMode
	CmdSetVertexBuffer
	CmdSetFragmentBuffer
	CmdDraw
	CmdDispatchTile
)

// Command is one recorded render pass command. Only the fields relevant to
// Kind are set.
type Command struct {
	Kind CommandKind

	RenderPipeline RenderPipeline
	TilePipeline   TilePipeline
	DepthStencil   DepthStencilState
	CullMode       gputypes.CullMode

	// Buffer binding.
	Index  int
	Buffer Buffer
	Offset uint64

	// Draw.
	VertexCount int
	FirstVertex int
}

// RenderPass is a validated, ended pass ready for execution.
type RenderPass struct {
	Descriptor RenderPassDescriptor
	Commands   []Command
}

// DrawCount returns the number of draw commands in the pass.
func (p *RenderPass) DrawCount() int {
	n := 0
	for i := range p.Commands {
		if p.Commands[i].Kind == CmdDraw {
			n++
		}
	}
	return n
}

// Drawable is a presentable surface image.
type Drawable interface {
	Texture() Texture

	// Present hands the image to the surface. Queues call it after the
	// command buffer that scheduled it completed.
	Present()

	// Discard returns the image unpresented.
	Discard()
}

// CommandBuffer records render passes and present requests for one
// submission. It is not safe for concurrent use.
type CommandBuffer struct {
	label    string
	passes   []*RenderPass
	presents []Drawable
	open     *RenderPassEncoder
	err      error

	completeOnce sync.Once
	handlers     []func(error)
}

// NewCommandBuffer starts an empty recording. Device queues use it to
// implement Queue.CommandBuffer.
func NewCommandBuffer(label string) *CommandBuffer {
	return &CommandBuffer{label: label}
}

// Label returns the command buffer label.
func (cb *CommandBuffer) Label() string { return cb.label }

// BeginRenderPass opens a pass. The previous pass must have been ended.
func (cb *CommandBuffer) BeginRenderPass(desc *RenderPassDescriptor) (*RenderPassEncoder, error) {
	if cb.open != nil {
		return nil, cb.fail(fmt.Errorf("%w: render pass %q still open", ErrInvalidCommand, cb.open.pass.Descriptor.Label))
	}
	if err := desc.Validate(); err != nil {
		return nil, cb.fail(err)
	}
	enc := &RenderPassEncoder{cb: cb, pass: &RenderPass{Descriptor: *desc}}
	cb.open = enc
	return enc, nil
}

// Present schedules d for presentation once the command buffer completes.
// Scheduling the same drawable twice is an error reported by Commit.
func (cb *CommandBuffer) Present(d Drawable) {
	for _, p := range cb.presents {
		if p == d {
			cb.fail(fmt.Errorf("%w: drawable presented twice", ErrInvalidCommand))
			return
		}
	}
	cb.presents = append(cb.presents, d)
}

// AddCompletedHandler registers fn to run after execution with the
// submission result.
func (cb *CommandBuffer) AddCompletedHandler(fn func(error)) {
	cb.handlers = append(cb.handlers, fn)
}

// Commit finishes recording and returns the first recording error.
func (cb *CommandBuffer) Commit() error {
	if cb.open != nil {
		cb.fail(fmt.Errorf("%w: render pass %q not ended", ErrInvalidCommand, cb.open.pass.Descriptor.Label))
	}
	return cb.err
}

// Passes returns the ended render passes in recording order.
func (cb *CommandBuffer) Passes() []*RenderPass { return cb.passes }

// Presents returns the drawables scheduled for presentation.
func (cb *CommandBuffer) Presents() []Drawable { return cb.presents }

// Complete presents the scheduled drawables when err is nil, discards them
// otherwise, and runs completed handlers. Only the first call has an effect.
func (cb *CommandBuffer) Complete(err error) {
	cb.completeOnce.Do(func() {
		for _, d := range cb.presents {
			if err == nil {
				d.Present()
			} else {
				d.Discard()
			}
		}
		for _, fn := range cb.handlers {
			fn(err)
		}
	})
}

func (cb *CommandBuffer) fail(err error) error {
	if cb.err == nil {
		cb.err = err
	}
	return err
}

// RenderPassEncoder records commands into one render pass. Errors are
// deferred: the first invalid command is reported by End.
type RenderPassEncoder struct {
	cb   *CommandBuffer
	pass *RenderPass
	err  error

	renderPipeline RenderPipeline
	vertexBuffers  [MaxBufferBindings]Buffer
	vertexOffsets  [MaxBufferBindings]uint64
	ended          bool
}

// Descriptor returns the pass configuration.
func (e *RenderPassEncoder) Descriptor() *RenderPassDescriptor {
	return &e.pass.Descriptor
}

func (e *RenderPassEncoder) record(c Command) {
	if e.ended {
		e.setErr(fmt.Errorf("%w: command after End", ErrInvalidCommand))
		return
	}
	e.pass.Commands = append(e.pass.Commands, c)
}

func (e *RenderPassEncoder) setErr(err error) {
	if e.err == nil {
		e.err = err
	}
}

// SetRenderPipeline binds the pipeline used by subsequent draws.
func (e *RenderPassEncoder) SetRenderPipeline(p RenderPipeline) {
	if p == nil {
		e.setErr(fmt.Errorf("%w: nil render pipeline", ErrInvalidCommand))
		return
	}
	if p.ColorFormat() != e.pass.Descriptor.ColorTexture.Format() {
		e.setErr(fmt.Errorf("%w: pipeline %q targets %v, attachment is %v", ErrUnsupportedFormat,
			p.Label(), p.ColorFormat(), e.pass.Descriptor.ColorTexture.Format()))
		return
	}
	if n := p.ImageBlockSampleLength(); n != 0 && n != e.pass.Descriptor.ImageBlockSampleLength {
		e.setErr(fmt.Errorf("%w: pipeline %q uses %d bytes, pass has %d", ErrSampleLength,
			p.Label(), n, e.pass.Descriptor.ImageBlockSampleLength))
		return
	}
	e.renderPipeline = p
	e.record(Command{Kind: CmdSetRenderPipeline, RenderPipeline: p})
}

// SetTilePipeline binds the pipeline used by subsequent tile dispatches.
func (e *RenderPassEncoder) SetTilePipeline(p TilePipeline) {
	if p == nil {
		e.setErr(fmt.Errorf("%w: nil tile pipeline", ErrInvalidCommand))
		return
	}
	d := &e.pass.Descriptor
	if w, h := p.TileSize(); w != d.TileWidth || h != d.TileHeight {
		e.setErr(fmt.Errorf("%w: pipeline %q is %dx%d, pass is %dx%d", ErrTileSize,
			p.Label(), w, h, d.TileWidth, d.TileHeight))
		return
	}
	if p.ImageBlockSampleLength() != d.ImageBlockSampleLength {
		e.setErr(fmt.Errorf("%w: pipeline %q uses %d bytes, pass has %d", ErrSampleLength,
			p.Label(), p.ImageBlockSampleLength(), d.ImageBlockSampleLength))
		return
	}
	e.record(Command{Kind: CmdSetTilePipeline, TilePipeline: p})
}

// SetDepthStencilState binds the depth test used by subsequent draws.
func (e *RenderPassEncoder) SetDepthStencilState(s DepthStencilState) {
	e.record(Command{Kind: CmdSetDepthStencilState, DepthStencil: s})
}

// SetCullMode sets face culling for subsequent draws.
func (e *RenderPassEncoder) SetCullMode(m gputypes.CullMode) {
	e.record(Command{Kind: CmdSetCullMode, CullMode: m})
}

// SetVertexBuffer binds buf to the vertex stage argument slot index.
func (e *RenderPassEncoder) SetVertexBuffer(index int, buf Buffer, offset uint64) {
	if !e.checkBinding(index, buf, offset) {
		return
	}
	e.vertexBuffers[index] = buf
	e.vertexOffsets[index] = offset
	e.record(Command{Kind: CmdSetVertexBuffer, Index: index, Buffer: buf, Offset: offset})
}

// SetFragmentBuffer binds buf to the fragment stage argument slot index.
func (e *RenderPassEncoder) SetFragmentBuffer(index int, buf Buffer, offset uint64) {
	if !e.checkBinding(index, buf, offset) {
		return
	}
	e.record(Command{Kind: CmdSetFragmentBuffer, Index: index, Buffer: buf, Offset: offset})
}

func (e *RenderPassEncoder) checkBinding(index int, buf Buffer, offset uint64) bool {
	switch {
	case index < 0 || index >= MaxBufferBindings:
		e.setErr(fmt.Errorf("%w: buffer index %d out of range", ErrInvalidCommand, index))
	case buf == nil:
		e.setErr(fmt.Errorf("%w: nil buffer at index %d", ErrInvalidCommand, index))
	case offset > buf.Size():
		e.setErr(fmt.Errorf("%w: offset %d beyond buffer %q (%d bytes)", ErrInvalidCommand, offset, buf.Label(), buf.Size()))
	default:
		return true
	}
	return false
}

// Draw records a non-indexed triangle-list draw. Every vertex buffer of the
// bound pipeline's layout must be bound and large enough.
func (e *RenderPassEncoder) Draw(vertexCount, firstVertex int) {
	if e.renderPipeline == nil {
		e.setErr(fmt.Errorf("%w: draw without render pipeline", ErrInvalidCommand))
		return
	}
	if vertexCount < 0 || firstVertex < 0 {
		e.setErr(fmt.Errorf("%w: draw(%d, %d)", ErrInvalidCommand, vertexCount, firstVertex))
		return
	}
	end := uint64(firstVertex + vertexCount)
	for i, layout := range e.renderPipeline.VertexBuffers() {
		buf := e.vertexBuffers[i]
		if buf == nil {
			e.setErr(fmt.Errorf("%w: vertex buffer %d not bound", ErrInvalidCommand, i))
			return
		}
		if need := e.vertexOffsets[i] + end*layout.ArrayStride; need > buf.Size() {
			e.setErr(fmt.Errorf("%w: vertex buffer %d holds %d bytes, draw reads %d",
				ErrInvalidCommand, i, buf.Size(), need))
			return
		}
	}
	e.record(Command{Kind: CmdDraw, VertexCount: vertexCount, FirstVertex: firstVertex})
}

// DispatchThreadsPerTile runs the bound tile pipeline once per tile.
func (e *RenderPassEncoder) DispatchThreadsPerTile() {
	e.record(Command{Kind: CmdDispatchTile})
}

// End closes the pass and returns the first recording error, which is also
// reported by CommandBuffer.Commit.
func (e *RenderPassEncoder) End() error {
	if e.ended {
		return errors.Join(e.err, fmt.Errorf("%w: End called twice", ErrInvalidCommand))
	}
	e.ended = true
	if e.cb.open == e {
		e.cb.open = nil
	}
	if e.err == nil {
		if err := e.checkDispatchOrder(); err != nil {
			e.err = err
		}
	}
	if e.err != nil {
		return e.cb.fail(e.err)
	}
	e.cb.passes = append(e.cb.passes, e.pass)
	return nil
}

// checkDispatchOrder verifies every tile dispatch has a tile pipeline bound.
func (e *RenderPassEncoder) checkDispatchOrder() error {
	bound := false
	for _, c := range e.pass.Commands {
		switch c.Kind {
		case CmdSetTilePipeline:
			bound = true
		case CmdDispatchTile:
			if !bound {
				return fmt.Errorf("%w: tile dispatch without tile pipeline", ErrInvalidCommand)
			}
		}
	}
	return nil
}
