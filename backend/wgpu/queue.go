// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
	"github.com/gogpu/wgpu/hal"
)

// pollInterval is the sleep between submission index polls.
const pollInterval = 50 * time.Microsecond

// clipVertexSize is a clip-space position followed by the vertex color.
const clipVertexSize = 32

// queue records every command buffer into one HAL encoder and submits it.
type queue struct {
	dev *Device
	raw hal.Queue
	mu  sync.Mutex

	layers scratch
	clip   scratch
	depth  scratch
}

// scratch is a grow-only storage buffer reused across submissions.
type scratch struct {
	buf  hal.Buffer
	size uint64
}

// get returns a buffer of at least size bytes. q.mu must be held and the
// GPU must be idle with respect to the old buffer.
func (q *queue) get(s *scratch, label string, size uint64) (hal.Buffer, error) {
	size = alignedSize(size)
	if s.buf != nil && s.size >= size {
		return s.buf, nil
	}
	if limit := q.dev.limits.MaxStorageBufferBindingSize; limit > 0 && size > limit {
		return nil, fmt.Errorf("%w: %s needs %d bytes, binding limit is %d", backend.ErrOutOfMemory, label, size, limit)
	}
	buf, err := q.dev.createRaw(label, size, gputypes.BufferUsageStorage)
	if err != nil {
		return nil, err
	}
	if s.buf != nil {
		q.dev.raw.DestroyBuffer(s.buf)
	}
	s.buf, s.size = buf, size
	slogger().Debug("wgpu: scratch buffer grown", "label", label, "bytes", size)
	return buf, nil
}

func (q *queue) destroyScratch() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, s := range []*scratch{&q.layers, &q.clip, &q.depth} {
		if s.buf != nil {
			q.dev.raw.DestroyBuffer(s.buf)
			*s = scratch{}
		}
	}
}

// CommandBuffer implements backend.Queue.
func (q *queue) CommandBuffer(label string) *backend.CommandBuffer {
	return backend.NewCommandBuffer(label)
}

// Submit implements backend.Queue. ctx is checked only before encoding;
// once submitted the GPU work runs to completion or times out.
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
	start := time.Now()
	f, err := q.plan(cb.Passes())
	if err == nil {
		err = q.execute(cb.Label(), f)
	}
	if err != nil {
		err = fmt.Errorf("execute %q: %w", cb.Label(), err)
		cb.Complete(err)
		return err
	}
	cb.Complete(nil)

	slogger().Debug("wgpu: command buffer executed",
		"label", cb.Label(),
		"passes", len(cb.Passes()),
		"dispatches", len(f.dispatches),
		"draws", f.draws,
		"triangles", f.triangles,
		"elapsed", time.Since(start))
	return nil
}

// =============================================================================
// Planning
// =============================================================================

// Flags understood by oit.wgsl.
const (
	flagClearColor uint32 = 1 << iota
	flagClearDepth
	flagHasDepth
	flagDepthWrite
)

const (
	formatBGRA uint32 = 1 << iota
	formatSRGB
)

// params is the per-dispatch uniform block of oit.wgsl.
type params struct {
	width, height uint32
	tileW, tileH  uint32
	firstVertex   uint32
	vertexCount   uint32
	flags         uint32
	depthCompare  uint32
	colorFormat   uint32
	cull          uint32
	offsets       [6]uint32
	clearColor    [4]float32
	clearDepth    float32
}

// paramsSize is the WGSL size of Params.
const paramsSize = 96

func (p *params) encode(dst []byte) {
	le := binary.LittleEndian
	words := []uint32{
		p.width, p.height, p.tileW, p.tileH,
		p.firstVertex, p.vertexCount, p.flags, p.depthCompare,
		p.colorFormat, p.cull,
	}
	words = append(words, p.offsets[:]...)
	for i, w := range words {
		le.PutUint32(dst[4*i:], w)
	}
	for i, c := range p.clearColor {
		le.PutUint32(dst[64+4*i:], math.Float32bits(c))
	}
	le.PutUint32(dst[80:], math.Float32bits(p.clearDepth))
}

// dispatch is one compute pass of the submission.
type dispatch struct {
	prog    *program
	params  params
	groups  [2]uint32
	streams [6]hal.Buffer
	color   hal.Buffer
	depth   hal.Buffer
}

// frame is the whole submission, planned before anything is encoded.
type frame struct {
	dispatches []dispatch
	layerBytes uint64
	clipBytes  uint64

	draws     int
	triangles int
}

func groups(n, size int) uint32 {
	return uint32((n + size - 1) / size)
}

func colorFormatBits(t *texture) uint32 {
	var bits uint32
	switch t.format {
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		bits |= formatBGRA
	}
	if t.codec.IsSRGB() {
		bits |= formatSRGB
	}
	return bits
}

var cullModes = map[gputypes.CullMode]uint32{
	gputypes.CullModeNone:  0,
	gputypes.CullModeFront: 1,
	gputypes.CullModeBack:  2,
}

// passState is the binding state while walking a pass's commands.
type passState struct {
	render        *renderPipeline
	tile          *tilePipeline
	depthState    *depthStencilState
	cull          gputypes.CullMode
	vertexBuffers [backend.MaxBufferBindings]*buffer
	vertexOffsets [backend.MaxBufferBindings]uint64
}

func (q *queue) plan(passes []*backend.RenderPass) (*frame, error) {
	f := &frame{}
	for _, pass := range passes {
		if err := q.planPass(f, pass); err != nil {
			return nil, fmt.Errorf("pass %q: %w", pass.Descriptor.Label, err)
		}
	}
	return f, nil
}

func (q *queue) planPass(f *frame, pass *backend.RenderPass) error {
	desc := &pass.Descriptor
	target, ok := desc.ColorTexture.(*texture)
	if !ok || !target.isColor() {
		return fmt.Errorf("%w: color attachment %q is not a wgpu color texture",
			backend.ErrInvalidCommand, desc.ColorTexture.Label())
	}
	var depth *texture
	if desc.DepthTexture != nil {
		depth, ok = desc.DepthTexture.(*texture)
		if !ok || depth.isColor() {
			return fmt.Errorf("%w: depth attachment %q is not a wgpu depth texture",
				backend.ErrInvalidCommand, desc.DepthTexture.Label())
		}
	}
	if err := q.dev.checkTileSize(desc.TileWidth, desc.TileHeight); err != nil {
		return err
	}

	w, h := target.width, target.height
	f.layerBytes = max(f.layerBytes, uint64(w*h*desc.ImageBlockSampleLength))
	base := params{
		width:       uint32(w),
		height:      uint32(h),
		tileW:       uint32(desc.TileWidth),
		tileH:       uint32(desc.TileHeight),
		colorFormat: colorFormatBits(target),
	}
	attach := func(d *dispatch) {
		d.color = target.raw
		if depth != nil {
			d.depth = depth.raw
		}
	}

	load := base
	if desc.ColorLoadOp == gputypes.LoadOpClear {
		load.flags |= flagClearColor
		c := desc.ClearColor
		load.clearColor = [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
	}
	if depth != nil {
		load.flags |= flagHasDepth
		if desc.DepthLoadOp == gputypes.LoadOpClear {
			load.flags |= flagClearDepth
			load.clearDepth = desc.ClearDepth
		}
	}
	if load.flags&(flagClearColor|flagClearDepth) != 0 {
		prog, err := q.dev.program(loadAttachments, 0, 0)
		if err != nil {
			return err
		}
		d := dispatch{prog: prog, params: load, groups: [2]uint32{groups(w, pixelWorkgroup), groups(h, pixelWorkgroup)}}
		attach(&d)
		f.dispatches = append(f.dispatches, d)
	}

	var st passState
	for i := range pass.Commands {
		c := &pass.Commands[i]
		switch c.Kind {
		case backend.CmdSetRenderPipeline:
			p, ok := c.RenderPipeline.(*renderPipeline)
			if !ok {
				return fmt.Errorf("%w: foreign render pipeline %q", backend.ErrInvalidCommand, c.RenderPipeline.Label())
			}
			st.render = p
		case backend.CmdSetTilePipeline:
			p, ok := c.TilePipeline.(*tilePipeline)
			if !ok {
				return fmt.Errorf("%w: foreign tile pipeline %q", backend.ErrInvalidCommand, c.TilePipeline.Label())
			}
			st.tile = p
		case backend.CmdSetDepthStencilState:
			s, ok := c.DepthStencil.(*depthStencilState)
			if c.DepthStencil != nil && !ok {
				return fmt.Errorf("%w: foreign depth/stencil state", backend.ErrInvalidCommand)
			}
			st.depthState = s
		case backend.CmdSetCullMode:
			st.cull = c.CullMode
		case backend.CmdSetVertexBuffer, backend.CmdSetFragmentBuffer:
			b, ok := c.Buffer.(*buffer)
			if !ok {
				return fmt.Errorf("%w: foreign buffer %q", backend.ErrInvalidCommand, c.Buffer.Label())
			}
			if c.Offset%4 != 0 {
				return fmt.Errorf("%w: buffer %q bound at unaligned offset %d", backend.ErrInvalidCommand, b.label, c.Offset)
			}
			if c.Kind == backend.CmdSetVertexBuffer {
				st.vertexBuffers[c.Index] = b
				st.vertexOffsets[c.Index] = c.Offset
			}
		case backend.CmdDraw:
			if err := q.planDraw(f, &st, base, c, attach, depth != nil); err != nil {
				return err
			}
		case backend.CmdDispatchTile:
			tw, th := st.tile.TileSize()
			d := dispatch{prog: st.tile.prog, params: base, groups: [2]uint32{groups(w, tw), groups(h, th)}}
			attach(&d)
			f.dispatches = append(f.dispatches, d)
		}
	}
	return nil
}

// planDraw adds the vertex pass and the per-pixel fragment pass of a draw.
func (q *queue) planDraw(f *frame, st *passState, base params, c *backend.Command, attach func(*dispatch), hasDepth bool) error {
	f.draws++
	if c.VertexCount == 0 {
		return nil
	}
	frameBuf := st.vertexBuffers[len(vertexStrides)]
	if frameBuf == nil || frameBuf.size < st.vertexOffsets[len(vertexStrides)]+frameUniformsSize {
		return fmt.Errorf("%w: %q needs %d bytes of frame uniforms at vertex buffer %d",
			backend.ErrInvalidCommand, backend.FunctionVertexTransform, frameUniformsSize, len(vertexStrides))
	}

	p := base
	p.firstVertex = uint32(c.FirstVertex)
	p.vertexCount = uint32(c.VertexCount)
	p.cull = cullModes[st.cull]
	p.depthCompare = uint32(gputypes.CompareFunctionAlways)
	if st.depthState != nil {
		p.depthCompare = uint32(st.depthState.compare)
		if st.depthState.write {
			p.flags |= flagDepthWrite
		}
	}
	if hasDepth {
		p.flags |= flagHasDepth
	}

	vertex := dispatch{prog: st.render.vertex, params: p, groups: [2]uint32{groups(c.VertexCount, vertexWorkgroup), 1}}
	for i := range vertex.streams {
		vertex.streams[i] = st.vertexBuffers[i].raw
		vertex.params.offsets[i] = uint32(st.vertexOffsets[i] / 4)
	}
	fragment := dispatch{prog: st.render.fragment, params: p,
		groups: [2]uint32{groups(int(p.width), pixelWorkgroup), groups(int(p.height), pixelWorkgroup)}}
	attach(&fragment)

	f.dispatches = append(f.dispatches, vertex, fragment)
	f.clipBytes = max(f.clipBytes, uint64(c.VertexCount*clipVertexSize))
	f.triangles += c.VertexCount / 3
	return nil
}

// =============================================================================
// Encoding and submission
// =============================================================================

// submission tracks per-submit HAL objects for cleanup.
type submission struct {
	dev        hal.Device
	params     hal.Buffer
	bindGroups []hal.BindGroup
	cmdBuf     hal.CommandBuffer
}

func (s *submission) cleanup() {
	if s.cmdBuf != nil {
		s.dev.FreeCommandBuffer(s.cmdBuf)
	}
	for _, g := range s.bindGroups {
		s.dev.DestroyBindGroup(g)
	}
	if s.params != nil {
		s.dev.DestroyBuffer(s.params)
	}
}

func (q *queue) execute(label string, f *frame) error {
	if len(f.dispatches) == 0 {
		return nil
	}
	layers, err := q.get(&q.layers, "oit_layers", f.layerBytes)
	if err != nil {
		return err
	}
	clip, err := q.get(&q.clip, "oit_clip", max(f.clipBytes, clipVertexSize))
	if err != nil {
		return err
	}
	noDepth, err := q.get(&q.depth, "oit_no_depth", 4)
	if err != nil {
		return err
	}

	align := uint64(q.dev.limits.MinUniformBufferOffsetAlignment)
	if align < paramsSize {
		align = 256
	}
	sub := &submission{dev: q.dev.raw}
	sub.params, err = q.dev.createRaw("oit_params", align*uint64(len(f.dispatches)),
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	ok := false
	defer func() {
		if !ok {
			// The GPU may still be reading the submission.
			_ = q.dev.raw.WaitIdle()
		}
		sub.cleanup()
	}()

	block := make([]byte, align*uint64(len(f.dispatches)))
	for i := range f.dispatches {
		f.dispatches[i].params.encode(block[uint64(i)*align:])
	}
	if err := q.raw.WriteBuffer(sub.params, 0, block); err != nil {
		return halError("upload params", err)
	}

	encoder, err := q.dev.raw.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return halError("create command encoder", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return halError("begin encoding", err)
	}
	for i := range f.dispatches {
		d := &f.dispatches[i]
		bg, err := q.dev.raw.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   d.prog.fn.name + "_bg",
			Layout:  d.prog.bgl,
			Entries: q.bindGroupEntries(d, sub.params, uint64(i)*align, layers, clip, noDepth),
		})
		if err != nil {
			encoder.DiscardEncoding()
			return halError("create bind group for "+d.prog.fn.name, err)
		}
		sub.bindGroups = append(sub.bindGroups, bg)

		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: d.prog.fn.name})
		pass.SetPipeline(d.prog.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(d.groups[0], d.groups[1], 1)
		pass.End()
	}
	sub.cmdBuf, err = encoder.EndEncoding()
	if err != nil {
		return halError("end encoding", err)
	}

	if err := q.submitAndWait(sub.cmdBuf); err != nil {
		return err
	}
	ok = true
	return nil
}

func (q *queue) bindGroupEntries(d *dispatch, paramsBuf hal.Buffer, offset uint64, layers, clip, noDepth hal.Buffer) []gputypes.BindGroupEntry {
	entries := make([]gputypes.BindGroupEntry, 0, len(d.prog.fn.bindings))
	for _, b := range d.prog.fn.bindings {
		res := gputypes.BufferBinding{}
		switch {
		case b == bindParams:
			res = gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: offset, Size: paramsSize}
		case b >= bindPositions && b <= bindFrame:
			res.Buffer = d.streams[b-bindPositions].NativeHandle()
		case b == bindClip:
			res.Buffer = clip.NativeHandle()
		case b == bindLayers:
			res.Buffer = layers.NativeHandle()
		case b == bindAttachment:
			res.Buffer = d.color.NativeHandle()
		case b == bindDepth:
			if d.depth != nil {
				res.Buffer = d.depth.NativeHandle()
			} else {
				res.Buffer = noDepth.NativeHandle()
			}
		}
		entries = append(entries, gputypes.BindGroupEntry{Binding: b, Resource: res})
	}
	return entries
}

// submitAndWait submits cmd and polls the submission index until the GPU
// reports it complete.
func (q *queue) submitAndWait(cmd hal.CommandBuffer) error {
	idx, err := q.raw.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return halError("submit", err)
	}
	deadline := time.Now().Add(q.dev.timeout)
	for q.raw.PollCompleted() < idx {
		if time.Now().After(deadline) {
			return halError(fmt.Sprintf("submission %d after %v", idx, q.dev.timeout), hal.ErrTimeout)
		}
		time.Sleep(pollInterval)
	}
	return nil
}

// readback copies size bytes of src into host memory.
func (q *queue) readback(ctx context.Context, src hal.Buffer, size uint64, label string) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.dev.closed.Load() {
		return nil, backend.ErrClosed
	}

	staging, err := q.dev.createRaw(label+"_readback", size, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	defer q.dev.raw.DestroyBuffer(staging)

	encoder, err := q.dev.raw.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_readback"})
	if err != nil {
		return nil, halError("create command encoder", err)
	}
	if err := encoder.BeginEncoding(label + "_readback"); err != nil {
		return nil, halError("begin encoding", err)
	}
	encoder.CopyBufferToBuffer(src, staging, []hal.BufferCopy{{Size: size}})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, halError("end encoding", err)
	}
	defer q.dev.raw.FreeCommandBuffer(cmd)

	if err := q.submitAndWait(cmd); err != nil {
		_ = q.dev.raw.WaitIdle()
		return nil, err
	}

	m, err := q.dev.raw.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, halError("map "+label, err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(m.Ptr), size))
	if err := q.dev.raw.UnmapBuffer(staging); err != nil {
		return nil, halError("unmap "+label, err)
	}
	return out, nil
}
