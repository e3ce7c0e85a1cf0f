// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/internal/color"
	"github.com/gogpu/wgpu/hal"
)

// alignedSize rounds n up to a whole number of 4-byte words, at least one.
func alignedSize(n uint64) uint64 {
	if n < 4 {
		return 4
	}
	return (n + 3) &^ 3
}

// =============================================================================
// Buffers
// =============================================================================

// buffer is a storage buffer. size is the requested size; the HAL buffer
// is padded to a multiple of four bytes.
type buffer struct {
	dev      *Device
	label    string
	size     uint64
	raw      hal.Buffer
	released atomic.Bool
}

// CreateBuffer implements backend.Device.
func (d *Device) CreateBuffer(desc *backend.BufferDescriptor, contents []byte) (backend.Buffer, error) {
	size := desc.Size
	if size == 0 {
		size = uint64(len(contents))
	}
	if uint64(len(contents)) > size {
		return nil, fmt.Errorf("%w: %d bytes of contents for %q (%d bytes)", backend.ErrInvalidCommand,
			len(contents), desc.Label, size)
	}
	if limit := d.limits.MaxStorageBufferBindingSize; limit > 0 && size > limit {
		return nil, fmt.Errorf("%w: %q needs %d bytes, binding limit is %d", backend.ErrOutOfMemory,
			desc.Label, size, limit)
	}
	if err := d.reserve(int64(size), desc.Label); err != nil {
		return nil, err
	}
	raw, err := d.createRaw(desc.Label, alignedSize(size),
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc)
	if err != nil {
		d.unreserve(int64(size))
		return nil, err
	}
	if len(contents) > 0 {
		data := contents
		if n := alignedSize(uint64(len(contents))); n != uint64(len(contents)) {
			data = make([]byte, n)
			copy(data, contents)
		}
		if err := d.queue.raw.WriteBuffer(raw, 0, data); err != nil {
			d.raw.DestroyBuffer(raw)
			d.unreserve(int64(size))
			return nil, halError("upload "+desc.Label, err)
		}
	}
	return &buffer{dev: d, label: desc.Label, size: size, raw: raw}, nil
}

func (d *Device) createRaw(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	raw, err := d.raw.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, halError("create buffer "+label, err)
	}
	return raw, nil
}

func (b *buffer) Label() string { return b.label }
func (b *buffer) Size() uint64  { return b.size }

func (b *buffer) Release() {
	if b.released.Swap(true) {
		return
	}
	b.dev.raw.DestroyBuffer(b.raw)
	b.dev.unreserve(int64(b.size))
}

// =============================================================================
// Textures
// =============================================================================

// texture is an attachment backed by a storage buffer: packed 8-bit texels
// for color formats, float32 for depth.
type texture struct {
	dev           *Device
	label         string
	width, height int
	format        gputypes.TextureFormat
	codec         color.Codec
	raw           hal.Buffer

	bytes    int64
	released atomic.Bool
}

// CreateTexture implements backend.Device.
func (d *Device) CreateTexture(desc *backend.TextureDescriptor) (backend.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: texture %q is %dx%d", backend.ErrInvalidCommand, desc.Label, desc.Width, desc.Height)
	}
	t := &texture{dev: d, label: desc.Label, width: desc.Width, height: desc.Height, format: desc.Format}
	pixels := int64(desc.Width) * int64(desc.Height)

	switch {
	case isDepthFormat(desc.Format):
		t.bytes = pixels * 4
		if desc.Format.HasStencil() {
			t.bytes += pixels
		}
	default:
		codec, err := color.CodecFor(desc.Format)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrUnsupportedFormat, desc.Format)
		}
		t.codec = codec
		t.bytes = pixels * color.TexelSize
	}

	if limit := d.limits.MaxStorageBufferBindingSize; limit > 0 && uint64(pixels*4) > limit {
		return nil, fmt.Errorf("%w: texture %q is %dx%d, binding limit is %d bytes", backend.ErrOutOfMemory,
			desc.Label, desc.Width, desc.Height, limit)
	}
	if err := d.reserve(t.bytes, desc.Label); err != nil {
		return nil, err
	}
	raw, err := d.createRaw(desc.Label, uint64(pixels*4),
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		d.unreserve(t.bytes)
		return nil, err
	}
	t.raw = raw
	return t, nil
}

func (t *texture) Label() string                  { return t.label }
func (t *texture) Width() int                     { return t.width }
func (t *texture) Height() int                    { return t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }

func (t *texture) isColor() bool { return !isDepthFormat(t.format) }

// ReadPixels implements backend.Texture. It copies the attachment into a
// mappable staging buffer and waits for the copy.
func (t *texture) ReadPixels(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !t.isColor() {
		return nil, fmt.Errorf("%w: read back of %v texture %q", backend.ErrUnsupportedFormat, t.format, t.label)
	}
	if t.released.Load() {
		return nil, fmt.Errorf("%w: texture %q released", backend.ErrInvalidCommand, t.label)
	}
	return t.dev.queue.readback(ctx, t.raw, uint64(t.width*t.height*color.TexelSize), t.label)
}

func (t *texture) Release() {
	if t.released.Swap(true) {
		return
	}
	t.dev.raw.DestroyBuffer(t.raw)
	t.dev.unreserve(t.bytes)
}

// =============================================================================
// Pipelines
// =============================================================================

// renderPipeline runs the vertex program as one compute pass and the
// fragment program as a per-pixel pass.
type renderPipeline struct {
	label       string
	vertex      *program
	fragment    *program
	layouts     []gputypes.VertexBufferLayout
	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
}

func (p *renderPipeline) Label() string                                { return p.label }
func (p *renderPipeline) ColorFormat() gputypes.TextureFormat          { return p.colorFormat }
func (p *renderPipeline) DepthStencilFormat() gputypes.TextureFormat   { return p.depthFormat }
func (p *renderPipeline) VertexBuffers() []gputypes.VertexBufferLayout { return p.layouts }
func (p *renderPipeline) ImageBlockSampleLength() int                  { return p.fragment.fn.sampleLength }

// CreateRenderPipeline implements backend.Device.
func (d *Device) CreateRenderPipeline(desc *backend.RenderPipelineDescriptor) (backend.RenderPipeline, error) {
	vs, err := d.lib.resolve(desc.VertexFunction, backend.StageVertex)
	if err != nil {
		return nil, err
	}
	fs, err := d.lib.resolve(desc.FragmentFunction, backend.StageFragment)
	if err != nil {
		return nil, err
	}
	if err := checkColorFormat(desc.ColorFormat); err != nil {
		return nil, err
	}
	if desc.DepthStencilFormat != gputypes.TextureFormatUndefined && !isDepthFormat(desc.DepthStencilFormat) {
		return nil, fmt.Errorf("%w: depth/stencil %v", backend.ErrUnsupportedFormat, desc.DepthStencilFormat)
	}
	if desc.Blend != nil {
		return nil, fmt.Errorf("%w: pipeline %q enables blending on an image-block fragment program",
			backend.ErrInvalidCommand, desc.Label)
	}
	if len(desc.VertexBuffers) != len(vertexStrides) {
		return nil, fmt.Errorf("%w: %q reads %d vertex buffers, layout declares %d",
			backend.ErrInvalidCommand, vs.name, len(vertexStrides), len(desc.VertexBuffers))
	}
	for i, l := range desc.VertexBuffers {
		if l.ArrayStride != vertexStrides[i] {
			return nil, fmt.Errorf("%w: vertex buffer %d stride %d, %q reads %d",
				backend.ErrInvalidCommand, i, l.ArrayStride, vs.name, vertexStrides[i])
		}
	}

	vp, err := d.program(vs, 0, 0)
	if err != nil {
		return nil, err
	}
	fp, err := d.program(fs, 0, 0)
	if err != nil {
		return nil, err
	}
	slogger().Debug("wgpu: render pipeline created", "label", desc.Label,
		"vertex", vs.name, "fragment", fs.name, "sampleLength", fs.sampleLength)
	return &renderPipeline{
		label:       desc.Label,
		vertex:      vp,
		fragment:    fp,
		layouts:     append([]gputypes.VertexBufferLayout(nil), desc.VertexBuffers...),
		colorFormat: desc.ColorFormat,
		depthFormat: desc.DepthStencilFormat,
	}, nil
}

type tilePipeline struct {
	label         string
	prog          *program
	colorFormat   gputypes.TextureFormat
	width, height int
}

func (p *tilePipeline) Label() string                       { return p.label }
func (p *tilePipeline) ColorFormat() gputypes.TextureFormat { return p.colorFormat }
func (p *tilePipeline) TileSize() (int, int)                { return p.width, p.height }
func (p *tilePipeline) ImageBlockSampleLength() int         { return p.prog.fn.sampleLength }

// CreateTilePipeline implements backend.Device. The workgroup always equals
// the tile size, so the tile must fit the device's workgroup limits.
func (d *Device) CreateTilePipeline(desc *backend.TilePipelineDescriptor) (backend.TilePipeline, error) {
	fn, err := d.lib.resolve(desc.TileFunction, backend.StageTile)
	if err != nil {
		return nil, err
	}
	if err := d.checkTileSize(desc.TileWidth, desc.TileHeight); err != nil {
		return nil, err
	}
	if err := checkColorFormat(desc.ColorFormat); err != nil {
		return nil, err
	}
	prog, err := d.program(fn, desc.TileWidth, desc.TileHeight)
	if err != nil {
		return nil, err
	}
	slogger().Debug("wgpu: tile pipeline created", "label", desc.Label, "function", fn.name,
		"tile", fmt.Sprintf("%dx%d", desc.TileWidth, desc.TileHeight))
	return &tilePipeline{
		label:       desc.Label,
		prog:        prog,
		colorFormat: desc.ColorFormat,
		width:       desc.TileWidth,
		height:      desc.TileHeight,
	}, nil
}

func (d *Device) checkTileSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", backend.ErrTileSize, w, h)
	}
	l := d.limits
	if uint32(w) > l.MaxComputeWorkgroupSizeX || uint32(h) > l.MaxComputeWorkgroupSizeY ||
		uint32(w*h) > l.MaxComputeInvocationsPerWorkgroup {
		return fmt.Errorf("%w: %dx%d tile exceeds the workgroup limits (%dx%d, %d invocations)",
			backend.ErrTileSize, w, h, l.MaxComputeWorkgroupSizeX, l.MaxComputeWorkgroupSizeY,
			l.MaxComputeInvocationsPerWorkgroup)
	}
	return nil
}

func checkColorFormat(f gputypes.TextureFormat) error {
	if _, err := color.CodecFor(f); err != nil {
		return fmt.Errorf("%w: color %v", backend.ErrUnsupportedFormat, f)
	}
	return nil
}

// =============================================================================
// Depth/stencil state
// =============================================================================

type depthStencilState struct {
	label   string
	compare gputypes.CompareFunction
	write   bool
}

func (s *depthStencilState) Label() string                          { return s.label }
func (s *depthStencilState) DepthCompare() gputypes.CompareFunction { return s.compare }
func (s *depthStencilState) DepthWriteEnabled() bool                { return s.write }

// CreateDepthStencilState implements backend.Device.
func (d *Device) CreateDepthStencilState(desc *backend.DepthStencilDescriptor) (backend.DepthStencilState, error) {
	if desc.DepthCompare > gputypes.CompareFunctionAlways {
		return nil, fmt.Errorf("%w: depth compare %v", backend.ErrInvalidCommand, desc.DepthCompare)
	}
	return &depthStencilState{label: desc.Label, compare: desc.DepthCompare, write: desc.DepthWriteEnabled}, nil
}
