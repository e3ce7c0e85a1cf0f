package software

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/internal/color"
	"github.com/gogpu/wgpu/hal/software/raster"
)

// =============================================================================
// Buffers
// =============================================================================

type buffer struct {
	dev      *Device
	label    string
	data     []byte
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
	if err := d.reserve(int64(size), desc.Label); err != nil {
		return nil, err
	}
	data := make([]byte, size)
	copy(data, contents)
	return &buffer{dev: d, label: desc.Label, data: data}, nil
}

func (b *buffer) Label() string { return b.label }
func (b *buffer) Size() uint64  { return uint64(len(b.data)) }

func (b *buffer) Release() {
	if b.released.Swap(true) {
		return
	}
	b.dev.unreserve(int64(len(b.data)))
}

// =============================================================================
// Textures
// =============================================================================

// texture is either a color attachment (pixels) or a depth attachment
// (depth, plus stencil for Depth32FloatStencil8).
type texture struct {
	dev           *Device
	label         string
	width, height int
	format        gputypes.TextureFormat

	codec     color.Codec
	texelSize int
	pixels    []byte

	depth   *raster.DepthBuffer
	stencil *raster.StencilBuffer

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

	if isDepthFormat(desc.Format) {
		t.bytes = pixels * 4
		if desc.Format.HasStencil() {
			t.bytes += pixels
		}
		if err := d.reserve(t.bytes, desc.Label); err != nil {
			return nil, err
		}
		t.depth = raster.NewDepthBuffer(desc.Width, desc.Height)
		if desc.Format.HasStencil() {
			t.stencil = raster.NewStencilBuffer(desc.Width, desc.Height)
		}
		return t, nil
	}

	codec, err := color.CodecFor(desc.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnsupportedFormat, desc.Format)
	}
	t.codec = codec
	t.texelSize = color.TexelSize
	t.bytes = pixels * color.TexelSize
	if err := d.reserve(t.bytes, desc.Label); err != nil {
		return nil, err
	}
	t.pixels = make([]byte, t.bytes)
	return t, nil
}

func (t *texture) Label() string                  { return t.label }
func (t *texture) Width() int                     { return t.width }
func (t *texture) Height() int                    { return t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }

// ReadPixels implements backend.Texture.
func (t *texture) ReadPixels(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.pixels == nil {
		return nil, fmt.Errorf("%w: read back of %v texture %q", backend.ErrUnsupportedFormat, t.format, t.label)
	}
	if t.released.Load() {
		return nil, fmt.Errorf("%w: texture %q released", backend.ErrInvalidCommand, t.label)
	}
	out := make([]byte, len(t.pixels))
	copy(out, t.pixels)
	return out, nil
}

func (t *texture) Release() {
	if t.released.Swap(true) {
		return
	}
	t.dev.unreserve(t.bytes)
}

// =============================================================================
// Pipelines
// =============================================================================

type renderPipeline struct {
	label       string
	vertex      *function
	fragment    *function
	layouts     []gputypes.VertexBufferLayout
	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
}

func (p *renderPipeline) Label() string                                { return p.label }
func (p *renderPipeline) ColorFormat() gputypes.TextureFormat          { return p.colorFormat }
func (p *renderPipeline) DepthStencilFormat() gputypes.TextureFormat   { return p.depthFormat }
func (p *renderPipeline) VertexBuffers() []gputypes.VertexBufferLayout { return p.layouts }
func (p *renderPipeline) ImageBlockSampleLength() int                  { return p.fragment.sampleLength }

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
	if err := d.checkColorFormat(desc.ColorFormat); err != nil {
		return nil, err
	}
	if desc.DepthStencilFormat != gputypes.TextureFormatUndefined && !isDepthFormat(desc.DepthStencilFormat) {
		return nil, fmt.Errorf("%w: depth/stencil %v", backend.ErrUnsupportedFormat, desc.DepthStencilFormat)
	}
	if desc.Blend != nil {
		return nil, fmt.Errorf("%w: pipeline %q enables blending on an image-block fragment program",
			backend.ErrInvalidCommand, desc.Label)
	}
	if len(desc.VertexBuffers) != len(vs.strides) {
		return nil, fmt.Errorf("%w: %q reads %d vertex buffers, layout declares %d",
			backend.ErrInvalidCommand, vs.name, len(vs.strides), len(desc.VertexBuffers))
	}
	for i, l := range desc.VertexBuffers {
		if l.ArrayStride != vs.strides[i] {
			return nil, fmt.Errorf("%w: vertex buffer %d stride %d, %q reads %d",
				backend.ErrInvalidCommand, i, l.ArrayStride, vs.name, vs.strides[i])
		}
	}
	if fs.varyings > vs.varyings {
		return nil, fmt.Errorf("%w: %q reads %d varyings, %q writes %d",
			backend.ErrInvalidCommand, fs.name, fs.varyings, vs.name, vs.varyings)
	}

	slogger().Debug("software: render pipeline created", "label", desc.Label,
		"vertex", vs.name, "fragment", fs.name, "sampleLength", fs.sampleLength)
	return &renderPipeline{
		label:       desc.Label,
		vertex:      vs,
		fragment:    fs,
		layouts:     append([]gputypes.VertexBufferLayout(nil), desc.VertexBuffers...),
		colorFormat: desc.ColorFormat,
		depthFormat: desc.DepthStencilFormat,
	}, nil
}

type tilePipeline struct {
	label         string
	fn            *function
	colorFormat   gputypes.TextureFormat
	width, height int
}

func (p *tilePipeline) Label() string                       { return p.label }
func (p *tilePipeline) ColorFormat() gputypes.TextureFormat { return p.colorFormat }
func (p *tilePipeline) TileSize() (int, int)                { return p.width, p.height }
func (p *tilePipeline) ImageBlockSampleLength() int         { return p.fn.sampleLength }

// CreateTilePipeline implements backend.Device. One goroutine walks every
// pixel of a tile, so any threadgroup request is satisfied.
func (d *Device) CreateTilePipeline(desc *backend.TilePipelineDescriptor) (backend.TilePipeline, error) {
	fn, err := d.lib.resolve(desc.TileFunction, backend.StageTile)
	if err != nil {
		return nil, err
	}
	if desc.TileWidth <= 0 || desc.TileHeight <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", backend.ErrTileSize, desc.TileWidth, desc.TileHeight)
	}
	if err := d.checkColorFormat(desc.ColorFormat); err != nil {
		return nil, err
	}
	slogger().Debug("software: tile pipeline created", "label", desc.Label, "function", fn.name,
		"tile", fmt.Sprintf("%dx%d", desc.TileWidth, desc.TileHeight))
	return &tilePipeline{
		label:       desc.Label,
		fn:          fn,
		colorFormat: desc.ColorFormat,
		width:       desc.TileWidth,
		height:      desc.TileHeight,
	}, nil
}

func (d *Device) checkColorFormat(f gputypes.TextureFormat) error {
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
	test    raster.CompareFunc
	write   bool
}

func (s *depthStencilState) Label() string                          { return s.label }
func (s *depthStencilState) DepthCompare() gputypes.CompareFunction { return s.compare }
func (s *depthStencilState) DepthWriteEnabled() bool                { return s.write }

// CreateDepthStencilState implements backend.Device.
func (d *Device) CreateDepthStencilState(desc *backend.DepthStencilDescriptor) (backend.DepthStencilState, error) {
	test, ok := compareFuncs[desc.DepthCompare]
	if !ok {
		return nil, fmt.Errorf("%w: depth compare %v", backend.ErrInvalidCommand, desc.DepthCompare)
	}
	return &depthStencilState{
		label:   desc.Label,
		compare: desc.DepthCompare,
		test:    test,
		write:   desc.DepthWriteEnabled,
	}, nil
}

var compareFuncs = map[gputypes.CompareFunction]raster.CompareFunc{
	gputypes.CompareFunctionUndefined:    raster.CompareAlways,
	gputypes.CompareFunctionNever:        raster.CompareNever,
	gputypes.CompareFunctionLess:         raster.CompareLess,
	gputypes.CompareFunctionEqual:        raster.CompareEqual,
	gputypes.CompareFunctionLessEqual:    raster.CompareLessEqual,
	gputypes.CompareFunctionGreater:      raster.CompareGreater,
	gputypes.CompareFunctionNotEqual:     raster.CompareNotEqual,
	gputypes.CompareFunctionGreaterEqual: raster.CompareGreaterEqual,
	gputypes.CompareFunctionAlways:       raster.CompareAlways,
}
