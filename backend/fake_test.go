package backend

import (
	"context"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Minimal in-memory device used by the package tests.

type fakeTexture struct {
	label    string
	w, h     int
	format   gputypes.TextureFormat
	released bool
}

func (t *fakeTexture) Label() string                  { return t.label }
func (t *fakeTexture) Width() int                     { return t.w }
func (t *fakeTexture) Height() int                    { return t.h }
func (t *fakeTexture) Format() gputypes.TextureFormat { return t.format }
func (t *fakeTexture) Release()                       { t.released = true }
func (t *fakeTexture) ReadPixels(context.Context) ([]byte, error) {
	return make([]byte, t.w*t.h*4), nil
}

type fakeBuffer struct {
	label string
	size  uint64
}

func (b *fakeBuffer) Label() string { return b.label }
func (b *fakeBuffer) Size() uint64  { return b.size }
func (b *fakeBuffer) Release()      {}

type fakeRenderPipeline struct {
	format       gputypes.TextureFormat
	layouts      []gputypes.VertexBufferLayout
	sampleLength int
}

func (p *fakeRenderPipeline) Label() string                               { return "accumulate" }
func (p *fakeRenderPipeline) ColorFormat() gputypes.TextureFormat         { return p.format }
func (p *fakeRenderPipeline) DepthStencilFormat() gputypes.TextureFormat  { return gputypes.TextureFormatDepth32FloatStencil8 }
func (p *fakeRenderPipeline) VertexBuffers() []gputypes.VertexBufferLayout { return p.layouts }
func (p *fakeRenderPipeline) ImageBlockSampleLength() int                 { return p.sampleLength }

type fakeTilePipeline struct {
	format       gputypes.TextureFormat
	w, h         int
	sampleLength int
}

func (p *fakeTilePipeline) Label() string                       { return "tile" }
func (p *fakeTilePipeline) ColorFormat() gputypes.TextureFormat { return p.format }
func (p *fakeTilePipeline) TileSize() (int, int)                { return p.w, p.h }
func (p *fakeTilePipeline) ImageBlockSampleLength() int         { return p.sampleLength }

type fakeDevice struct {
	textures []*fakeTexture
}

func (d *fakeDevice) Name() string                 { return "fake" }
func (d *fakeDevice) Info() gpucontext.AdapterInfo { return gpucontext.AdapterInfo{Name: "fake"} }
func (d *fakeDevice) Library() Library             { return nil }
func (d *fakeDevice) SupportsFormat(f gputypes.TextureFormat, _ gputypes.TextureUsage) bool {
	return f == gputypes.TextureFormatBGRA8UnormSrgb || f == gputypes.TextureFormatDepth32FloatStencil8
}
func (d *fakeDevice) CreateRenderPipeline(*RenderPipelineDescriptor) (RenderPipeline, error) {
	return &fakeRenderPipeline{}, nil
}
func (d *fakeDevice) CreateTilePipeline(*TilePipelineDescriptor) (TilePipeline, error) {
	return &fakeTilePipeline{}, nil
}
func (d *fakeDevice) CreateDepthStencilState(*DepthStencilDescriptor) (DepthStencilState, error) {
	return nil, nil
}
func (d *fakeDevice) CreateBuffer(desc *BufferDescriptor, contents []byte) (Buffer, error) {
	size := desc.Size
	if size == 0 {
		size = uint64(len(contents))
	}
	return &fakeBuffer{label: desc.Label, size: size}, nil
}
func (d *fakeDevice) CreateTexture(desc *TextureDescriptor) (Texture, error) {
	t := &fakeTexture{label: desc.Label, w: desc.Width, h: desc.Height, format: desc.Format}
	d.textures = append(d.textures, t)
	return t, nil
}
func (d *fakeDevice) Queue() Queue { return nil }
func (d *fakeDevice) Close() error { return nil }

func colorTexture(w, h int) *fakeTexture {
	return &fakeTexture{w: w, h: h, format: gputypes.TextureFormatBGRA8UnormSrgb}
}

func passDescriptor() *RenderPassDescriptor {
	return &RenderPassDescriptor{
		Label:                  "oit",
		ColorTexture:           colorTexture(64, 32),
		ColorLoadOp:            gputypes.LoadOpClear,
		DepthTexture:           &fakeTexture{w: 64, h: 32, format: gputypes.TextureFormatDepth32FloatStencil8},
		DepthLoadOp:            gputypes.LoadOpClear,
		ClearDepth:             1,
		TileWidth:              32,
		TileHeight:             16,
		ImageBlockSampleLength: 80,
	}
}
