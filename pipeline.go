package oit

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
)

// Pipelines are the immutable pipeline state objects of the OIT frame. They
// are built once per color format, depth format and tile size.
type Pipelines struct {
	// Accumulate draws instances into the layer stacks.
	Accumulate backend.RenderPipeline
	// Clear resets every layer of a tile.
	Clear backend.TilePipeline
	// Resolve composites the layers onto the color attachment.
	Resolve backend.TilePipeline
	// DepthStencil tests Less without writing depth.
	DepthStencil backend.DepthStencilState

	Layout      []gputypes.VertexBufferLayout
	ColorFormat gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat
	TileWidth   int
	TileHeight  int
}

// SampleLength returns the image-block bytes per pixel the render pass must
// provide.
func (p *Pipelines) SampleLength() int {
	return p.Resolve.ImageBlockSampleLength()
}

// BuildPipelines builds the accumulate, clear and resolve pipelines and the
// depth state for c's formats and tile size. Any failure is fatal and is
// reported as ErrMissingEntryPoint, ErrUnsupportedFormat,
// ErrTileSizeMismatch or ErrImageBlockMismatch.
func BuildPipelines(c *Context) (*Pipelines, error) {
	o := c.opts
	p := &Pipelines{
		Layout:      VertexLayout(),
		ColorFormat: o.colorFormat,
		DepthFormat: o.depthFormat,
		TileWidth:   o.tileWidth,
		TileHeight:  o.tileHeight,
	}

	if !c.dev.SupportsFormat(o.colorFormat, gputypes.TextureUsageRenderAttachment) {
		return nil, fmt.Errorf("%w: color %v on %s", ErrUnsupportedFormat, o.colorFormat, c.dev.Name())
	}
	if !o.depthFormat.HasDepth() || !c.dev.SupportsFormat(o.depthFormat, gputypes.TextureUsageRenderAttachment) {
		return nil, fmt.Errorf("%w: depth %v on %s", ErrUnsupportedFormat, o.depthFormat, c.dev.Name())
	}

	fns := make(map[string]backend.Function, 4)
	for _, name := range []string{
		backend.FunctionVertexTransform,
		backend.FunctionAccumulate,
		backend.FunctionClear,
		backend.FunctionResolve,
	} {
		fn, err := c.lib.Function(name)
		if err != nil {
			return nil, classify(fmt.Errorf("load %s: %w", name, err))
		}
		fns[name] = fn
	}

	var err error
	p.Accumulate, err = c.dev.CreateRenderPipeline(&backend.RenderPipelineDescriptor{
		Label:              "oit accumulate",
		VertexFunction:     fns[backend.FunctionVertexTransform],
		FragmentFunction:   fns[backend.FunctionAccumulate],
		VertexBuffers:      p.Layout,
		ColorFormat:        o.colorFormat,
		DepthStencilFormat: o.depthFormat,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("build accumulate pipeline: %w", err))
	}

	p.Clear, err = c.buildTilePipeline("oit clear", fns[backend.FunctionClear])
	if err != nil {
		return nil, err
	}
	p.Resolve, err = c.buildTilePipeline("oit resolve", fns[backend.FunctionResolve])
	if err != nil {
		return nil, err
	}

	resolveLen := p.Resolve.ImageBlockSampleLength()
	if n := p.Clear.ImageBlockSampleLength(); n != resolveLen {
		return nil, fmt.Errorf("%w: clear uses %d bytes, resolve %d", ErrImageBlockMismatch, n, resolveLen)
	}
	if n := p.Accumulate.ImageBlockSampleLength(); n != resolveLen {
		return nil, fmt.Errorf("%w: accumulate uses %d bytes, resolve %d", ErrImageBlockMismatch, n, resolveLen)
	}

	p.DepthStencil, err = c.dev.CreateDepthStencilState(&backend.DepthStencilDescriptor{
		Label:             "oit depth",
		DepthCompare:      gputypes.CompareFunctionLess,
		DepthWriteEnabled: false,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("build depth state: %w", err))
	}

	Logger().Info("oit: pipelines built",
		"backend", c.dev.Name(),
		"color", o.colorFormat.String(),
		"depth", o.depthFormat.String(),
		"tile", fmt.Sprintf("%dx%d", o.tileWidth, o.tileHeight),
		"sampleLength", resolveLen)
	return p, nil
}

func (c *Context) buildTilePipeline(label string, fn backend.Function) (backend.TilePipeline, error) {
	p, err := c.dev.CreateTilePipeline(&backend.TilePipelineDescriptor{
		Label:                          label,
		TileFunction:                   fn,
		ColorFormat:                    c.opts.colorFormat,
		TileWidth:                      c.opts.tileWidth,
		TileHeight:                     c.opts.tileHeight,
		ThreadgroupSizeMatchesTileSize: true,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("build %s pipeline: %w", label, err))
	}
	return p, nil
}
