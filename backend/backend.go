package backend

import (
	"context"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Program names every OIT library provides.
const (
	// FunctionVertexTransform composes the per-vertex model transform from the
	// decomposed translation, rotation and scale streams.
	FunctionVertexTransform = "vertexTransform"
	// FunctionAccumulate inserts fragments into the per-pixel layer stack.
	FunctionAccumulate = "OITFragmentFunction_4Layer"
	// FunctionClear resets every layer of a tile to the empty sentinel.
	FunctionClear = "OITClear_4Layer"
	// FunctionResolve composites the stored layers onto the color attachment.
	FunctionResolve = "OITResolve_4Layer"
)

// MaxBufferBindings is the number of buffer argument slots per stage.
const MaxBufferBindings = 31

// Stage identifies the pipeline stage a program was compiled for.
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageTile
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageTile:
		return "tile"
	default:
		return "unknown"
	}
}

// Function is a named program from a Library.
type Function interface {
	Name() string
	Stage() Stage
}

// Library resolves programs by name.
type Library interface {
	// Function returns the named program, or an error wrapping
	// ErrFunctionNotFound.
	Function(name string) (Function, error)

	// FunctionNames lists the available programs.
	FunctionNames() []string
}

// Device creates pipelines and resources and owns the command queue.
type Device interface {
	// Name returns the backend name ("software", "wgpu").
	Name() string

	// Info describes the adapter the device runs on.
	Info() gpucontext.AdapterInfo

	// Library returns the device's program library.
	Library() Library

	// SupportsFormat reports whether textures of format f can be created
	// with the given usage.
	SupportsFormat(f gputypes.TextureFormat, usage gputypes.TextureUsage) bool

	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateTilePipeline(desc *TilePipelineDescriptor) (TilePipeline, error)
	CreateDepthStencilState(desc *DepthStencilDescriptor) (DepthStencilState, error)

	// CreateBuffer allocates a host-visible, device-readable buffer and
	// copies contents into it. Allocation failure wraps ErrOutOfMemory.
	CreateBuffer(desc *BufferDescriptor, contents []byte) (Buffer, error)

	CreateTexture(desc *TextureDescriptor) (Texture, error)

	Queue() Queue

	// Close releases the device. Objects created from it become invalid.
	Close() error
}

// Queue records and submits command buffers.
type Queue interface {
	// CommandBuffer starts a new recording.
	CommandBuffer(label string) *CommandBuffer

	// Submit executes cb and waits for completion, then presents the
	// drawables it scheduled. ctx is only honoured before execution starts.
	Submit(ctx context.Context, cb *CommandBuffer) error
}

// RenderPipelineDescriptor describes the accumulate pipeline: a vertex and a
// fragment program plus the fixed vertex layout.
type RenderPipelineDescriptor struct {
	Label              string
	VertexFunction     Function
	FragmentFunction   Function
	VertexBuffers      []gputypes.VertexBufferLayout
	ColorFormat        gputypes.TextureFormat
	DepthStencilFormat gputypes.TextureFormat

	// Blend must be nil: image-block fragment programs do their own
	// compositing in tile memory.
	Blend *gputypes.BlendState
}

// RenderPipeline is an immutable vertex+fragment pipeline.
type RenderPipeline interface {
	Label() string
	ColorFormat() gputypes.TextureFormat
	DepthStencilFormat() gputypes.TextureFormat
	VertexBuffers() []gputypes.VertexBufferLayout

	// ImageBlockSampleLength is the per-pixel tile memory the fragment
	// program reads and writes, or 0 if it uses none.
	ImageBlockSampleLength() int
}

// TilePipelineDescriptor describes a tile-dispatch pipeline.
type TilePipelineDescriptor struct {
	Label        string
	TileFunction Function
	ColorFormat  gputypes.TextureFormat

	// TileWidth and TileHeight are the tile size the pipeline is dispatched with.
	TileWidth, TileHeight int

	// ThreadgroupSizeMatchesTileSize requests one thread per tile pixel.
	// Devices reject pipelines that cannot honour it.
	ThreadgroupSizeMatchesTileSize bool
}

// TilePipeline is an immutable tile program pipeline.
type TilePipeline interface {
	Label() string
	ColorFormat() gputypes.TextureFormat
	TileSize() (w, h int)
	ImageBlockSampleLength() int
}

// DepthStencilDescriptor describes depth testing.
type DepthStencilDescriptor struct {
	Label             string
	DepthCompare      gputypes.CompareFunction
	DepthWriteEnabled bool
}

// DepthStencilState is an immutable depth test configuration.
type DepthStencilState interface {
	Label() string
	DepthCompare() gputypes.CompareFunction
	DepthWriteEnabled() bool
}

// BufferDescriptor describes a buffer. A zero Size means len(contents).
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// Buffer is a host-visible allocation.
type Buffer interface {
	Label() string
	Size() uint64
	Release()
}

// TextureDescriptor describes a 2D texture.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
}

// Texture is a 2D attachment.
type Texture interface {
	Label() string
	Width() int
	Height() int
	Format() gputypes.TextureFormat

	// ReadPixels returns the texels of a color texture, tightly packed rows
	// of 4-byte texels in the texture's format.
	ReadPixels(ctx context.Context) ([]byte, error)

	Release()
}
