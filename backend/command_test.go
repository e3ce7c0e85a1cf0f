package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// RenderPassDescriptor
// =============================================================================

func TestRenderPassDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RenderPassDescriptor)
		want   error
	}{
		{"valid", func(*RenderPassDescriptor) {}, nil},
		{"no color", func(d *RenderPassDescriptor) { d.ColorTexture = nil }, ErrInvalidCommand},
		{"zero tile", func(d *RenderPassDescriptor) { d.TileWidth = 0 }, ErrTileSize},
		{"no sample length", func(d *RenderPassDescriptor) { d.ImageBlockSampleLength = 0 }, ErrSampleLength},
		{"color depth format", func(d *RenderPassDescriptor) { d.DepthTexture = colorTexture(64, 32) }, ErrUnsupportedFormat},
		{"depth size", func(d *RenderPassDescriptor) {
			d.DepthTexture = &fakeTexture{w: 10, h: 10, format: gputypes.TextureFormatDepth32Float}
		}, ErrInvalidCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := passDescriptor()
			tt.mutate(d)
			err := d.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

// =============================================================================
// Encoder
// =============================================================================

func streamLayouts() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{ArrayStride: 12, StepMode: gputypes.VertexStepModeVertex},
		{ArrayStride: 16, StepMode: gputypes.VertexStepModeVertex},
	}
}

func TestEncoder_RecordsFramePhases(t *testing.T) {
	cb := NewCommandBuffer("frame")
	enc, err := cb.BeginRenderPass(passDescriptor())
	require.NoError(t, err)

	tile := &fakeTilePipeline{format: gputypes.TextureFormatBGRA8UnormSrgb, w: 32, h: 16, sampleLength: 80}
	rp := &fakeRenderPipeline{format: gputypes.TextureFormatBGRA8UnormSrgb, layouts: streamLayouts(), sampleLength: 80}

	enc.SetTilePipeline(tile)
	enc.DispatchThreadsPerTile()
	enc.SetRenderPipeline(rp)
	enc.SetCullMode(gputypes.CullModeNone)
	enc.SetVertexBuffer(0, &fakeBuffer{size: 36}, 0)
	enc.SetVertexBuffer(1, &fakeBuffer{size: 48}, 0)
	enc.SetFragmentBuffer(5, &fakeBuffer{size: 128}, 0)
	enc.Draw(3, 0)
	enc.SetTilePipeline(tile)
	enc.DispatchThreadsPerTile()
	require.NoError(t, enc.End())

	require.NoError(t, cb.Commit())
	require.Len(t, cb.Passes(), 1)
	pass := cb.Passes()[0]
	assert.Equal(t, 1, pass.DrawCount())
	assert.Equal(t, CmdSetTilePipeline, pass.Commands[0].Kind)
	assert.Equal(t, CmdDispatchTile, pass.Commands[len(pass.Commands)-1].Kind)
}

func TestEncoder_SampleLengthMismatch(t *testing.T) {
	cb := NewCommandBuffer("frame")
	enc, err := cb.BeginRenderPass(passDescriptor())
	require.NoError(t, err)

	enc.SetTilePipeline(&fakeTilePipeline{format: gputypes.TextureFormatBGRA8UnormSrgb, w: 32, h: 16, sampleLength: 64})
	enc.DispatchThreadsPerTile()

	assert.ErrorIs(t, enc.End(), ErrSampleLength)
	assert.ErrorIs(t, cb.Commit(), ErrSampleLength)
	assert.Empty(t, cb.Passes())
}

func TestEncoder_TileSizeMismatch(t *testing.T) {
	cb := NewCommandBuffer("frame")
	enc, _ := cb.BeginRenderPass(passDescriptor())
	enc.SetTilePipeline(&fakeTilePipeline{format: gputypes.TextureFormatBGRA8UnormSrgb, w: 16, h: 16, sampleLength: 80})
	assert.ErrorIs(t, enc.End(), ErrTileSize)
}

func TestEncoder_DrawValidation(t *testing.T) {
	rp := &fakeRenderPipeline{format: gputypes.TextureFormatBGRA8UnormSrgb, layouts: streamLayouts()}

	tests := []struct {
		name   string
		record func(*RenderPassEncoder)
	}{
		{"no pipeline", func(e *RenderPassEncoder) { e.Draw(3, 0) }},
		{"missing stream", func(e *RenderPassEncoder) {
			e.SetRenderPipeline(rp)
			e.SetVertexBuffer(0, &fakeBuffer{size: 36}, 0)
			e.Draw(3, 0)
		}},
		{"short stream", func(e *RenderPassEncoder) {
			e.SetRenderPipeline(rp)
			e.SetVertexBuffer(0, &fakeBuffer{size: 36}, 0)
			e.SetVertexBuffer(1, &fakeBuffer{size: 32}, 0)
			e.Draw(3, 0)
		}},
		{"index out of range", func(e *RenderPassEncoder) { e.SetVertexBuffer(MaxBufferBindings, &fakeBuffer{size: 4}, 0) }},
		{"dispatch without tile pipeline", func(e *RenderPassEncoder) { e.DispatchThreadsPerTile() }},
		{"format mismatch", func(e *RenderPassEncoder) {
			e.SetRenderPipeline(&fakeRenderPipeline{format: gputypes.TextureFormatRGBA8Unorm})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCommandBuffer("frame")
			enc, err := cb.BeginRenderPass(passDescriptor())
			require.NoError(t, err)
			tt.record(enc)
			err = enc.End()
			if err == nil {
				t.Fatal("End() error = nil, want validation error")
			}
			if !errors.Is(err, ErrInvalidCommand) && !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("End() error = %v", err)
			}
		})
	}
}

func TestCommandBuffer_UnendedPass(t *testing.T) {
	cb := NewCommandBuffer("frame")
	_, err := cb.BeginRenderPass(passDescriptor())
	require.NoError(t, err)

	_, err = cb.BeginRenderPass(passDescriptor())
	assert.ErrorIs(t, err, ErrInvalidCommand)
	assert.ErrorIs(t, cb.Commit(), ErrInvalidCommand)
}

// =============================================================================
// Present / Complete
// =============================================================================

type countingDrawable struct {
	presented, discarded int
}

func (d *countingDrawable) Texture() Texture { return nil }
func (d *countingDrawable) Present()         { d.presented++ }
func (d *countingDrawable) Discard()         { d.discarded++ }

func TestCommandBuffer_PresentOnce(t *testing.T) {
	d := &countingDrawable{}
	cb := NewCommandBuffer("frame")
	cb.Present(d)

	var results []error
	cb.AddCompletedHandler(func(err error) { results = append(results, err) })

	require.NoError(t, cb.Commit())
	cb.Complete(nil)
	cb.Complete(nil)

	assert.Equal(t, 1, d.presented)
	assert.Equal(t, 0, d.discarded)
	assert.Equal(t, []error{nil}, results)
}

func TestCommandBuffer_FailedSubmissionDiscards(t *testing.T) {
	d := &countingDrawable{}
	cb := NewCommandBuffer("frame")
	cb.Present(d)
	cb.Complete(errors.New("device lost"))

	assert.Equal(t, 0, d.presented)
	assert.Equal(t, 1, d.discarded)
}

func TestCommandBuffer_DoublePresent(t *testing.T) {
	d := &countingDrawable{}
	cb := NewCommandBuffer("frame")
	cb.Present(d)
	cb.Present(d)

	assert.ErrorIs(t, cb.Commit(), ErrInvalidCommand)
	assert.Len(t, cb.Presents(), 1)
}
