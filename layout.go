package oit

import "github.com/gogpu/gputypes"

// Vertex stream indices. The frame uniforms follow at UniformsIndex.
const (
	StreamPositions = iota
	StreamColors
	StreamTranslations
	StreamRotations
	StreamScales

	// StreamCount is the number of per-vertex streams of an Instance.
	StreamCount
)

// UniformsIndex is the buffer index of FrameUniforms in both stages.
const UniformsIndex = 5

var streamFormats = [StreamCount]gputypes.VertexFormat{
	StreamPositions:    gputypes.VertexFormatFloat32x3,
	StreamColors:       gputypes.VertexFormatFloat32x4,
	StreamTranslations: gputypes.VertexFormatFloat32x3,
	StreamRotations:    gputypes.VertexFormatFloat32x3,
	StreamScales:       gputypes.VertexFormatFloat32x3,
}

// StreamStride returns the byte stride of stream i: 16 for colors, 12 for
// the others.
func StreamStride(i int) uint64 {
	return streamFormats[i].Size()
}

// VertexLayout returns the fixed layout of the five per-vertex streams, one
// buffer per stream with the attribute at shader location i.
func VertexLayout() []gputypes.VertexBufferLayout {
	layouts := make([]gputypes.VertexBufferLayout, StreamCount)
	for i, f := range streamFormats {
		layouts[i] = gputypes.VertexBufferLayout{
			ArrayStride: f.Size(),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{{
				Format:         f,
				Offset:         0,
				ShaderLocation: uint32(i),
			}},
		}
	}
	return layouts
}
