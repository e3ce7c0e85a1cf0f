package oit

import (
	"golang.org/x/image/math/f32"

	"github.com/gogpu/oit/internal/xform"
)

// FrameUniformsSize is the encoded size of FrameUniforms.
const FrameUniformsSize = 2 * xform.MatrixSize

// FrameUniforms are the per-frame camera matrices, bound at UniformsIndex
// for both the vertex and fragment stages.
type FrameUniforms struct {
	Projection f32.Mat4
	View       f32.Mat4
}

// Encode returns the 128-byte device layout: Projection then View, each a
// column-major little-endian mat4x4<f32>.
func (u FrameUniforms) Encode() []byte {
	b := make([]byte, FrameUniformsSize)
	u.Put(b)
	return b
}

// Put encodes u into the first FrameUniformsSize bytes of dst.
func (u FrameUniforms) Put(dst []byte) {
	xform.PutColumnMajor(dst[:xform.MatrixSize], u.Projection)
	xform.PutColumnMajor(dst[xform.MatrixSize:FrameUniformsSize], u.View)
}

// DecodeFrameUniforms is the inverse of Encode.
func DecodeFrameUniforms(b []byte) FrameUniforms {
	return FrameUniforms{
		Projection: xform.ColumnMajor(b[:xform.MatrixSize]),
		View:       xform.ColumnMajor(b[xform.MatrixSize:FrameUniformsSize]),
	}
}
