// Package xform holds the 4x4 float32 matrix helpers shared by the camera
// and the software vertex program.
//
// Matrices are golang.org/x/image/math/f32.Mat4 values in row-major order
// (m[4*r+c]) and act on column vectors: p' = M·p.
package xform

import (
	"encoding/binary"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"
)

// Identity returns the identity matrix.
func Identity() f32.Mat4 {
	return f32.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns a·b.
func Mul(a, b f32.Mat4) f32.Mat4 {
	var m f32.Mat4
	for r := range 4 {
		for c := range 4 {
			m[4*r+c] = a[4*r]*b[c] + a[4*r+1]*b[4+c] + a[4*r+2]*b[8+c] + a[4*r+3]*b[12+c]
		}
	}
	return m
}

// MulVec4 returns m·v.
func MulVec4(m f32.Mat4, v f32.Vec4) f32.Vec4 {
	return f32.Vec4{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2] + m[3]*v[3],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2] + m[7]*v[3],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2] + m[11]*v[3],
		m[12]*v[0] + m[13]*v[1] + m[14]*v[2] + m[15]*v[3],
	}
}

// Translation returns the matrix translating by v.
func Translation(v f32.Vec3) f32.Mat4 {
	return f32.Mat4{
		1, 0, 0, v[0],
		0, 1, 0, v[1],
		0, 0, 1, v[2],
		0, 0, 0, 1,
	}
}

// Scaling returns the matrix scaling each axis by v.
func Scaling(v f32.Vec3) f32.Mat4 {
	return f32.Mat4{
		v[0], 0, 0, 0,
		0, v[1], 0, 0,
		0, 0, v[2], 0,
		0, 0, 0, 1,
	}
}

// RotationX rotates by angle radians about the x axis.
func RotationX(angle float32) f32.Mat4 {
	s, c := math32.Sincos(angle)
	return f32.Mat4{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	}
}

// RotationY rotates by angle radians about the y axis.
func RotationY(angle float32) f32.Mat4 {
	s, c := math32.Sincos(angle)
	return f32.Mat4{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// RotationZ rotates by angle radians about the z axis.
func RotationZ(angle float32) f32.Mat4 {
	s, c := math32.Sincos(angle)
	return f32.Mat4{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// RotationXYZ applies the Euler angles in x, y, z order: Rz·Ry·Rx.
func RotationXYZ(r f32.Vec3) f32.Mat4 {
	return Mul(RotationZ(r[2]), Mul(RotationY(r[1]), RotationX(r[0])))
}

// Model composes T·Rz·Ry·Rx·S.
func Model(translation, rotation, scale f32.Vec3) f32.Mat4 {
	return Mul(Translation(translation), Mul(RotationXYZ(rotation), Scaling(scale)))
}

// PerspectiveRH is a right-handed perspective projection mapping view depth
// [-near, -far] to [0, 1]. Arguments are not validated.
func PerspectiveRH(fovY, aspect, near, far float32) f32.Mat4 {
	f := 1 / math32.Tan(fovY/2)
	nf := 1 / (near - far)
	return f32.Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, far * nf, near * far * nf,
		0, 0, -1, 0,
	}
}

// MatrixSize is the encoded size of a Mat4.
const MatrixSize = 64

// PutColumnMajor encodes m into dst as 16 little-endian float32 values in
// column-major order, the layout of a GPU mat4x4<f32>.
func PutColumnMajor(dst []byte, m f32.Mat4) {
	_ = dst[MatrixSize-1]
	for c := range 4 {
		for r := range 4 {
			binary.LittleEndian.PutUint32(dst[4*(4*c+r):], math32.Float32bits(m[4*r+c]))
		}
	}
}

// ColumnMajor decodes a matrix written by PutColumnMajor.
func ColumnMajor(src []byte) f32.Mat4 {
	_ = src[MatrixSize-1]
	var m f32.Mat4
	for c := range 4 {
		for r := range 4 {
			m[4*r+c] = math32.Float32frombits(binary.LittleEndian.Uint32(src[4*(4*c+r):]))
		}
	}
	return m
}
