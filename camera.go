package oit

import (
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/oit/internal/xform"
)

// Matrices are f32.Mat4 in row-major order (m[4*row+col]) acting on column
// vectors. FrameUniforms encodes them column-major for the device.

// Perspective returns a right-handed projection with depth range [0, 1]:
// view depth -near maps to 0 and -far to 1.
//
// It returns ErrInvalidProjection for non-finite input, near <= 0,
// far <= near, aspect <= 0 or fovY outside (0, π).
func Perspective(fovY, aspect, near, far float32) (f32.Mat4, error) {
	for _, v := range [...]float32{fovY, aspect, near, far} {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return f32.Mat4{}, fmt.Errorf("%w: non-finite parameter (fovY %v, aspect %v, near %v, far %v)",
				ErrInvalidProjection, fovY, aspect, near, far)
		}
	}
	switch {
	case !(fovY > 0 && fovY < math32.Pi):
		return f32.Mat4{}, fmt.Errorf("%w: fovY %v outside (0, π)", ErrInvalidProjection, fovY)
	case !(aspect > 0):
		return f32.Mat4{}, fmt.Errorf("%w: aspect %v", ErrInvalidProjection, aspect)
	case !(near > 0):
		return f32.Mat4{}, fmt.Errorf("%w: near %v", ErrInvalidProjection, near)
	case !(far > near):
		return f32.Mat4{}, fmt.Errorf("%w: far %v not beyond near %v", ErrInvalidProjection, far, near)
	}
	return xform.PerspectiveRH(fovY, aspect, near, far), nil
}

// Translation returns the matrix translating by v.
func Translation(v f32.Vec3) f32.Mat4 { return xform.Translation(v) }

// Scaling returns the matrix scaling each axis by v.
func Scaling(v f32.Vec3) f32.Mat4 { return xform.Scaling(v) }

// RotationXYZ returns the rotation by Euler angles r (radians), applied
// about x, then y, then z.
func RotationXYZ(r f32.Vec3) f32.Mat4 { return xform.RotationXYZ(r) }

// Mul returns a·b, which applies b first.
func Mul(a, b f32.Mat4) f32.Mat4 { return xform.Mul(a, b) }

// Identity returns the identity matrix.
func Identity() f32.Mat4 { return xform.Identity() }

// Transform returns m·(v, 1) divided by w.
func Transform(m f32.Mat4, v f32.Vec3) f32.Vec3 {
	p := xform.MulVec4(m, f32.Vec4{v[0], v[1], v[2], 1})
	if p[3] == 0 {
		return f32.Vec3{p[0], p[1], p[2]}
	}
	return f32.Vec3{p[0] / p[3], p[1] / p[3], p[2] / p[3]}
}

// Default camera parameters.
const (
	DefaultFovDegrees = 65
	DefaultAspect     = 2.1
	DefaultNear       = 1
	DefaultFar        = 5000
	DefaultDistance   = 1000
)

// Camera is a perspective camera looking down -z from Position. Yaw orbits
// the scene about the y axis through the origin.
type Camera struct {
	FovY     float32 // radians
	Aspect   float32
	Near     float32
	Far      float32
	Position f32.Vec3
	Yaw      float32 // radians
}

// DefaultCamera returns a 65° camera with aspect 2.1 and depth range
// [1, 5000], placed at (0, 0, 1000).
func DefaultCamera() Camera {
	return Camera{
		FovY:     DefaultFovDegrees * math32.Pi / 180,
		Aspect:   DefaultAspect,
		Near:     DefaultNear,
		Far:      DefaultFar,
		Position: f32.Vec3{0, 0, DefaultDistance},
	}
}

// View returns Translation(-Position)·RotationY(-Yaw).
func (c Camera) View() f32.Mat4 {
	v := Translation(f32.Vec3{-c.Position[0], -c.Position[1], -c.Position[2]})
	if c.Yaw != 0 {
		v = Mul(v, xform.RotationY(-c.Yaw))
	}
	return v
}

// Projection returns the camera's perspective matrix.
func (c Camera) Projection() (f32.Mat4, error) {
	return Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// Uniforms returns the frame uniforms for the camera.
func (c Camera) Uniforms() (FrameUniforms, error) {
	p, err := c.Projection()
	if err != nil {
		return FrameUniforms{}, err
	}
	return FrameUniforms{Projection: p, View: c.View()}, nil
}

// WithAspectOf returns a copy with the aspect ratio of a width x height
// viewport.
func (c Camera) WithAspectOf(width, height int) Camera {
	if width > 0 && height > 0 {
		c.Aspect = float32(width) / float32(height)
	}
	return c
}
