package oit

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"
)

// Instance is a triangle list drawn with one draw call. The five streams
// are per vertex and must have equal lengths that are a multiple of 3.
//
// Colors are straight-alpha RGBA; alpha is the fragment's coverage in its
// pixel's layer stack. Each vertex is placed by T·Rz·Ry·Rx·S·position, built
// from its own translation, rotation (Euler XYZ, radians) and scale.
type Instance struct {
	Label        string
	Positions    []f32.Vec3
	Colors       []f32.Vec4
	Translations []f32.Vec3
	Rotations    []f32.Vec3
	Scales       []f32.Vec3
}

// SolidInstance builds an instance whose vertices share one color and one
// transform.
func SolidInstance(positions []f32.Vec3, color f32.Vec4, translation, rotation, scale f32.Vec3) Instance {
	n := len(positions)
	in := Instance{
		Positions:    positions,
		Colors:       make([]f32.Vec4, n),
		Translations: make([]f32.Vec3, n),
		Rotations:    make([]f32.Vec3, n),
		Scales:       make([]f32.Vec3, n),
	}
	for i := range n {
		in.Colors[i] = color
		in.Translations[i] = translation
		in.Rotations[i] = rotation
		in.Scales[i] = scale
	}
	return in
}

// VertexCount returns the number of vertices.
func (in *Instance) VertexCount() int { return len(in.Positions) }

// TriangleCount returns the number of triangles.
func (in *Instance) TriangleCount() int { return len(in.Positions) / 3 }

// Validate returns ErrStreamMismatch if the streams differ in length or do
// not form whole triangles.
func (in *Instance) Validate() error {
	n := len(in.Positions)
	lens := [StreamCount]int{n, len(in.Colors), len(in.Translations), len(in.Rotations), len(in.Scales)}
	for i, l := range lens {
		if l != n {
			return fmt.Errorf("%w: %q stream %d has %d vertices, positions have %d", ErrStreamMismatch, in.Label, i, l, n)
		}
	}
	if n%3 != 0 {
		return fmt.Errorf("%w: %q has %d vertices, not a triangle list", ErrStreamMismatch, in.Label, n)
	}
	return nil
}

// encodeStream returns stream i as tightly packed little-endian float32.
func (in *Instance) encodeStream(i int) []byte {
	switch i {
	case StreamPositions:
		return encodeVec3s(in.Positions)
	case StreamColors:
		b := make([]byte, 16*len(in.Colors))
		for j, v := range in.Colors {
			putFloats(b[16*j:], v[:]...)
		}
		return b
	case StreamTranslations:
		return encodeVec3s(in.Translations)
	case StreamRotations:
		return encodeVec3s(in.Rotations)
	case StreamScales:
		return encodeVec3s(in.Scales)
	}
	panic(fmt.Sprintf("oit: stream index %d out of range", i))
}

func encodeVec3s(vs []f32.Vec3) []byte {
	b := make([]byte, 12*len(vs))
	for j, v := range vs {
		putFloats(b[12*j:], v[:]...)
	}
	return b
}

func putFloats(dst []byte, vals ...float32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(dst[4*i:], math32.Float32bits(v))
	}
}
