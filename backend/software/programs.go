package software

import (
	"encoding/binary"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/internal/layerstack"
	"github.com/gogpu/oit/internal/xform"
	"github.com/gogpu/wgpu/hal/software/raster"
)

// Buffer indices read by vertexTransform.
const (
	bufferPositions = iota
	bufferColors
	bufferTranslations
	bufferRotations
	bufferScales
	bufferFrameUniforms
)

// frameUniformsSize is Projection followed by View, column-major.
const frameUniformsSize = 2 * xform.MatrixSize

// colorVaryings is the straight-alpha RGBA passed from vertex to fragment.
const colorVaryings = 4

func oitPrograms() []*function {
	return []*function{
		{
			name:     backend.FunctionVertexTransform,
			stage:    backend.StageVertex,
			strides:  []uint64{12, 16, 12, 12, 12},
			varyings: colorVaryings,
			requires: []requirement{{index: bufferFrameUniforms, size: frameUniformsSize}},
			vertex:   vertexTransform,
		},
		{
			name:         backend.FunctionAccumulate,
			stage:        backend.StageFragment,
			varyings:     colorVaryings,
			sampleLength: layerstack.SampleLength,
			fragment:     accumulate,
		},
		{
			name:         backend.FunctionClear,
			stage:        backend.StageTile,
			sampleLength: layerstack.SampleLength,
			tile:         clearTile,
		},
		{
			name:         backend.FunctionResolve,
			stage:        backend.StageTile,
			sampleLength: layerstack.SampleLength,
			tile:         resolveTile,
		},
	}
}

func readFloat(b []byte, off int) float32 {
	return math32.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func readVec3(b []byte, off int) f32.Vec3 {
	return f32.Vec3{readFloat(b, off), readFloat(b, off+4), readFloat(b, off+8)}
}

// vertexTransform builds the model matrix T·Rz·Ry·Rx·S from the vertex's
// decomposed transform and outputs P·V·M·p with the vertex color.
func vertexTransform(args *bindings, vid int, out *raster.ClipSpaceVertex) {
	off3, off4 := vid*12, vid*16

	u := args[bufferFrameUniforms]
	proj := xform.ColumnMajor(u)
	view := xform.ColumnMajor(u[xform.MatrixSize:])

	model := xform.Model(
		readVec3(args[bufferTranslations], off3),
		readVec3(args[bufferRotations], off3),
		readVec3(args[bufferScales], off3),
	)
	p := readVec3(args[bufferPositions], off3)
	clip := xform.MulVec4(xform.Mul(proj, xform.Mul(view, model)), f32.Vec4{p[0], p[1], p[2], 1})
	out.Position = clip

	c := args[bufferColors]
	for i := range colorVaryings {
		out.Attributes[i] = readFloat(c, off4+4*i)
	}
}

// accumulate inserts the fragment into its pixel's layer stack.
func accumulate(_ *bindings, frag *raster.Fragment, sample []byte) {
	a := frag.Attributes
	var s layerstack.Stack
	s.Load(sample)
	s.Insert(layerstack.Fragment(a[0], a[1], a[2], a[3], frag.Depth))
	s.Store(sample)
}

// clearTile resets every layer of the tile to the empty sentinel.
func clearTile(tc *tileContext) {
	t := tc.tile
	for y := range t.Height {
		for x := range t.Width {
			layerstack.ClearSample(t.Sample(x, y))
		}
	}
}

// resolveTile composites each pixel's layers over the color attachment.
func resolveTile(tc *tileContext) {
	t := tc.tile
	codec := tc.target.codec
	var s layerstack.Stack
	for y := range t.Height {
		for x := range t.Width {
			s.Load(t.Sample(x, y))
			if s.Len() == 0 {
				continue
			}
			texel := tc.texel(t.OriginX+x, t.OriginY+y)
			codec.Store(texel, s.Resolve(codec.Load(texel)))
		}
	}
}
