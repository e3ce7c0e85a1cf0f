package software

import (
	"fmt"
	"slices"

	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/internal/parallel"
	"github.com/gogpu/wgpu/hal/software/raster"
)

// bindings is one stage's buffer argument table. Each entry is the bound
// buffer's bytes starting at the bind offset.
type bindings [backend.MaxBufferBindings][]byte

type (
	vertexFunc   func(args *bindings, vertexID int, out *raster.ClipSpaceVertex)
	fragmentFunc func(args *bindings, frag *raster.Fragment, sample []byte)
	tileFunc     func(tc *tileContext)
)

// requirement is a buffer the program reads outside the vertex layout.
type requirement struct {
	index int
	size  int
}

// function is a library program. Exactly one of vertex, fragment and tile is
// set, matching stage.
type function struct {
	name  string
	stage backend.Stage

	// strides are the vertex layout strides a vertex program reads, by
	// buffer index.
	strides []uint64

	// varyings is the number of float32 attributes a vertex program writes
	// or a fragment program reads.
	varyings int

	// sampleLength is the image-block bytes per pixel, 0 if unused.
	sampleLength int

	requires []requirement

	vertex   vertexFunc
	fragment fragmentFunc
	tile     tileFunc
}

func (f *function) Name() string         { return f.name }
func (f *function) Stage() backend.Stage { return f.stage }
func (f *function) String() string       { return fmt.Sprintf("%s (%s)", f.name, f.stage) }

// tileContext is what a tile program sees: its tile's image block and the
// color attachment.
type tileContext struct {
	tile   *parallel.Tile
	target *texture
}

// texel returns the color attachment bytes of pixel (px, py).
func (tc *tileContext) texel(px, py int) []byte {
	o := (py*tc.target.width + px) * tc.target.texelSize
	return tc.target.pixels[o : o+tc.target.texelSize]
}

type library struct {
	funcs map[string]*function
}

func newLibrary() *library {
	l := &library{funcs: make(map[string]*function)}
	for _, f := range oitPrograms() {
		l.funcs[f.name] = f
	}
	return l
}

// Function implements backend.Library.
func (l *library) Function(name string) (backend.Function, error) {
	f, ok := l.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", backend.ErrFunctionNotFound, name)
	}
	return f, nil
}

// FunctionNames implements backend.Library.
func (l *library) FunctionNames() []string {
	names := make([]string, 0, len(l.funcs))
	for name := range l.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// resolve returns the library's program behind fn, checking its stage.
func (l *library) resolve(fn backend.Function, stage backend.Stage) (*function, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: no %s function", backend.ErrFunctionNotFound, stage)
	}
	f, ok := fn.(*function)
	if !ok || l.funcs[f.name] != f {
		return nil, fmt.Errorf("%w: %q is not from this device", backend.ErrFunctionNotFound, fn.Name())
	}
	if f.stage != stage {
		return nil, fmt.Errorf("%w: %q is a %s function, want %s", backend.ErrWrongStage, f.name, f.stage, stage)
	}
	return f, nil
}
