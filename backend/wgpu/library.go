// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	_ "embed"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/internal/layerstack"
)

//go:embed shaders/oit.wgsl
var oitShaderSource string

// entryLoadAttachments applies a pass's load ops. It is internal to the
// queue and not exposed through the library.
const entryLoadAttachments = "oitLoadAttachments"

// Bind group slots declared by oit.wgsl.
const (
	bindParams uint32 = iota
	bindPositions
	bindColors
	bindTranslations
	bindRotations
	bindScales
	bindFrame
	bindClip
	bindLayers
	bindAttachment
	bindDepth
)

// Fixed workgroup sizes of the non-tile entry points.
const (
	vertexWorkgroup = 64
	pixelWorkgroup  = 8
)

// vertexStrides are the vertex layout strides vertexTransform reads, by
// buffer index.
var vertexStrides = []uint64{12, 16, 12, 12, 12}

// frameUniformsSize is the projection and view matrices bound after the
// vertex streams.
const frameUniformsSize = 128

// function is an entry point of oit.wgsl.
type function struct {
	name  string
	stage backend.Stage

	// bindings are the bind group slots the entry point uses.
	bindings []uint32

	// tiled entry points run with a workgroup of exactly the tile size.
	tiled bool

	sampleLength int
}

func (f *function) Name() string         { return f.name }
func (f *function) Stage() backend.Stage { return f.stage }
func (f *function) String() string       { return fmt.Sprintf("%s (%s)", f.name, f.stage) }

func oitFunctions() []*function {
	return []*function{
		{
			name:  backend.FunctionVertexTransform,
			stage: backend.StageVertex,
			bindings: []uint32{bindParams, bindPositions, bindColors, bindTranslations,
				bindRotations, bindScales, bindFrame, bindClip},
		},
		{
			name:         backend.FunctionAccumulate,
			stage:        backend.StageFragment,
			bindings:     []uint32{bindParams, bindClip, bindLayers, bindDepth},
			sampleLength: layerstack.SampleLength,
		},
		{
			name:         backend.FunctionClear,
			stage:        backend.StageTile,
			bindings:     []uint32{bindParams, bindLayers},
			tiled:        true,
			sampleLength: layerstack.SampleLength,
		},
		{
			name:         backend.FunctionResolve,
			stage:        backend.StageTile,
			bindings:     []uint32{bindParams, bindLayers, bindAttachment},
			tiled:        true,
			sampleLength: layerstack.SampleLength,
		},
	}
}

// loadAttachments is the internal load-op program.
var loadAttachments = &function{
	name:     entryLoadAttachments,
	stage:    backend.StageTile,
	bindings: []uint32{bindParams, bindAttachment, bindDepth},
}

type library struct {
	funcs map[string]*function
}

func newLibrary() *library {
	l := &library{funcs: make(map[string]*function)}
	for _, f := range oitFunctions() {
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

// shaderSource returns oit.wgsl with the tile programs' workgroup set to
// w x h.
func shaderSource(w, h int) string {
	return strings.NewReplacer(
		"{{TILE_W}}", strconv.Itoa(w),
		"{{TILE_H}}", strconv.Itoa(h),
	).Replace(oitShaderSource)
}

// workgroupSizes parses src and returns the workgroup size of every compute
// entry point.
func workgroupSizes(src string) (map[string][3]uint32, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse oit.wgsl: %w", err)
	}
	module, err := naga.Lower(ast)
	if err != nil {
		return nil, fmt.Errorf("lower oit.wgsl: %w", err)
	}
	sizes := make(map[string][3]uint32, len(module.EntryPoints))
	for _, ep := range module.EntryPoints {
		sizes[ep.Name] = ep.Workgroup
	}
	return sizes, nil
}

// checkWorkgroup verifies the compiled entry point runs one invocation per
// tile pixel.
func checkWorkgroup(sizes map[string][3]uint32, name string, w, h int) error {
	got, ok := sizes[name]
	if !ok {
		return fmt.Errorf("%w: %q missing from oit.wgsl", backend.ErrFunctionNotFound, name)
	}
	if got != [3]uint32{uint32(w), uint32(h), 1} {
		return fmt.Errorf("%w: %q has workgroup %dx%dx%d, tile is %dx%d",
			backend.ErrTileSize, name, got[0], got[1], got[2], w, h)
	}
	return nil
}
