// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
	"github.com/gogpu/wgpu/hal"
)

// shaderModule is oit.wgsl compiled for one tile size.
type shaderModule struct {
	module     hal.ShaderModule
	workgroups map[string][3]uint32
}

type programKey struct {
	name          string
	width, height int
}

// program is one entry point with its bind group layout and compute
// pipeline.
type program struct {
	fn       *function
	bgl      hal.BindGroupLayout
	layout   hal.PipelineLayout
	pipeline hal.ComputePipeline
}

func (p *program) destroy(dev hal.Device) {
	if p.pipeline != nil {
		dev.DestroyComputePipeline(p.pipeline)
	}
	if p.layout != nil {
		dev.DestroyPipelineLayout(p.layout)
	}
	if p.bgl != nil {
		dev.DestroyBindGroupLayout(p.bgl)
	}
}

// bindGroupLayoutEntries describes the slots an entry point uses. Slot 0
// is the per-dispatch parameter block, the vertex streams are read-only and
// everything else is read-write.
func bindGroupLayoutEntries(fn *function) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(fn.bindings))
	for _, b := range fn.bindings {
		kind := gputypes.BufferBindingTypeStorage
		switch {
		case b == bindParams:
			kind = gputypes.BufferBindingTypeUniform
		case b >= bindPositions && b <= bindFrame:
			kind = gputypes.BufferBindingTypeReadOnlyStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    b,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: kind},
		})
	}
	return entries
}

// module returns oit.wgsl compiled with a w x h tile workgroup. d.mu must
// be held.
func (d *Device) module(w, h int) (*shaderModule, error) {
	key := [2]int{w, h}
	if m, ok := d.modules[key]; ok {
		return m, nil
	}
	src := shaderSource(w, h)
	sizes, err := workgroupSizes(src)
	if err != nil {
		return nil, err
	}
	mod, err := d.raw.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  fmt.Sprintf("oit_%dx%d", w, h),
		Source: hal.ShaderSource{WGSL: src},
	})
	if err != nil {
		return nil, halError("create shader module", err)
	}
	m := &shaderModule{module: mod, workgroups: sizes}
	d.modules[key] = m
	return m, nil
}

// program returns the compute pipeline for fn. Tiled entry points are
// compiled for a w x h workgroup; the others ignore the tile size.
func (d *Device) program(fn *function, w, h int) (*program, error) {
	if !fn.tiled {
		w, h = pixelWorkgroup, pixelWorkgroup
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() {
		return nil, backend.ErrClosed
	}

	key := programKey{name: fn.name, width: w, height: h}
	if p, ok := d.programs[key]; ok {
		return p, nil
	}
	m, err := d.module(w, h)
	if err != nil {
		return nil, err
	}
	if fn.tiled {
		if err := checkWorkgroup(m.workgroups, fn.name, w, h); err != nil {
			return nil, err
		}
	}

	p := &program{fn: fn}
	label := fmt.Sprintf("oit_%s_%dx%d", fn.name, w, h)
	p.bgl, err = d.raw.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bgl",
		Entries: bindGroupLayoutEntries(fn),
	})
	if err != nil {
		return nil, halError("create bind group layout for "+fn.name, err)
	}
	p.layout, err = d.raw.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{p.bgl},
	})
	if err != nil {
		p.destroy(d.raw)
		return nil, halError("create pipeline layout for "+fn.name, err)
	}
	p.pipeline, err = d.raw.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: p.layout,
		Compute: hal.ComputeState{
			Module:     m.module,
			EntryPoint: fn.name,
		},
	})
	if err != nil {
		p.destroy(d.raw)
		return nil, halError("create compute pipeline for "+fn.name, err)
	}
	d.programs[key] = p

	slogger().Debug("wgpu: program compiled",
		"entry", fn.name,
		"workgroup", fmt.Sprintf("%dx%d", w, h),
		"bindings", len(fn.bindings))
	return p, nil
}
