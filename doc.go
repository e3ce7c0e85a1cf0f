// Package oit renders transparent triangles with tile-based, multi-layer
// order-independent transparency.
//
// # Overview
//
// Every pixel keeps up to four premultiplied layers, sorted by depth, in the
// tile memory of a tile-shading render pass. A frame is one command buffer
// with three phases:
//
//  1. Clear: a tile program resets every pixel's layers.
//  2. Accumulate: each instance is drawn; its fragments are inserted into the
//     layer stacks. When a fifth layer arrives, the two farthest are merged.
//  3. Resolve: a tile program composites the layers back to front over the
//     color attachment.
//
// The result does not depend on the submission order of up to four
// overlapping fragments per pixel.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/oit"
//	    _ "github.com/gogpu/oit/backend/software"
//	)
//
//	c, err := oit.OpenContext("")
//	r, err := oit.NewRenderer(c)
//	surface, err := c.NewSurface(420, 200)
//
//	tri := oit.SolidInstance(
//	    []f32.Vec3{{-1, -1, 0}, {1, -1, 0}, {0, 1, 0}},
//	    f32.Vec4{1, 0, 1, 0.5},
//	    f32.Vec3{}, f32.Vec3{}, f32.Vec3{100, 100, 100},
//	)
//	err = r.RenderFrame(ctx, surface, []oit.Instance{tri}, oit.DefaultCamera())
//
// # Devices
//
// Devices live under backend/. The software device runs tile programs on the
// CPU; the wgpu device emulates tile memory with a storage buffer and compute
// passes. Both are selected through the backend registry and can be passed to
// NewContext directly.
//
// # Errors
//
// Pipeline construction errors (ErrMissingEntryPoint, ErrUnsupportedFormat,
// ErrTileSizeMismatch, ErrImageBlockMismatch) are fatal. Frame errors for
// which IsFrameRecoverable reports true (ErrNoDrawable, ErrBufferAllocation)
// drop the frame; the caller simply renders the next one.
package oit
