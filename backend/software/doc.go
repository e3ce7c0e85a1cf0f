// Package software implements the OIT device on the CPU.
//
// The device emulates a tile-shading GPU: render passes are split into tiles
// (32x16 by default) that each own an image block, and every tile replays the
// pass's commands in recorded order on a work-stealing worker pool. Vertex
// processing runs once per draw on the submitting goroutine; triangles are
// clipped, binned to the tiles they touch and rasterized per tile with
// github.com/gogpu/wgpu/hal/software/raster.
//
// Programs are Go functions registered in the device library under the OIT
// entry-point names (backend.FunctionVertexTransform and friends).
//
// Importing the package registers the device as backend.NameSoftware:
//
//	import _ "github.com/gogpu/oit/backend/software"
package software
