// Package backend defines the device abstraction the OIT renderer runs on.
//
// A Device exposes a library of named programs, builds immutable render and
// tile pipelines, allocates buffers and textures, and owns a command queue.
// Frames are recorded into a CommandBuffer as one render pass with tile
// dispatches (clear, resolve) around ordinary draws (accumulate), then
// submitted as a unit.
//
// # Devices
//
// Two implementations are provided:
//
//   - "software": a CPU tile-shading device (backend/software). Tiles of a
//     pass execute in parallel, each with private image-block memory.
//   - "wgpu": a GPU device on top of gogpu/wgpu HAL (backend/wgpu). Tile
//     memory is emulated with a storage buffer and compute passes whose
//     workgroup equals the tile size.
//
// Implementations register themselves on import:
//
//	import _ "github.com/gogpu/oit/backend/software"
//
//	dev, err := backend.Open("") // best available
//
// # Presentation
//
// NewOffscreenSurface provides a small swapchain of color textures on any
// Device. Drawables are acquired with a deadline and presented through the
// command buffer once the frame's work has completed.
package backend
