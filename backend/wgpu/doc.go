// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wgpu implements the OIT device on the gogpu/wgpu HAL.
//
// WebGPU has no tile memory and no tile-dispatch stage, so the device
// emulates both with compute:
//
//   - The image block is a storage buffer holding SampleLength bytes per
//     pixel for the whole attachment.
//   - Tile programs (OITClear_4Layer, OITResolve_4Layer) are compute entry
//     points whose workgroup is exactly the tile size; a dispatch covers
//     the attachment with one workgroup per tile.
//   - vertexTransform runs as a compute pass writing clip-space positions
//     and colors for the draw.
//   - OITFragmentFunction_4Layer runs one invocation per pixel that walks
//     the draw's triangles in order, depth tests them and inserts the
//     covered fragments into the pixel's layer stack.
//
// Color attachments are storage buffers of packed 8-bit texels in the
// attachment format; depth attachments hold one float32 per pixel.
// Every command buffer is recorded into a single HAL encoder and submitted
// once. Submit waits for the submission index to complete before
// presenting.
//
// The programs live in shaders/oit.wgsl. The tile size is substituted into
// the workgroup attribute and the result is checked with gogpu/naga before
// the pipeline is created.
//
// Importing the package registers the device as backend.NameWGPU. Devices
// can also wrap an existing HAL device (New) or a host application's
// gpucontext.DeviceProvider (OpenWithProvider).
package wgpu
