//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

// Vulkan registers itself with hal so Open finds it.
import _ "github.com/gogpu/wgpu/hal/vulkan"
