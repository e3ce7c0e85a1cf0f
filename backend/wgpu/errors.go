// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/oit/backend"
	"github.com/gogpu/wgpu/hal"
)

// halError attaches the backend sentinel matching a HAL failure so callers
// can classify it. The HAL error stays in the chain.
func halError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, hal.ErrDeviceOutOfMemory):
		return fmt.Errorf("wgpu: %s: %w: %w", op, backend.ErrOutOfMemory, err)
	case errors.Is(err, hal.ErrTimeout), errors.Is(err, hal.ErrNotReady):
		return fmt.Errorf("wgpu: %s: %w: %w", op, backend.ErrNoDrawable, err)
	case errors.Is(err, hal.ErrDeviceLost):
		return fmt.Errorf("wgpu: %s: %w: %w", op, backend.ErrClosed, err)
	default:
		return fmt.Errorf("wgpu: %s: %w", op, err)
	}
}
