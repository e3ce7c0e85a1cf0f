package oit

import (
	"errors"
	"fmt"

	"github.com/gogpu/oit/backend"
)

// Construction errors. NewRenderer and BuildPipelines return them (wrapped);
// no renderer exists afterwards.
var (
	// ErrMissingEntryPoint is returned when the device library lacks one of
	// the OIT programs or provides it for the wrong stage.
	ErrMissingEntryPoint = errors.New("oit: missing program entry point")

	// ErrUnsupportedFormat is returned for a color or depth format the
	// device cannot render to.
	ErrUnsupportedFormat = errors.New("oit: unsupported pixel format")

	// ErrTileSizeMismatch is returned when the tile size is invalid or the
	// device cannot run a tile program at that size.
	ErrTileSizeMismatch = errors.New("oit: tile size mismatch")

	// ErrImageBlockMismatch is returned when the clear, accumulate and
	// resolve programs disagree on the per-pixel tile memory footprint.
	ErrImageBlockMismatch = errors.New("oit: image block sample length mismatch")
)

// Frame errors. The frame is skipped; see IsFrameRecoverable.
var (
	// ErrNoDrawable is returned when the surface has no free image before
	// the drawable timeout.
	ErrNoDrawable = errors.New("oit: no drawable available")

	// ErrBufferAllocation is returned when a per-frame buffer cannot be
	// allocated.
	ErrBufferAllocation = errors.New("oit: frame buffer allocation failed")
)

// Contract errors.
var (
	// ErrStreamMismatch is returned for an instance whose five streams
	// differ in length or do not form whole triangles.
	ErrStreamMismatch = errors.New("oit: instance stream mismatch")

	// ErrInvalidProjection is returned by Perspective for out-of-range
	// arguments.
	ErrInvalidProjection = errors.New("oit: invalid projection")

	// ErrClosed is returned by operations on a closed renderer or context.
	ErrClosed = errors.New("oit: closed")
)

// IsFrameRecoverable reports whether err only cost the current frame. The
// render loop logs it, counts a dropped frame and continues.
func IsFrameRecoverable(err error) bool {
	return errors.Is(err, ErrNoDrawable) || errors.Is(err, ErrBufferAllocation)
}

// backendErrors maps device errors onto the oit taxonomy.
var backendErrors = []struct {
	from, to error
}{
	{backend.ErrNoDrawable, ErrNoDrawable},
	{backend.ErrOutOfMemory, ErrBufferAllocation},
	{backend.ErrFunctionNotFound, ErrMissingEntryPoint},
	{backend.ErrWrongStage, ErrMissingEntryPoint},
	{backend.ErrUnsupportedFormat, ErrUnsupportedFormat},
	{backend.ErrTileSize, ErrTileSizeMismatch},
	{backend.ErrSampleLength, ErrImageBlockMismatch},
	{backend.ErrClosed, ErrClosed},
}

// classify wraps a device error with the matching oit sentinel, keeping the
// original in the chain. Errors that already carry one are returned as-is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, m := range backendErrors {
		if errors.Is(err, m.to) {
			return err
		}
		if errors.Is(err, m.from) {
			return fmt.Errorf("%w: %w", m.to, err)
		}
	}
	return err
}
