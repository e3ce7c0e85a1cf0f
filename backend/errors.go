package backend

import "errors"

// Common backend errors. Device implementations wrap these with context.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrFunctionNotFound is returned when a library has no program of the given name.
	ErrFunctionNotFound = errors.New("backend: function not found")

	// ErrWrongStage is returned when a program is used in a stage it was not
	// compiled for (e.g. a tile program as a fragment function).
	ErrWrongStage = errors.New("backend: function used in the wrong stage")

	// ErrUnsupportedFormat is returned for pixel formats the device cannot render to.
	ErrUnsupportedFormat = errors.New("backend: unsupported format")

	// ErrTileSize is returned when a tile pipeline's threadgroup does not match
	// the tile size, or a pass uses a tile size the device cannot dispatch.
	ErrTileSize = errors.New("backend: tile size mismatch")

	// ErrSampleLength is returned when a pipeline's image-block sample length
	// disagrees with the render pass configuration.
	ErrSampleLength = errors.New("backend: image block sample length mismatch")

	// ErrNoDrawable is returned when no drawable became available in time.
	ErrNoDrawable = errors.New("backend: no drawable available")

	// ErrOutOfMemory is returned when a buffer or texture cannot be allocated.
	ErrOutOfMemory = errors.New("backend: out of memory")

	// ErrInvalidCommand is returned from RenderPassEncoder.End or Queue.Submit
	// when the recorded commands are inconsistent (draw without pipeline,
	// missing binding, double present).
	ErrInvalidCommand = errors.New("backend: invalid command")

	// ErrClosed is returned by operations on a closed device or surface.
	ErrClosed = errors.New("backend: closed")
)
