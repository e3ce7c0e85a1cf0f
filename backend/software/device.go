package software

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/internal/color"
	"github.com/gogpu/oit/internal/parallel"
)

func init() {
	backend.Register(backend.NameSoftware, func() (backend.Device, error) {
		return New(), nil
	})
}

// Option configures a Device.
type Option func(*options)

type options struct {
	workers     int
	memoryLimit int64
}

// WithWorkers sets the number of tile workers. Zero or negative uses
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMemoryLimit caps the bytes held by live buffers and textures.
// Allocations beyond the limit fail with backend.ErrOutOfMemory.
// Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) { o.memoryLimit = bytes }
}

// Device is the CPU tile-shading device.
type Device struct {
	lib   *library
	queue *queue
	pool  *parallel.WorkerPool
	exec  *parallel.TileExecutor

	memoryLimit int64
	allocated   atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
}

var _ backend.Device = (*Device)(nil)

// New creates a software device.
func New(opts ...Option) *Device {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	pool := parallel.NewWorkerPool(o.workers)
	d := &Device{
		lib:         newLibrary(),
		pool:        pool,
		exec:        parallel.NewTileExecutor(pool),
		memoryLimit: o.memoryLimit,
	}
	d.queue = &queue{dev: d}
	slogger().Debug("software: device created", "workers", d.exec.Workers(), "memoryLimit", o.memoryLimit)
	return d
}

// Name implements backend.Device.
func (d *Device) Name() string { return backend.NameSoftware }

// Info implements backend.Device.
func (d *Device) Info() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{
		Name: fmt.Sprintf("oit software (%s/%s, %d workers)", runtime.GOOS, runtime.GOARCH, d.exec.Workers()),
		Type: gpucontext.AdapterTypeSoftware,
	}
}

// Library implements backend.Device.
func (d *Device) Library() backend.Library { return d.lib }

// Queue implements backend.Device.
func (d *Device) Queue() backend.Queue { return d.queue }

// SetLogger sets the package logger. Pass nil to disable logging.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Allocated returns the bytes held by live buffers and textures.
func (d *Device) Allocated() int64 { return d.allocated.Load() }

// SupportsFormat implements backend.Device. Color formats are the 8-bit RGBA
// and BGRA formats; depth formats are Depth32Float with or without stencil.
func (d *Device) SupportsFormat(f gputypes.TextureFormat, _ gputypes.TextureUsage) bool {
	if isDepthFormat(f) {
		return true
	}
	_, err := color.CodecFor(f)
	return err == nil
}

func isDepthFormat(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth32Float || f == gputypes.TextureFormatDepth32FloatStencil8
}

// reserve accounts for n more bytes, failing past the memory limit.
func (d *Device) reserve(n int64, label string) error {
	if d.closed.Load() {
		return backend.ErrClosed
	}
	total := d.allocated.Add(n)
	if d.memoryLimit > 0 && total > d.memoryLimit {
		d.allocated.Add(-n)
		return fmt.Errorf("%w: %q needs %d bytes, %d of %d in use", backend.ErrOutOfMemory,
			label, n, total-n, d.memoryLimit)
	}
	return nil
}

func (d *Device) unreserve(n int64) {
	d.allocated.Add(-n)
}

// Close stops the tile workers. Objects created from the device must not be
// used afterwards.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.exec.Close()
		d.pool.Close()
	})
	return nil
}
