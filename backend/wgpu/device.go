// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/internal/color"
	"github.com/gogpu/wgpu/hal"
)

func init() {
	backend.Register(backend.NameWGPU, func() (backend.Device, error) {
		return Open()
	})
}

// DefaultTimeout bounds how long Submit and ReadPixels wait for the GPU.
const DefaultTimeout = 5 * time.Second

// Option configures a Device.
type Option func(*options)

type options struct {
	limits      gputypes.Limits
	timeout     time.Duration
	memoryLimit int64
}

// WithLimits sets the limits the HAL device was opened with. Tile sizes and
// attachment sizes are checked against them. Defaults to
// gputypes.DefaultLimits.
func WithLimits(l gputypes.Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithTimeout bounds how long a submission may take before it fails with
// backend.ErrNoDrawable.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMemoryLimit caps the bytes held by live buffers and textures.
// Allocations beyond the limit fail with backend.ErrOutOfMemory.
// Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) { o.memoryLimit = bytes }
}

// Device is the OIT device on a HAL device and queue.
type Device struct {
	raw   hal.Device
	queue *queue
	info  gpucontext.AdapterInfo
	lib   *library

	limits      gputypes.Limits
	timeout     time.Duration
	memoryLimit int64
	allocated   atomic.Int64

	mu       sync.Mutex
	modules  map[[2]int]*shaderModule
	programs map[programKey]*program

	// release tears down what Open created. Nil for borrowed devices.
	release func()

	closeOnce sync.Once
	closed    atomic.Bool
}

var _ backend.Device = (*Device)(nil)

// New wraps an open HAL device. The caller keeps ownership of dev: Close
// releases the device's own objects but does not destroy dev.
func New(dev hal.OpenDevice, info gputypes.AdapterInfo, opts ...Option) *Device {
	o := options{limits: gputypes.DefaultLimits(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	d := &Device{
		raw:         dev.Device,
		info:        adapterInfo(info),
		lib:         newLibrary(),
		limits:      o.limits,
		timeout:     o.timeout,
		memoryLimit: o.memoryLimit,
		modules:     make(map[[2]int]*shaderModule),
		programs:    make(map[programKey]*program),
	}
	d.queue = &queue{dev: d, raw: dev.Queue}
	slogger().Debug("wgpu: device created",
		"adapter", d.info.Name,
		"type", d.info.Type,
		"maxInvocations", o.limits.MaxComputeInvocationsPerWorkgroup,
		"memoryLimit", o.memoryLimit)
	return d
}

// Open selects the best registered HAL backend and opens its preferred
// adapter with the adapter's own limits.
func Open(opts ...Option) (*Device, error) {
	b, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w: %w", backend.ErrBackendNotAvailable, err)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w: create instance: %w", backend.ErrBackendNotAvailable, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: %w: no adapters", backend.ErrBackendNotAvailable)
	}
	selected := preferredAdapter(adapters)

	limits := selected.Capabilities.Limits
	if limits.MaxComputeInvocationsPerWorkgroup == 0 {
		limits = gputypes.DefaultLimits()
	}
	open, err := selected.Adapter.Open(0, limits)
	if err != nil {
		instance.Destroy()
		return nil, halError("open adapter", err)
	}

	d := New(open, selected.Info, append([]Option{WithLimits(limits)}, opts...)...)
	d.release = func() {
		open.Device.Destroy()
		instance.Destroy()
	}
	slogger().Info("wgpu: adapter opened", "adapter", selected.Info.Name,
		"backend", selected.Info.Backend, "driver", selected.Info.Driver)
	return d, nil
}

// preferredAdapter picks a hardware GPU over software and CPU adapters.
func preferredAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		switch adapters[i].Info.DeviceType {
		case gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU:
			return &adapters[i]
		}
	}
	return &adapters[0]
}

// OpenWithProvider wraps the device and queue of a host application. The
// provider's device and queue must be HAL objects. The host keeps
// ownership of them.
func OpenWithProvider(p gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	if p == nil {
		return nil, errors.New("wgpu: nil device provider")
	}
	dev, ok := p.Device().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("wgpu: %w: provider device %T is not a HAL device", backend.ErrBackendNotAvailable, p.Device())
	}
	q, ok := p.Queue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("wgpu: %w: provider queue %T is not a HAL queue", backend.ErrBackendNotAvailable, p.Queue())
	}
	d := New(hal.OpenDevice{Device: dev, Queue: q}, gputypes.AdapterInfo{}, opts...)
	d.info = p.AdapterInfo()
	return d, nil
}

func adapterInfo(info gputypes.AdapterInfo) gpucontext.AdapterInfo {
	t := gpucontext.AdapterTypeUnknown
	switch info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		t = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		t = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		t = gpucontext.AdapterTypeSoftware
	}
	name := info.Name
	if name == "" {
		name = "wgpu adapter"
	}
	return gpucontext.AdapterInfo{Name: name, Type: t}
}

// Name implements backend.Device.
func (d *Device) Name() string { return backend.NameWGPU }

// Info implements backend.Device.
func (d *Device) Info() gpucontext.AdapterInfo { return d.info }

// Library implements backend.Device.
func (d *Device) Library() backend.Library { return d.lib }

// Queue implements backend.Device.
func (d *Device) Queue() backend.Queue { return d.queue }

// SetLogger sets the package logger. Pass nil to disable logging.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Allocated returns the bytes held by live buffers and textures.
func (d *Device) Allocated() int64 { return d.allocated.Load() }

// SupportsFormat implements backend.Device. Color attachments are the 8-bit
// RGBA and BGRA formats packed into storage buffers; depth attachments are
// Depth32Float with or without stencil.
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

// Close waits for the GPU, destroys the device's pipelines and scratch
// buffers, and releases the HAL device if Open created it.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		if werr := d.raw.WaitIdle(); werr != nil {
			err = halError("wait idle", werr)
		}
		d.queue.destroyScratch()

		d.mu.Lock()
		for k, p := range d.programs {
			p.destroy(d.raw)
			delete(d.programs, k)
		}
		for k, m := range d.modules {
			d.raw.DestroyShaderModule(m.module)
			delete(d.modules, k)
		}
		d.mu.Unlock()

		if d.release != nil {
			d.release()
		}
		slogger().Debug("wgpu: device closed", "allocated", d.allocated.Load())
	})
	return err
}
