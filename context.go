package oit

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
)

// Context owns a device with its program library and command queue. It is
// created once and passed explicitly to renderers.
type Context struct {
	dev   backend.Device
	lib   backend.Library
	queue backend.Queue
	opts  options

	ownsDevice bool
	closeOnce  sync.Once
}

// NewContext wraps dev. The caller keeps ownership of dev.
func NewContext(dev backend.Device, opts ...Option) (*Context, error) {
	if dev == nil {
		return nil, fmt.Errorf("oit: nil device")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.tileWidth <= 0 || o.tileHeight <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrTileSizeMismatch, o.tileWidth, o.tileHeight)
	}
	lib := dev.Library()
	if lib == nil {
		return nil, fmt.Errorf("%w: device %s has no library", ErrMissingEntryPoint, dev.Name())
	}
	trackLogger(dev)

	info := dev.Info()
	Logger().Info("oit: context created", "backend", dev.Name(), "adapter", info.Name, "type", info.Type)
	return &Context{dev: dev, lib: lib, queue: dev.Queue(), opts: o}, nil
}

// OpenContext opens the named backend (the best registered one if name is
// empty) and wraps it. Close releases the device.
func OpenContext(name string, opts ...Option) (*Context, error) {
	dev, err := backend.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	c, err := NewContext(dev, opts...)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	c.ownsDevice = true
	return c, nil
}

// Device returns the device.
func (c *Context) Device() backend.Device { return c.dev }

// Library returns the device's program library.
func (c *Context) Library() backend.Library { return c.lib }

// Queue returns the device's command queue.
func (c *Context) Queue() backend.Queue { return c.queue }

// ColorFormat returns the configured color attachment format.
func (c *Context) ColorFormat() gputypes.TextureFormat { return c.opts.colorFormat }

// DepthFormat returns the configured depth/stencil attachment format.
func (c *Context) DepthFormat() gputypes.TextureFormat { return c.opts.depthFormat }

// TileSize returns the configured tile dimensions.
func (c *Context) TileSize() (width, height int) { return c.opts.tileWidth, c.opts.tileHeight }

// NewSurface creates an offscreen swapchain in the context's color format.
func (c *Context) NewSurface(width, height int) (*backend.OffscreenSurface, error) {
	return c.NewSurfaceWith(backend.SurfaceDescriptor{Width: width, Height: height})
}

// NewSurfaceWith creates an offscreen swapchain from desc. An undefined
// format selects the context's color format.
func (c *Context) NewSurfaceWith(desc backend.SurfaceDescriptor) (*backend.OffscreenSurface, error) {
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = c.opts.colorFormat
	}
	if desc.Label == "" {
		desc.Label = "oit surface"
	}
	s, err := backend.NewOffscreenSurface(c.dev, desc)
	if err != nil {
		return nil, classify(err)
	}
	return s, nil
}

// Close releases the device if the context opened it.
func (c *Context) Close() error {
	var err error
	c.closeOnce.Do(func() {
		untrackLogger(c.dev)
		if c.ownsDevice {
			err = c.dev.Close()
		}
	})
	return err
}
