package oit

import (
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/internal/parallel"
)

// Option configures a Context.
//
// Example:
//
//	c, err := oit.NewContext(dev,
//	    oit.WithClearColor(gputypes.Color{R: 0.1, G: 0.1, B: 0.1, A: 1}),
//	    oit.WithDrawableTimeout(50*time.Millisecond),
//	)
type Option func(*options)

type options struct {
	colorFormat     gputypes.TextureFormat
	depthFormat     gputypes.TextureFormat
	tileWidth       int
	tileHeight      int
	clearColor      gputypes.Color
	drawableTimeout time.Duration
	workers         int
}

// Defaults.
const (
	DefaultColorFormat     = gputypes.TextureFormatBGRA8UnormSrgb
	DefaultDepthFormat     = gputypes.TextureFormatDepth32FloatStencil8
	DefaultTileWidth       = parallel.DefaultTileWidth
	DefaultTileHeight      = parallel.DefaultTileHeight
	DefaultDrawableTimeout = time.Second
)

func defaultOptions() options {
	return options{
		colorFormat:     DefaultColorFormat,
		depthFormat:     DefaultDepthFormat,
		tileWidth:       DefaultTileWidth,
		tileHeight:      DefaultTileHeight,
		drawableTimeout: DefaultDrawableTimeout,
	}
}

// WithFormats sets the color and depth/stencil attachment formats.
func WithFormats(color, depth gputypes.TextureFormat) Option {
	return func(o *options) {
		o.colorFormat = color
		o.depthFormat = depth
	}
}

// WithTileSize sets the tile dimensions in pixels (32x16 by default).
func WithTileSize(width, height int) Option {
	return func(o *options) {
		o.tileWidth = width
		o.tileHeight = height
	}
}

// WithClearColor sets the premultiplied color the attachment is cleared to
// before resolve. The default is transparent black.
func WithClearColor(c gputypes.Color) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithDrawableTimeout bounds the wait for a free drawable. Frames that time
// out fail with ErrNoDrawable.
func WithDrawableTimeout(d time.Duration) Option {
	return func(o *options) {
		o.drawableTimeout = d
	}
}

// WithWorkers sets the number of goroutines encoding instance streams each
// frame. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}
