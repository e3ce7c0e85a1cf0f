package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
)

// Surface provides drawables for presentation.
type Surface interface {
	// NextDrawable waits for a free image until ctx is done. A timeout is
	// reported as an error wrapping ErrNoDrawable.
	NextDrawable(ctx context.Context) (Drawable, error)

	// Resize recreates the images. Outstanding drawables stay valid until
	// they are presented or discarded.
	Resize(width, height int) error

	Size() (width, height int)
	Format() gputypes.TextureFormat
	Close()
}

// DefaultImageCount is the swapchain length of an OffscreenSurface.
const DefaultImageCount = 3

// SurfaceDescriptor configures an OffscreenSurface.
type SurfaceDescriptor struct {
	Label  string
	Width  int
	Height int
	Format gputypes.TextureFormat

	// ImageCount is the number of swapchain images (DefaultImageCount if 0,
	// at least 2).
	ImageCount int

	// OnPresent, if set, is called with each presented image. The texture
	// stays valid until the next present.
	OnPresent func(Texture)
}

// OffscreenSurface is a swapchain of device textures without a window.
//
// The most recently presented image is held as the front buffer and is not
// handed out again until another image replaces it.
type OffscreenSurface struct {
	dev  Device
	desc SurfaceDescriptor

	mu         sync.Mutex
	free       chan *offscreenImage
	swapped    chan struct{} // closed when free is replaced or the surface closes
	generation uint64
	front      *offscreenImage
	presented  uint64
	closed     bool
}

type offscreenImage struct {
	surface    *OffscreenSurface
	tex        Texture
	generation uint64
	mu         sync.Mutex
	busy       bool
}

// NewOffscreenSurface allocates the swapchain images on dev.
func NewOffscreenSurface(dev Device, desc SurfaceDescriptor) (*OffscreenSurface, error) {
	if desc.ImageCount == 0 {
		desc.ImageCount = DefaultImageCount
	}
	if desc.ImageCount < 2 {
		return nil, fmt.Errorf("backend: surface needs at least 2 images, got %d", desc.ImageCount)
	}
	if !dev.SupportsFormat(desc.Format, gputypes.TextureUsageRenderAttachment) {
		return nil, fmt.Errorf("%w: surface format %v", ErrUnsupportedFormat, desc.Format)
	}
	s := &OffscreenSurface{dev: dev, desc: desc}
	if err := s.allocate(desc.Width, desc.Height); err != nil {
		return nil, err
	}
	return s, nil
}

// allocate replaces the free list. Caller holds mu or owns s exclusively.
func (s *OffscreenSurface) allocate(width, height int) error {
	s.generation++
	free := make(chan *offscreenImage, s.desc.ImageCount)
	for i := range s.desc.ImageCount {
		tex, err := s.dev.CreateTexture(&TextureDescriptor{
			Label:  fmt.Sprintf("%s image %d", s.desc.Label, i),
			Width:  width,
			Height: height,
			Format: s.desc.Format,
			Usage:  gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		})
		if err != nil {
			close(free)
			for img := range free {
				img.tex.Release()
			}
			return fmt.Errorf("create surface image: %w", err)
		}
		free <- &offscreenImage{surface: s, tex: tex, generation: s.generation}
	}

	if s.free != nil {
		s.drainFree()
	}
	if s.swapped != nil {
		close(s.swapped)
	}
	s.free = free
	s.swapped = make(chan struct{})
	s.desc.Width, s.desc.Height = width, height
	return nil
}

func (s *OffscreenSurface) drainFree() {
	for {
		select {
		case img := <-s.free:
			img.tex.Release()
		default:
			return
		}
	}
}

// NextDrawable implements Surface. A caller waiting across a Resize is
// served from the new images.
func (s *OffscreenSurface) NextDrawable(ctx context.Context) (Drawable, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		free, swapped := s.free, s.swapped
		s.mu.Unlock()

		select {
		case img := <-free:
			if s.stale(img) {
				continue
			}
			img.mu.Lock()
			img.busy = true
			img.mu.Unlock()
			return img, nil
		case <-swapped:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNoDrawable, ctx.Err())
		}
	}
}

// stale releases img if it was taken from a free list that has since been
// replaced.
func (s *OffscreenSurface) stale(img *offscreenImage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && img.generation == s.generation {
		return false
	}
	img.tex.Release()
	return true
}

// Resize implements Surface.
func (s *OffscreenSurface) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if width == s.desc.Width && height == s.desc.Height {
		return nil
	}
	return s.allocate(width, height)
}

// Size implements Surface.
func (s *OffscreenSurface) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc.Width, s.desc.Height
}

// Format implements Surface.
func (s *OffscreenSurface) Format() gputypes.TextureFormat {
	return s.desc.Format
}

// Front returns the last presented image, or nil before the first present.
func (s *OffscreenSurface) Front() Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.front == nil {
		return nil
	}
	return s.front.tex
}

// Presented returns the number of presents so far.
func (s *OffscreenSurface) Presented() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// Close releases all images. Outstanding drawables are released when they
// are presented or discarded.
func (s *OffscreenSurface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.drainFree()
	close(s.swapped)
	if s.front != nil {
		s.front.tex.Release()
		s.front = nil
	}
}

// recycle returns img to the free list, or releases it if the swapchain has
// been recreated since it was allocated. Caller holds s.mu.
func (s *OffscreenSurface) recycle(img *offscreenImage) {
	if s.closed || img.generation != s.generation {
		img.tex.Release()
		return
	}
	s.free <- img
}

func (img *offscreenImage) Texture() Texture { return img.tex }

// take clears the busy flag and reports whether it was set, so each
// acquisition is presented or discarded at most once.
func (img *offscreenImage) take() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	if !img.busy {
		return false
	}
	img.busy = false
	return true
}

func (img *offscreenImage) Present() {
	if !img.take() {
		return
	}
	s := img.surface
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		img.tex.Release()
		return
	}
	prev := s.front
	s.front = img
	s.presented++
	if prev != nil {
		s.recycle(prev)
	}
	onPresent := s.desc.OnPresent
	s.mu.Unlock()

	if onPresent != nil {
		onPresent(img.tex)
	}
}

func (img *offscreenImage) Discard() {
	if !img.take() {
		return
	}
	s := img.surface
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recycle(img)
}
