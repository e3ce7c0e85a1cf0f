package backend

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"
)

// Backend name constants.
const (
	// NameWGPU is the GPU device on gogpu/wgpu HAL.
	NameWGPU = "wgpu"
	// NameSoftware is the CPU tile-shading device.
	NameSoftware = "software"
)

// Factory opens a device.
type Factory func() (Device, error)

// registry holds registered device factories.
// GPU first, software as fallback.
var registry = gpucontext.NewRegistry[Factory](
	gpucontext.WithPriority(NameWGPU, NameSoftware),
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in backend packages.
// A factory registered under an existing name replaces it.
func Register(name string, f Factory) {
	registry.Register(name, func() Factory { return f })
}

// Unregister removes a factory. This is useful for testing.
func Unregister(name string) {
	registry.Unregister(name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	names := registry.Available()
	slices.Sort(names)
	return names
}

// IsRegistered reports whether a backend with the given name is registered.
func IsRegistered(name string) bool {
	return registry.Has(name)
}

// Open opens the named backend. An empty name selects the best registered
// backend; if it fails to open, the remaining backends are tried in priority
// order before giving up.
func Open(name string) (Device, error) {
	if name != "" {
		f := registry.Get(name)
		if f == nil {
			return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
		}
		return f()
	}

	best := registry.BestName()
	if best == "" {
		return nil, ErrBackendNotAvailable
	}
	dev, err := registry.Get(best)()
	if err == nil {
		slogger().Info("backend: device opened", "backend", best, "adapter", dev.Info().Name)
		return dev, nil
	}
	slogger().Warn("backend: preferred device unavailable", "backend", best, "err", err)

	for _, fallback := range []string{NameWGPU, NameSoftware} {
		if fallback == best || !registry.Has(fallback) {
			continue
		}
		if d, ferr := registry.Get(fallback)(); ferr == nil {
			slogger().Info("backend: device opened", "backend", fallback, "adapter", d.Info().Name)
			return d, nil
		}
	}
	return nil, fmt.Errorf("open %s: %w", best, err)
}
