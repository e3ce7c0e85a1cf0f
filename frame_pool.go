package oit

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/internal/parallel"
)

// framePool allocates fresh device buffers every frame so a frame in flight
// never sees the next frame's data. Stream encoding runs on the worker pool.
type framePool struct {
	dev     backend.Device
	workers *parallel.WorkerPool
}

func newFramePool(dev backend.Device, workers int) *framePool {
	return &framePool{dev: dev, workers: parallel.NewWorkerPool(workers)}
}

func (p *framePool) close() {
	p.workers.Close()
}

// frameResources are one frame's buffers.
type frameResources struct {
	uniforms backend.Buffer
	streams  [][StreamCount]backend.Buffer
	bytes    uint64
	all      []backend.Buffer
}

// release frees every buffer. Safe to call more than once.
func (r *frameResources) release() {
	for _, b := range r.all {
		b.Release()
	}
	r.all = nil
}

// allocate uploads the uniforms and every instance's streams. On failure the
// buffers allocated so far are released and the error wraps
// ErrBufferAllocation.
func (p *framePool) allocate(u FrameUniforms, instances []Instance) (*frameResources, error) {
	encoded := make([][StreamCount][]byte, len(instances))
	p.workers.Dispatch(len(instances), func(i int) {
		for s := range StreamCount {
			encoded[i][s] = instances[i].encodeStream(s)
		}
	})

	res := &frameResources{streams: make([][StreamCount]backend.Buffer, len(instances))}
	create := func(label string, usage gputypes.BufferUsage, data []byte) (backend.Buffer, error) {
		b, err := p.dev.CreateBuffer(&backend.BufferDescriptor{Label: label, Usage: usage}, data)
		if err != nil {
			return nil, err
		}
		res.all = append(res.all, b)
		res.bytes += b.Size()
		return b, nil
	}

	var err error
	res.uniforms, err = create("frame uniforms", gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst, u.Encode())
	if err != nil {
		res.release()
		return nil, fmt.Errorf("%w: uniforms: %w", ErrBufferAllocation, err)
	}
	for i := range instances {
		if instances[i].VertexCount() == 0 {
			continue
		}
		for s := range StreamCount {
			label := fmt.Sprintf("instance %d stream %d", i, s)
			res.streams[i][s], err = create(label, gputypes.BufferUsageVertex|gputypes.BufferUsageStorage, encoded[i][s])
			if err != nil {
				res.release()
				return nil, fmt.Errorf("%w: %s: %w", ErrBufferAllocation, label, err)
			}
		}
	}

	Logger().Debug("oit: frame buffers allocated", "buffers", len(res.all), "bytes", res.bytes)
	return res, nil
}
