package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs indexed work on a fixed set of goroutines.
//
// A Dispatch hands the same job to every idle worker; workers then claim
// indices one at a time from a shared cursor until the job is exhausted, so a
// tile that carries more geometry than its neighbours never holds up the
// others. The dispatching goroutine claims indices too.
//
// WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	jobs    chan *job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type job struct {
	n    int
	fn   func(int)
	next atomic.Int64
	done sync.WaitGroup
}

// run claims indices until none are left.
func (j *job) run() {
	for {
		i := int(j.next.Add(1) - 1)
		if i >= j.n {
			return
		}
		j.fn(i)
		j.done.Done()
	}
}

// NewWorkerPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &WorkerPool{
		workers: workers,
		jobs:    make(chan *job, workers),
	}
	p.wg.Add(workers)
	for range workers {
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				j.run()
			}
		}()
	}
	return p
}

// Dispatch calls fn(i) for every i in [0, n) and returns when all calls have
// finished. On a closed pool the calls run on the calling goroutine.
func (p *WorkerPool) Dispatch(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	j := &job{n: n, fn: fn}
	j.done.Add(n)

	p.mu.RLock()
	if !p.closed {
	wake:
		for range min(p.workers, n-1) {
			select {
			case p.jobs <- j:
			default:
				// Every worker is busy; the caller and whoever frees up first
				// share the job.
				break wake
			}
		}
	}
	p.mu.RUnlock()

	j.run()
	j.done.Wait()
}

// Close stops the workers. Dispatches already in flight complete.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still hands work to its workers.
func (p *WorkerPool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}
