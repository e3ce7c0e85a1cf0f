package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool
// =============================================================================

func TestWorkerPool_Workers(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{4, 4},
		{1, 1},
		{0, runtime.GOMAXPROCS(0)},
		{-5, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		pool := NewWorkerPool(tt.in)
		if got := pool.Workers(); got != tt.want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d", tt.in, got, tt.want)
		}
		if !pool.IsRunning() {
			t.Errorf("NewWorkerPool(%d).IsRunning() = false", tt.in)
		}
		pool.Close()
	}
}

func TestWorkerPool_Dispatch_EveryIndexOnce(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		pool := NewWorkerPool(workers)

		const n = 500
		var hits [n]atomic.Int32
		pool.Dispatch(n, func(i int) { hits[i].Add(1) })

		for i := range hits {
			if got := hits[i].Load(); got != 1 {
				t.Errorf("workers=%d: index %d ran %d times, want 1", workers, i, got)
			}
		}
		pool.Close()
	}
}

func TestWorkerPool_Dispatch_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	called := false
	pool.Dispatch(0, func(int) { called = true })
	pool.Dispatch(-1, func(int) { called = true })
	if called {
		t.Error("Dispatch(<=0) called fn")
	}
}

func TestWorkerPool_Dispatch_UnevenWork(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	// One slow item must not serialize the rest behind it.
	var done atomic.Int64
	pool.Dispatch(64, func(i int) {
		if i == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		done.Add(1)
	})
	if done.Load() != 64 {
		t.Errorf("done = %d, want 64", done.Load())
	}
}

func TestWorkerPool_Dispatch_Nested(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var total atomic.Int64
	pool.Dispatch(4, func(int) {
		pool.Dispatch(4, func(int) { total.Add(1) })
	})
	if total.Load() != 16 {
		t.Errorf("total = %d, want 16", total.Load())
	}
}

func TestWorkerPool_Dispatch_Concurrent(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var wg sync.WaitGroup
	var total atomic.Int64
	for range 8 {
		wg.Go(func() {
			pool.Dispatch(100, func(int) { total.Add(1) })
		})
	}
	wg.Wait()
	if total.Load() != 800 {
		t.Errorf("total = %d, want 800", total.Load())
	}
}

func TestWorkerPool_DispatchAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	ran := 0
	pool.Dispatch(3, func(int) { ran++ })
	if ran != 3 {
		t.Errorf("ran = %d after Close, want 3 (inline execution)", ran)
	}
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("IsRunning() = true after Close")
	}
}

func BenchmarkWorkerPool_Dispatch(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	var sink atomic.Int64
	for b.Loop() {
		pool.Dispatch(128, func(i int) { sink.Add(int64(i)) })
	}
}
