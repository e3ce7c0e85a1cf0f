// Package parallel splits attachments into tiles with private image-block
// memory and runs per-tile programs on a shared worker pool.
package parallel

import (
	"context"
	"sync"
)

// TileExecutor runs per-tile programs over a TileGrid on a WorkerPool.
//
// Every tile is processed by exactly one goroutine per Run and owns its image
// block, so tile functions never share mutable state.
type TileExecutor struct {
	mu       sync.Mutex
	grid     *TileGrid
	pool     *WorkerPool
	ownsPool bool
}

// NewTileExecutor creates an executor. If pool is nil the executor starts and
// owns a GOMAXPROCS-sized pool, closed by Close.
func NewTileExecutor(pool *WorkerPool) *TileExecutor {
	e := &TileExecutor{pool: pool}
	if pool == nil {
		e.pool = NewWorkerPool(0)
		e.ownsPool = true
	}
	return e
}

// Configure prepares the grid for a width x height attachment with the given
// tile geometry. The previous grid is reused when nothing changed, and its
// image blocks are reset so no tile memory survives from an earlier pass.
func (e *TileExecutor) Configure(width, height int, cfg GridConfig) (*TileGrid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.grid != nil && e.grid.Config() == cfg {
		e.grid.Resize(width, height)
	} else {
		if e.grid != nil {
			e.grid.Close()
		}
		g, err := NewTileGrid(width, height, cfg)
		if err != nil {
			return nil, err
		}
		e.grid = g
	}
	e.grid.ForEach((*Tile).Reset)
	return e.grid, nil
}

// Grid returns the current grid, or nil before the first Configure.
func (e *TileExecutor) Grid() *TileGrid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid
}

// Run calls fn once for every tile of the configured grid, in parallel, and
// waits for all of them. Tiles not yet started when ctx is done are skipped.
// The first error returned by fn (or ctx.Err) is returned.
func (e *TileExecutor) Run(ctx context.Context, fn func(tile *Tile) error) error {
	e.mu.Lock()
	grid := e.grid
	e.mu.Unlock()
	if grid == nil || grid.TileCount() == 0 {
		return ctx.Err()
	}

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() { firstErr = err })
	}

	tiles := grid.AllTiles()
	e.pool.Dispatch(len(tiles), func(i int) {
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
		if err := fn(tiles[i]); err != nil {
			fail(err)
		}
	})
	return firstErr
}

// Workers returns the parallelism of the underlying pool.
func (e *TileExecutor) Workers() int {
	return e.pool.Workers()
}

// Close releases the grid and, if owned, the worker pool.
func (e *TileExecutor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grid != nil {
		e.grid.Close()
		e.grid = nil
	}
	if e.ownsPool {
		e.pool.Close()
	}
}
