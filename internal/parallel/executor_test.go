package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestTileExecutor_RunVisitsEveryTile(t *testing.T) {
	e := NewTileExecutor(nil)
	defer e.Close()

	g, err := e.Configure(420, 200, DefaultGridConfig(80))
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	var pixels atomic.Int64
	var visits atomic.Int64
	err = e.Run(context.Background(), func(tile *Tile) error {
		visits.Add(1)
		pixels.Add(int64(tile.Pixels()))
		for i := range tile.Memory {
			tile.Memory[i] = byte(tile.X + tile.Y)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if int(visits.Load()) != g.TileCount() {
		t.Errorf("visited %d tiles, want %d", visits.Load(), g.TileCount())
	}
	if pixels.Load() != 420*200 {
		t.Errorf("covered %d pixels, want %d", pixels.Load(), 420*200)
	}
}

func TestTileExecutor_ConfigureResetsMemory(t *testing.T) {
	e := NewTileExecutor(NewWorkerPool(2))
	defer e.Close()

	if _, err := e.Configure(64, 32, DefaultGridConfig(8)); err != nil {
		t.Fatal(err)
	}
	_ = e.Run(context.Background(), func(tile *Tile) error {
		for i := range tile.Memory {
			tile.Memory[i] = 0xEE
		}
		return nil
	})

	g, err := e.Configure(64, 32, DefaultGridConfig(8))
	if err != nil {
		t.Fatal(err)
	}
	g.ForEach(func(tile *Tile) {
		for i, b := range tile.Memory {
			if b != 0 {
				t.Fatalf("tile (%d,%d) byte %d = %#x, want 0", tile.X, tile.Y, i, b)
			}
		}
	})
}

func TestTileExecutor_ConfigureNewGeometry(t *testing.T) {
	e := NewTileExecutor(nil)
	defer e.Close()

	if _, err := e.Configure(64, 64, DefaultGridConfig(80)); err != nil {
		t.Fatal(err)
	}
	g, err := e.Configure(64, 64, GridConfig{TileWidth: 16, TileHeight: 16, SampleLength: 4})
	if err != nil {
		t.Fatal(err)
	}
	if g.TileCount() != 16 {
		t.Errorf("TileCount() = %d, want 16", g.TileCount())
	}
	if len(g.TileAt(0, 0).Memory) != 16*16*4 {
		t.Errorf("tile memory = %d, want %d", len(g.TileAt(0, 0).Memory), 16*16*4)
	}

	if _, err := e.Configure(64, 64, GridConfig{}); err == nil {
		t.Error("Configure with zero geometry should fail")
	}
}

func TestTileExecutor_RunReturnsFirstError(t *testing.T) {
	e := NewTileExecutor(nil)
	defer e.Close()
	if _, err := e.Configure(128, 64, DefaultGridConfig(4)); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := e.Run(context.Background(), func(tile *Tile) error {
		if tile.X == 1 && tile.Y == 1 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestTileExecutor_RunCanceled(t *testing.T) {
	e := NewTileExecutor(nil)
	defer e.Close()
	if _, err := e.Configure(128, 64, DefaultGridConfig(4)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int64
	err := e.Run(ctx, func(*Tile) error {
		ran.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if ran.Load() != 0 {
		t.Errorf("%d tiles ran after cancellation, want 0", ran.Load())
	}
}

func TestTileExecutor_RunWithoutGrid(t *testing.T) {
	e := NewTileExecutor(nil)
	defer e.Close()

	if err := e.Run(context.Background(), func(*Tile) error { return errors.New("unreachable") }); err != nil {
		t.Errorf("Run() without grid error = %v, want nil", err)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkTileExecutor_Run(b *testing.B) {
	e := NewTileExecutor(nil)
	defer e.Close()
	if _, err := e.Configure(1920, 1080, DefaultGridConfig(80)); err != nil {
		b.Fatal(err)
	}

	ctx := context.Background()
	for b.Loop() {
		_ = e.Run(ctx, func(tile *Tile) error {
			tile.Reset()
			return nil
		})
	}
}
