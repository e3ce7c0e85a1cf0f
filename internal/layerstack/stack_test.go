package layerstack

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Clear / Len
// =============================================================================

func TestStack_ClearIsEmpty(t *testing.T) {
	var s Stack
	s.Clear()

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	for i, l := range s {
		if !l.IsEmpty() {
			t.Errorf("slot %d = %+v, want empty sentinel", i, l)
		}
		if l.A != 0 {
			t.Errorf("slot %d coverage = %v, want 0", i, l.A)
		}
	}
}

func TestStack_ZeroValueIsNotCleared(t *testing.T) {
	// A zero Stack has depth 0 everywhere and reads as fully occupied;
	// tile programs must Clear before accumulating.
	var s Stack
	if s.Len() != K {
		t.Errorf("Len() = %d, want %d", s.Len(), K)
	}
}

// =============================================================================
// Insert
// =============================================================================

func TestStack_InsertSorted(t *testing.T) {
	var s Stack
	s.Clear()

	depths := []float32{0.5, 0.1, 0.9}
	for _, d := range depths {
		s.Insert(Fragment(1, 1, 1, 0.5, d))
	}

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	want := []float32{0.1, 0.5, 0.9}
	for i, d := range want {
		if s[i].Depth != d {
			t.Errorf("s[%d].Depth = %v, want %v", i, s[i].Depth, d)
		}
	}
	if !s[3].IsEmpty() {
		t.Errorf("s[3] should stay empty, got %+v", s[3])
	}
}

func TestStack_InsertTieKeepsSubmissionOrder(t *testing.T) {
	var s Stack
	s.Clear()

	first := Fragment(1, 0, 0, 0.5, 0.3)
	second := Fragment(0, 1, 0, 0.5, 0.3)
	s.Insert(first)
	s.Insert(second)

	if s[0] != first || s[1] != second {
		t.Errorf("tie order = [%+v %+v], want first then second", s[0], s[1])
	}
}

func TestStack_InsertIgnoresZeroCoverage(t *testing.T) {
	var s Stack
	s.Clear()

	s.Insert(Fragment(1, 1, 1, 0, 0.2))
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after inserting a transparent fragment", s.Len())
	}
}

func TestStack_LenNeverExceedsK(t *testing.T) {
	var s Stack
	s.Clear()

	for i := range 64 {
		merged := s.Insert(Fragment(0.2, 0.4, 0.6, 0.25, float32(i%7)/7))
		if s.Len() > K {
			t.Fatalf("after %d inserts Len() = %d, want <= %d", i+1, s.Len(), K)
		}
		if i < K && merged {
			t.Errorf("insert %d merged before the stack was full", i)
		}
		if i >= K && !merged {
			t.Errorf("insert %d did not merge on a full stack", i)
		}
	}
	if s.Len() != K {
		t.Errorf("Len() = %d, want %d", s.Len(), K)
	}
}

func TestStack_OverflowFoldsFarthest(t *testing.T) {
	var s Stack
	s.Clear()
	for i := range K {
		s.Insert(Fragment(1, 1, 1, 0.5, 0.1*float32(i+1))) // 0.1 .. 0.4
	}

	// Nearer than the farthest: evicts 0.4, which folds into 0.3.
	s.Insert(Fragment(1, 0, 0, 0.5, 0.05))

	require.Equal(t, K, s.Len())
	assert.InDelta(t, 0.05, s[0].Depth, 1e-6)
	assert.InDelta(t, 0.3, s[K-1].Depth, 1e-6)
	// 0.5 + 0.5*0.5
	assert.InDelta(t, 0.75, s[K-1].A, 1e-6)

	// Farther than everything: folds into the last layer.
	s.Insert(Fragment(0, 0, 1, 0.5, 0.9))
	assert.InDelta(t, 0.3, s[K-1].Depth, 1e-6)
	assert.InDelta(t, 0.875, s[K-1].A, 1e-6)
	assert.InDelta(t, 0.75, s[K-1].R, 1e-6)
	assert.InDelta(t, 0.875, s[K-1].B, 1e-6)
}

func TestStack_OverflowConservesCoverage(t *testing.T) {
	// Total coverage after the merge equals the coverage of compositing all
	// fragments in depth order.
	frags := []Layer{
		Fragment(1, 0, 0, 0.3, 0.1),
		Fragment(0, 1, 0, 0.3, 0.2),
		Fragment(0, 0, 1, 0.3, 0.3),
		Fragment(1, 1, 0, 0.3, 0.4),
		Fragment(0, 1, 1, 0.3, 0.5),
		Fragment(1, 0, 1, 0.3, 0.6),
	}

	var s Stack
	s.Clear()
	for _, f := range frags {
		s.Insert(f)
	}
	got := s.Resolve([4]float32{})

	var ref [4]float32
	for i := len(frags) - 1; i >= 0; i-- {
		f := frags[i]
		ref = [4]float32{
			f.R + (1-f.A)*ref[0],
			f.G + (1-f.A)*ref[1],
			f.B + (1-f.A)*ref[2],
			f.A + (1-f.A)*ref[3],
		}
	}

	for c := range 4 {
		assert.InDelta(t, ref[c], got[c], 1e-5, "channel %d", c)
	}
}

// =============================================================================
// Resolve
// =============================================================================

func TestStack_ResolveEmptyReturnsBackground(t *testing.T) {
	var s Stack
	s.Clear()

	bg := [4]float32{0.1, 0.2, 0.3, 1}
	if got := s.Resolve(bg); got != bg {
		t.Errorf("Resolve() = %v, want %v", got, bg)
	}
}

func TestStack_ResolveRedOverBlue(t *testing.T) {
	var s Stack
	s.Clear()
	s.Insert(Fragment(0, 0, 1, 0.5, 1))
	s.Insert(Fragment(1, 0, 0, 0.5, 0))

	got := s.Resolve([4]float32{})
	want := [4]float32{0.5, 0, 0.25, 0.75}
	for c := range 4 {
		assert.InDelta(t, want[c], got[c], 1e-6, "channel %d", c)
	}
}

func TestStack_OrderIndependence(t *testing.T) {
	frags := []Layer{
		Fragment(1, 0, 0, 0.5, 0.2),
		Fragment(0, 1, 0, 0.25, 0.4),
		Fragment(0, 0, 1, 0.75, 0.6),
		Fragment(1, 1, 1, 0.5, 0.8),
	}

	var want [4]float32
	first := true
	permute(frags, 0, func(order []Layer) {
		var s Stack
		s.Clear()
		for _, f := range order {
			s.Insert(f)
		}
		got := s.Resolve([4]float32{0, 0, 0, 1})
		if first {
			want = got
			first = false
			return
		}
		if got != want {
			t.Errorf("order %v resolved to %v, want %v", depthsOf(order), got, want)
		}
	})
}

func permute(xs []Layer, k int, fn func([]Layer)) {
	if k == len(xs) {
		fn(xs)
		return
	}
	for i := k; i < len(xs); i++ {
		xs[k], xs[i] = xs[i], xs[k]
		permute(xs, k+1, fn)
		xs[k], xs[i] = xs[i], xs[k]
	}
}

func depthsOf(ls []Layer) []float32 {
	out := make([]float32, len(ls))
	for i, l := range ls {
		out[i] = l.Depth
	}
	return out
}

// =============================================================================
// Sample encoding
// =============================================================================

func TestStack_StoreLoad(t *testing.T) {
	var s Stack
	s.Clear()
	s.Insert(Fragment(0.25, 0.5, 0.75, 0.5, 0.125))

	buf := make([]byte, SampleLength)
	s.Store(buf)

	var got Stack
	got.Load(buf)
	if got != s {
		t.Errorf("Load(Store(s)) = %+v, want %+v", got, s)
	}
	if !math32.IsInf(got[1].Depth, 1) {
		t.Errorf("empty slot depth = %v, want +Inf", got[1].Depth)
	}
}

func TestClearSample(t *testing.T) {
	buf := make([]byte, SampleLength)
	for i := range buf {
		buf[i] = 0xAB
	}
	ClearSample(buf)

	var s Stack
	s.Load(buf)
	if s.Len() != 0 {
		t.Errorf("Len() = %d after ClearSample, want 0", s.Len())
	}
}

func TestSampleLength(t *testing.T) {
	if SampleLength != 80 {
		t.Errorf("SampleLength = %d, want 80", SampleLength)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkStack_Insert(b *testing.B) {
	var s Stack
	f := Fragment(1, 0, 0, 0.5, 0.5)
	for b.Loop() {
		s.Clear()
		for range 8 {
			s.Insert(f)
		}
	}
}
