// Package layerstack implements the fixed-capacity per-pixel layer list that
// the OIT tile programs keep in tile memory.
//
// A Stack holds up to K premultiplied layers sorted by ascending depth
// (nearest first). Empty slots carry the sentinel depth +Inf and always trail
// the occupied ones.
//
// Overflow never drops a fragment: when K layers are occupied the K+1
// candidates are sorted and the two farthest are merged with the premultiplied
// under operator, keeping the nearer depth. For at most K fragments with
// distinct depths the stored stack, and therefore the resolved color, does not
// depend on insertion order.
package layerstack

import "github.com/chewxy/math32"

// Capacity constants.
const (
	// K is the number of layers stored per pixel.
	K = 4

	// LayerFloats is the number of float32 values per layer (R, G, B, A, depth).
	LayerFloats = 5

	// LayerSize is the encoded size of one layer in bytes.
	LayerSize = LayerFloats * 4

	// SampleLength is the per-pixel image-block footprint in bytes.
	SampleLength = K * LayerSize
)

// Layer is one stored transparent surface. Color is premultiplied by A.
type Layer struct {
	R, G, B, A float32
	Depth      float32
}

// Empty returns the empty-slot sentinel: zero coverage at infinite depth.
func Empty() Layer {
	return Layer{Depth: math32.Inf(1)}
}

// Fragment builds a premultiplied layer from a straight-alpha color.
func Fragment(r, g, b, a, depth float32) Layer {
	return Layer{R: r * a, G: g * a, B: b * a, A: a, Depth: depth}
}

// IsEmpty reports whether l is the empty sentinel.
func (l Layer) IsEmpty() bool {
	return math32.IsInf(l.Depth, 1)
}

// under composites far beneath near.
func under(near, far Layer) Layer {
	t := 1 - near.A
	return Layer{
		R:     near.R + t*far.R,
		G:     near.G + t*far.G,
		B:     near.B + t*far.B,
		A:     near.A + t*far.A,
		Depth: near.Depth,
	}
}

// Stack is the per-pixel layer list.
type Stack [K]Layer

// Clear resets every slot to the empty sentinel.
func (s *Stack) Clear() {
	for i := range s {
		s[i] = Empty()
	}
}

// Len returns the number of occupied layers.
func (s *Stack) Len() int {
	n := 0
	for n < K && !s[n].IsEmpty() {
		n++
	}
	return n
}

// Insert adds a fragment, keeping the stack sorted by depth. Fragments with
// equal depth are placed behind the layers already stored, so submission
// order breaks ties. A fragment with no coverage contributes nothing and is
// ignored. Insert reports whether the overflow merge was applied.
func (s *Stack) Insert(f Layer) bool {
	if f.A <= 0 || f.IsEmpty() {
		return false
	}

	n := s.Len()
	i := 0
	for i < n && s[i].Depth <= f.Depth {
		i++
	}

	if n < K {
		copy(s[i+1:n+1], s[i:n])
		s[i] = f
		return false
	}

	if i == K {
		s[K-1] = under(s[K-1], f)
		return true
	}

	farthest := s[K-1]
	copy(s[i+1:], s[i:K-1])
	s[i] = f
	s[K-1] = under(s[K-1], farthest)
	return true
}

// Resolve composites the occupied layers back to front over dst, which is a
// premultiplied RGBA color (normally the attachment's clear color).
func (s *Stack) Resolve(dst [4]float32) [4]float32 {
	for i := s.Len() - 1; i >= 0; i-- {
		l := s[i]
		t := 1 - l.A
		dst[0] = l.R + t*dst[0]
		dst[1] = l.G + t*dst[1]
		dst[2] = l.B + t*dst[2]
		dst[3] = l.A + t*dst[3]
	}
	return dst
}
