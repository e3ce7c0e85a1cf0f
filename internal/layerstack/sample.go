package layerstack

import (
	"encoding/binary"

	"github.com/chewxy/math32"
)

// Load decodes a stack from an image-block sample of at least SampleLength
// bytes. Layers are stored in slot order as little-endian float32
// (R, G, B, A, depth).
func (s *Stack) Load(sample []byte) {
	_ = sample[SampleLength-1]
	for i := range s {
		o := i * LayerSize
		s[i] = Layer{
			R:     math32.Float32frombits(binary.LittleEndian.Uint32(sample[o:])),
			G:     math32.Float32frombits(binary.LittleEndian.Uint32(sample[o+4:])),
			B:     math32.Float32frombits(binary.LittleEndian.Uint32(sample[o+8:])),
			A:     math32.Float32frombits(binary.LittleEndian.Uint32(sample[o+12:])),
			Depth: math32.Float32frombits(binary.LittleEndian.Uint32(sample[o+16:])),
		}
	}
}

// Store encodes the stack into an image-block sample of at least
// SampleLength bytes.
func (s *Stack) Store(sample []byte) {
	_ = sample[SampleLength-1]
	for i, l := range s {
		o := i * LayerSize
		binary.LittleEndian.PutUint32(sample[o:], math32.Float32bits(l.R))
		binary.LittleEndian.PutUint32(sample[o+4:], math32.Float32bits(l.G))
		binary.LittleEndian.PutUint32(sample[o+8:], math32.Float32bits(l.B))
		binary.LittleEndian.PutUint32(sample[o+12:], math32.Float32bits(l.A))
		binary.LittleEndian.PutUint32(sample[o+16:], math32.Float32bits(l.Depth))
	}
}

// ClearSample writes K empty layers into sample without decoding it first.
func ClearSample(sample []byte) {
	var s Stack
	s.Clear()
	s.Store(sample)
}
