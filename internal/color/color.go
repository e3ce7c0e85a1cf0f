// Package color packs the premultiplied linear colors produced by the resolve
// programs into 8-bit color attachments, and back.
//
// Attachment texels are 4 bytes. For sRGB formats the RGB channels are
// encoded with the sRGB transfer function; alpha is always stored linearly.
package color

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// TexelSize is the byte size of one color attachment texel.
const TexelSize = 4

// ErrUnsupportedFormat is returned by CodecFor for formats that are not
// 8-bit four-channel color formats.
var ErrUnsupportedFormat = errors.New("color: unsupported attachment format")

// Codec converts between premultiplied linear RGBA and the texel layout of one
// attachment format.
type Codec struct {
	format gputypes.TextureFormat
	bgra   bool
	srgb   bool
}

// CodecFor returns the codec for f.
func CodecFor(f gputypes.TextureFormat) (Codec, error) {
	switch f {
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return Codec{format: f, bgra: true, srgb: true}, nil
	case gputypes.TextureFormatBGRA8Unorm:
		return Codec{format: f, bgra: true}, nil
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return Codec{format: f, srgb: true}, nil
	case gputypes.TextureFormatRGBA8Unorm:
		return Codec{format: f}, nil
	default:
		return Codec{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
}

// Format returns the attachment format.
func (c Codec) Format() gputypes.TextureFormat { return c.format }

// IsSRGB reports whether RGB channels are sRGB-encoded.
func (c Codec) IsSRGB() bool { return c.srgb }

// Store writes v into the first TexelSize bytes of dst.
func (c Codec) Store(dst []byte, v [4]float32) {
	_ = dst[TexelSize-1]
	var r, g, b uint8
	if c.srgb {
		r, g, b = EncodeSRGB8(v[0]), EncodeSRGB8(v[1]), EncodeSRGB8(v[2])
	} else {
		r, g, b = unorm8(v[0]), unorm8(v[1]), unorm8(v[2])
	}
	if c.bgra {
		r, b = b, r
	}
	dst[0], dst[1], dst[2], dst[3] = r, g, b, unorm8(v[3])
}

// Load decodes the texel at the start of src.
func (c Codec) Load(src []byte) [4]float32 {
	_ = src[TexelSize-1]
	r, g, b := src[0], src[1], src[2]
	if c.bgra {
		r, b = b, r
	}
	a := float32(src[3]) / 255
	if c.srgb {
		return [4]float32{DecodeSRGB8(r), DecodeSRGB8(g), DecodeSRGB8(b), a}
	}
	return [4]float32{float32(r) / 255, float32(g) / 255, float32(b) / 255, a}
}

// Fill stores v into every texel of dst.
func (c Codec) Fill(dst []byte, v [4]float32) {
	var texel [TexelSize]byte
	c.Store(texel[:], v)
	for i := 0; i+TexelSize <= len(dst); i += TexelSize {
		copy(dst[i:i+TexelSize], texel[:])
	}
}

// FromGPU converts a render-pass clear color to float32. The value is used
// as-is, so callers pass premultiplied colors.
func FromGPU(c gputypes.Color) [4]float32 {
	return [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
}
