package oit

import (
	"context"
	"fmt"
	"image"

	"github.com/gogpu/oit/backend"
	"github.com/gogpu/oit/internal/color"
)

// ReadImage reads a color texture back into a straight-alpha image.
//
// sRGB attachments are converted from premultiplied linear to sRGB-encoded
// straight alpha. Unorm attachments are only unpremultiplied.
func ReadImage(ctx context.Context, tex backend.Texture) (*image.NRGBA, error) {
	codec, err := color.CodecFor(tex.Format())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, tex.Format())
	}
	pix, err := tex.ReadPixels(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("read %q: %w", tex.Label(), err))
	}

	w, h := tex.Width(), tex.Height()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i+color.TexelSize <= len(pix) && i < len(img.Pix); i += color.TexelSize {
		v := codec.Load(pix[i:])
		var px [4]uint8
		if codec.IsSRGB() {
			px = color.StraightSRGB8(v)
		} else {
			s := color.Unpremultiply(v)
			for c := range 4 {
				px[c] = uint8(s[c]*255 + 0.5)
			}
		}
		copy(img.Pix[i:i+4], px[:])
	}
	return img, nil
}
