package color

import "github.com/chewxy/math32"

// SRGBToLinear converts an sRGB component in [0,1] to linear.
func SRGBToLinear(s float32) float32 {
	if s <= 0.04045 {
		return s / 12.92
	}
	return math32.Pow((s+0.055)/1.055, 2.4)
}

// LinearToSRGB converts a linear component in [0,1] to sRGB.
func LinearToSRGB(l float32) float32 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*math32.Pow(l, 1/2.4) - 0.055
}

// Unpremultiply divides the color channels by alpha. Fully transparent
// colors become transparent black.
func Unpremultiply(v [4]float32) [4]float32 {
	if v[3] <= 0 {
		return [4]float32{}
	}
	inv := 1 / v[3]
	return [4]float32{min(v[0]*inv, 1), min(v[1]*inv, 1), min(v[2]*inv, 1), v[3]}
}

// StraightSRGB8 converts a premultiplied linear color to straight-alpha 8-bit
// sRGB, the layout of image.NRGBA.
func StraightSRGB8(v [4]float32) [4]uint8 {
	s := Unpremultiply(v)
	return [4]uint8{
		EncodeSRGB8(s[0]),
		EncodeSRGB8(s[1]),
		EncodeSRGB8(s[2]),
		unorm8(s[3]),
	}
}

// unorm8 quantizes v to a UNORM byte, rounding to nearest.
func unorm8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
