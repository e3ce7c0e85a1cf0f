package color

// Transfer tables for 8-bit sRGB attachments. Encoding uses a 12-bit index,
// enough to land on the same byte as the exact curve for every level.
var (
	decodeSRGB [256]float32
	encodeSRGB [1 << 12]uint8
)

func init() {
	for i := range decodeSRGB {
		decodeSRGB[i] = SRGBToLinear(float32(i) / 255)
	}
	last := float32(len(encodeSRGB) - 1)
	for i := range encodeSRGB {
		encodeSRGB[i] = unorm8(LinearToSRGB(float32(i) / last))
	}
}

// DecodeSRGB8 returns the linear value of an sRGB-encoded byte.
func DecodeSRGB8(s uint8) float32 {
	return decodeSRGB[s]
}

// EncodeSRGB8 returns the sRGB-encoded byte for a linear value, clamped to
// [0,1] first.
//
//	EncodeSRGB8(0.5) == 188
func EncodeSRGB8(l float32) uint8 {
	l = max(0, min(l, 1))
	return encodeSRGB[int(l*float32(len(encodeSRGB)-1)+0.5)]
}
