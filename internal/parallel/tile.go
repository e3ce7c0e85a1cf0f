package parallel

// Default tile geometry of the tile-shading passes.
const (
	DefaultTileWidth  = 32
	DefaultTileHeight = 16
)

// Tile is one dispatch unit of a tile pass.
//
// A tile owns its image-block memory: SampleLength bytes per pixel, stored
// row-major with a stride of Width samples. Edge tiles cover fewer pixels
// than the configured tile size and carry correspondingly less memory.
type Tile struct {
	// X, Y are the tile coordinates in the grid (not pixels).
	X, Y int

	// Width and Height are the pixels actually covered by the tile.
	Width, Height int

	// OriginX and OriginY are the attachment coordinates of the top-left pixel.
	OriginX, OriginY int

	// SampleLength is the per-pixel image-block footprint in bytes.
	SampleLength int

	// Memory is the image block: Width*Height*SampleLength bytes.
	Memory []byte
}

// Bounds returns the tile's pixel rectangle in attachment coordinates.
func (t *Tile) Bounds() (x, y, w, h int) {
	return t.OriginX, t.OriginY, t.Width, t.Height
}

// MaxX returns the exclusive right edge in attachment coordinates.
func (t *Tile) MaxX() int { return t.OriginX + t.Width }

// MaxY returns the exclusive bottom edge in attachment coordinates.
func (t *Tile) MaxY() int { return t.OriginY + t.Height }

// Contains reports whether the attachment pixel (px, py) lies in the tile.
func (t *Tile) Contains(px, py int) bool {
	return px >= t.OriginX && px < t.MaxX() && py >= t.OriginY && py < t.MaxY()
}

// Pixels returns the number of pixels covered by the tile.
func (t *Tile) Pixels() int {
	return t.Width * t.Height
}

// Sample returns the image-block sample of the tile-local pixel (lx, ly).
// The slice aliases tile memory.
func (t *Tile) Sample(lx, ly int) []byte {
	off := (ly*t.Width + lx) * t.SampleLength
	return t.Memory[off : off+t.SampleLength : off+t.SampleLength]
}

// SampleAt returns the sample of the attachment pixel (px, py), or nil when
// the pixel is outside the tile.
func (t *Tile) SampleAt(px, py int) []byte {
	if !t.Contains(px, py) {
		return nil
	}
	return t.Sample(px-t.OriginX, py-t.OriginY)
}

// Reset zeroes the image block.
func (t *Tile) Reset() {
	clear(t.Memory)
}
