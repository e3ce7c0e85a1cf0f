package parallel

import "fmt"

// GridConfig describes the tile geometry of a pass.
type GridConfig struct {
	// TileWidth and TileHeight are the tile size in pixels.
	TileWidth, TileHeight int

	// SampleLength is the image-block footprint of one pixel in bytes.
	SampleLength int
}

// DefaultGridConfig returns a 32x16 grid with the given sample length.
func DefaultGridConfig(sampleLength int) GridConfig {
	return GridConfig{
		TileWidth:    DefaultTileWidth,
		TileHeight:   DefaultTileHeight,
		SampleLength: sampleLength,
	}
}

// Validate reports a non-positive tile dimension or sample length.
func (c GridConfig) Validate() error {
	if c.TileWidth <= 0 || c.TileHeight <= 0 {
		return fmt.Errorf("parallel: invalid tile size %dx%d", c.TileWidth, c.TileHeight)
	}
	if c.SampleLength <= 0 {
		return fmt.Errorf("parallel: invalid sample length %d", c.SampleLength)
	}
	return nil
}

// TileGrid partitions an attachment into tiles that each own an image block.
//
// Edge tiles have smaller dimensions when the attachment is not evenly
// divisible by the tile size. Tiles are stored in a flat slice, accessed via
// index = ty*tilesX + tx.
//
// Thread safety: TileGrid is NOT thread-safe. Distinct tiles may be mutated
// concurrently; the grid itself must not be resized while tiles are in use.
type TileGrid struct {
	cfg    GridConfig
	tiles  []*Tile
	tilesX int
	tilesY int
	width  int
	height int
}

// NewTileGrid creates a grid covering a width x height attachment.
// A non-positive size produces an empty grid.
func NewTileGrid(width, height int, cfg GridConfig) (*TileGrid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &TileGrid{cfg: cfg}
	g.Resize(width, height)
	return g, nil
}

func (g *TileGrid) allocateTiles() {
	tw, th := g.cfg.TileWidth, g.cfg.TileHeight
	for ty := range g.tilesY {
		for tx := range g.tilesX {
			w := min(tw, g.width-tx*tw)
			h := min(th, g.height-ty*th)
			g.tiles[ty*g.tilesX+tx] = &Tile{
				X:            tx,
				Y:            ty,
				Width:        w,
				Height:       h,
				OriginX:      tx * tw,
				OriginY:      ty * th,
				SampleLength: g.cfg.SampleLength,
				Memory:       blocks.get(w * h * g.cfg.SampleLength),
			}
		}
	}
}

// Resize changes the attachment size. Image blocks are reallocated only when
// the size actually changes.
func (g *TileGrid) Resize(width, height int) {
	if width == g.width && height == g.height && g.tiles != nil {
		return
	}
	g.release()
	if width <= 0 || height <= 0 {
		g.width, g.height, g.tilesX, g.tilesY = 0, 0, 0, 0
		return
	}
	g.width, g.height = width, height
	g.tilesX = (width + g.cfg.TileWidth - 1) / g.cfg.TileWidth
	g.tilesY = (height + g.cfg.TileHeight - 1) / g.cfg.TileHeight
	g.tiles = make([]*Tile, g.tilesX*g.tilesY)
	g.allocateTiles()
}

// Config returns the grid's tile geometry.
func (g *TileGrid) Config() GridConfig {
	return g.cfg
}

// TileAt returns the tile at tile coordinates (tx, ty), or nil when out of
// bounds.
func (g *TileGrid) TileAt(tx, ty int) *Tile {
	if tx < 0 || tx >= g.tilesX || ty < 0 || ty >= g.tilesY {
		return nil
	}
	return g.tiles[ty*g.tilesX+tx]
}

// TileAtPixel returns the tile containing attachment pixel (px, py).
func (g *TileGrid) TileAtPixel(px, py int) *Tile {
	if px < 0 || px >= g.width || py < 0 || py >= g.height {
		return nil
	}
	return g.tiles[(py/g.cfg.TileHeight)*g.tilesX+px/g.cfg.TileWidth]
}

// TilesInRect returns the tiles intersecting the pixel rectangle, clamped to
// the attachment.
func (g *TileGrid) TilesInRect(x, y, w, h int) []*Tile {
	if w <= 0 || h <= 0 {
		return nil
	}
	x1, y1 := max(x, 0), max(y, 0)
	x2, y2 := min(x+w, g.width), min(y+h, g.height)
	if x1 >= x2 || y1 >= y2 {
		return nil
	}

	tx1, ty1 := x1/g.cfg.TileWidth, y1/g.cfg.TileHeight
	tx2, ty2 := (x2-1)/g.cfg.TileWidth, (y2-1)/g.cfg.TileHeight

	result := make([]*Tile, 0, (tx2-tx1+1)*(ty2-ty1+1))
	for ty := ty1; ty <= ty2; ty++ {
		for tx := tx1; tx <= tx2; tx++ {
			result = append(result, g.tiles[ty*g.tilesX+tx])
		}
	}
	return result
}

// Index returns the flat index of t, suitable for per-tile side tables.
func (g *TileGrid) Index(t *Tile) int {
	return t.Y*g.tilesX + t.X
}

// TileCount returns the total number of tiles.
func (g *TileGrid) TileCount() int { return len(g.tiles) }

// TilesX returns the number of tiles horizontally.
func (g *TileGrid) TilesX() int { return g.tilesX }

// TilesY returns the number of tiles vertically.
func (g *TileGrid) TilesY() int { return g.tilesY }

// Width returns the attachment width in pixels.
func (g *TileGrid) Width() int { return g.width }

// Height returns the attachment height in pixels.
func (g *TileGrid) Height() int { return g.height }

// AllTiles returns all tiles in row-major order.
// The returned slice should not be modified.
func (g *TileGrid) AllTiles() []*Tile {
	return g.tiles
}

// ForEach calls fn for each tile in row-major order.
func (g *TileGrid) ForEach(fn func(tile *Tile)) {
	for _, tile := range g.tiles {
		fn(tile)
	}
}

// Close returns all image blocks to the pool. The grid is empty afterwards.
func (g *TileGrid) Close() {
	g.release()
	g.width, g.height, g.tilesX, g.tilesY = 0, 0, 0, 0
}

func (g *TileGrid) release() {
	for _, tile := range g.tiles {
		blocks.put(tile.Memory)
		tile.Memory = nil
	}
	g.tiles = nil
}
