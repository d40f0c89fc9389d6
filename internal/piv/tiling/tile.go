package tiling

import "image"

// Tile is a single interrogation area of a level grid. Its footprint is fixed
// once the grid is built; only the accumulated displacement changes.
type Tile struct {
	TopPixel  int // Top edge in image pixels, margins included
	LeftPixel int // Left edge in image pixels, margins included
	IndexI    int // Row within the grid (vertical)
	IndexJ    int // Column within the grid (horizontal)

	u, v           float64 // accumulated displacement (horizontal, vertical) in pixels
	lastDU, lastDV float64 // most recent requested update

	grid *IterationStepTiles
}

// Grid returns the level grid that owns the tile.
func (t *Tile) Grid() *IterationStepTiles { return t.grid }

// Width returns the tile width in pixels.
func (t *Tile) Width() int { return t.grid.TileWidth }

// Height returns the tile height in pixels.
func (t *Tile) Height() int { return t.grid.TileHeight }

// Footprint returns the pixel rectangle sampled by the tile, ignoring its
// displacement.
func (t *Tile) Footprint() image.Rectangle {
	return image.Rect(t.LeftPixel, t.TopPixel, t.LeftPixel+t.grid.TileWidth, t.TopPixel+t.grid.TileHeight)
}

// Center returns the geometric centre of the footprint in pixels.
func (t *Tile) Center() (x, y float64) {
	return float64(t.LeftPixel) + float64(t.grid.TileWidth)/2,
		float64(t.TopPixel) + float64(t.grid.TileHeight)/2
}

// Displacement returns the accumulated (U, V) displacement.
func (t *Tile) Displacement() (u, v float64) { return t.u, t.v }

// DisplacementU returns the accumulated horizontal displacement.
func (t *Tile) DisplacementU() float64 { return t.u }

// DisplacementV returns the accumulated vertical displacement.
func (t *Tile) DisplacementV() float64 { return t.v }

// LastUpdate returns the most recent update passed to AccumulateDisplacement.
func (t *Tile) LastUpdate() (du, dv float64) { return t.lastDU, t.lastDV }

// SetDisplacement overwrites the displacement without consulting the clipping
// policy. Used when seeding a level from the previous one.
func (t *Tile) SetDisplacement(u, v float64) {
	t.u, t.v = u, v
}

// ResetDisplacements zeroes the displacement and the last update.
func (t *Tile) ResetDisplacements() {
	t.u, t.v = 0, 0
	t.lastDU, t.lastDV = 0, 0
}

// AccumulateDisplacement adds (du, dv) to the tile displacement under the
// grid's clipping policy. It reports whether the update was applied; under
// NoOutOfBoundClipping an out-of-bound update resets the displacement to
// zero and returns false. Only LoggedOutOfBoundClipping reports to the sink.
func (t *Tile) AccumulateDisplacement(du, dv float64) bool {
	t.lastDU, t.lastDV = du, dv
	u, v := t.u+du, t.v+dv
	if t.withinImage(u, v) {
		t.u, t.v = u, v
		return true
	}

	g := t.grid
	switch g.Clipping {
	case AllowedOutOfBoundClipping:
		t.u, t.v = u, v
		return true
	case LoggedOutOfBoundClipping:
		g.recordClipping(t, du, dv)
		t.u, t.v = u, v
		return true
	default:
		t.u, t.v = 0, 0
		return false
	}
}

// withinImage reports whether the footprint translated by (u, v) stays inside
// the image.
func (t *Tile) withinImage(u, v float64) bool {
	g := t.grid
	left := float64(t.LeftPixel) + u
	top := float64(t.TopPixel) + v
	return left >= 0 && top >= 0 &&
		left+float64(g.TileWidth) <= float64(g.ImageWidth) &&
		top+float64(g.TileHeight) <= float64(g.ImageHeight)
}
