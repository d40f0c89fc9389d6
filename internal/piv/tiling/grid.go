package tiling

import "fmt"

// ImageOrder selects which image of the pair a grid samples.
type ImageOrder int

const (
	FirstImage ImageOrder = iota
	SecondImage
)

func (o ImageOrder) String() string {
	switch o {
	case FirstImage:
		return "first"
	case SecondImage:
		return "second"
	default:
		return fmt.Sprintf("ImageOrder(%d)", int(o))
	}
}

// GridShape is everything that determines tile placement for a level. Two
// grids with equal shapes have identical tile footprints, which is what makes
// a grid buffer reusable.
type GridShape struct {
	Order            ImageOrder
	ImageWidth       int
	ImageHeight      int
	TileWidth        int
	TileHeight       int
	HorizontalStep   int // column-to-column increment in pixels
	VerticalStep     int // row-to-row increment in pixels
	MarginLeft       int
	MarginRight      int
	MarginTop        int
	MarginBottom     int
	NumberOfTilesInI int // rows
	NumberOfTilesInJ int // columns
}

// IterationStepTiles is the tile grid of one refinement level for one image
// of the pair. It exclusively owns its tiles.
type IterationStepTiles struct {
	GridShape

	Level            int // 0 for the coarsest level
	MaxAdaptiveSteps int // total number of levels of the refinement sequence

	Clipping ClippingPolicy
	Sink     DiagnosticsSink

	tiles  []Tile // row-major, NumberOfTilesInI * NumberOfTilesInJ
	pooled bool
}

// NewIterationStepTiles allocates a grid and places its tiles.
func NewIterationStepTiles(shape GridShape) *IterationStepTiles {
	g := &IterationStepTiles{GridShape: shape}
	g.tiles = make([]Tile, shape.NumberOfTilesInI*shape.NumberOfTilesInJ)

	rows := AxisLayout{TileCount: shape.NumberOfTilesInI, MarginNear: shape.MarginTop}
	cols := AxisLayout{TileCount: shape.NumberOfTilesInJ, MarginNear: shape.MarginLeft}
	for i := 0; i < shape.NumberOfTilesInI; i++ {
		top := rows.TilePosition(i, shape.VerticalStep)
		for j := 0; j < shape.NumberOfTilesInJ; j++ {
			t := &g.tiles[i*shape.NumberOfTilesInJ+j]
			t.IndexI, t.IndexJ = i, j
			t.TopPixel = top
			t.LeftPixel = cols.TilePosition(j, shape.HorizontalStep)
			t.grid = g
		}
	}
	return g
}

// Tile returns the tile at row i, column j. It panics when the coordinate is
// outside the grid.
func (g *IterationStepTiles) Tile(i, j int) *Tile {
	if i < 0 || i >= g.NumberOfTilesInI || j < 0 || j >= g.NumberOfTilesInJ {
		panic(fmt.Sprintf("tiling: tile (%d,%d) outside %dx%d grid", i, j, g.NumberOfTilesInI, g.NumberOfTilesInJ))
	}
	return &g.tiles[i*g.NumberOfTilesInJ+j]
}

// Tiles returns all tiles in row-major order. The slice aliases the grid's
// storage.
func (g *IterationStepTiles) Tiles() []Tile { return g.tiles }

// Len returns the number of tiles in the grid.
func (g *IterationStepTiles) Len() int { return len(g.tiles) }

// ResetDisplacements zeroes every tile's displacement.
func (g *IterationStepTiles) ResetDisplacements() {
	for k := range g.tiles {
		g.tiles[k].ResetDisplacements()
	}
}

func (g *IterationStepTiles) String() string {
	return fmt.Sprintf("level %d/%d %s: %dx%d tiles of %dx%d px, step %dx%d, margins l=%d r=%d t=%d b=%d",
		g.Level, g.MaxAdaptiveSteps, g.Order, g.NumberOfTilesInJ, g.NumberOfTilesInI,
		g.TileWidth, g.TileHeight, g.HorizontalStep, g.VerticalStep,
		g.MarginLeft, g.MarginRight, g.MarginTop, g.MarginBottom)
}

func (g *IterationStepTiles) recordClipping(t *Tile, du, dv float64) {
	if g.Sink == nil {
		return
	}
	g.Sink.RecordClipping(ClippingEvent{
		Order:     g.Order,
		Level:     g.Level,
		I:         t.IndexI,
		J:         t.IndexJ,
		LeftPixel: t.LeftPixel,
		TopPixel:  t.TopPixel,
		U:         t.u,
		V:         t.v,
		DU:        du,
		DV:        dv,
	})
}
