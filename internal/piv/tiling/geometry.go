package tiling

import "math"

// AxisLayout is the result of fitting a row (or column) of tiles along one
// image axis.
type AxisLayout struct {
	TileCount  int // Number of tiles that fit along the axis
	MarginNear int // Top margin for the vertical axis, left for the horizontal axis
	MarginFar  int // Bottom margin for the vertical axis, right for the horizontal axis
	UsedExtent int // Pixels spanned from the first tile's near edge to the last tile's far edge
}

// ComputeAxis fits tiles of tileSize pixels, placed stepPixels apart, along an
// axis of axisPixels pixels with the given base margins.
//
// The pixels left over after placing the tiles are split between the two
// margins; an odd remainder pixel always goes to the far margin. ok is false
// when not even one tile fits between the base margins, which callers treat
// as the end of the refinement sequence rather than as an error.
func ComputeAxis(axisPixels, baseMarginNear, baseMarginFar, tileSize, stepPixels int) (layout AxisLayout, ok bool) {
	available := axisPixels - baseMarginNear - baseMarginFar
	if tileSize <= 0 || stepPixels <= 0 || available < tileSize {
		return AxisLayout{}, false
	}

	count := (available-tileSize)/stepPixels + 1
	used := tileSize + (count-1)*stepPixels
	leftover := available - used
	nearExtra := leftover / 2

	return AxisLayout{
		TileCount:  count,
		MarginNear: baseMarginNear + nearExtra,
		MarginFar:  baseMarginFar + leftover - nearExtra,
		UsedExtent: used,
	}, true
}

// TilePosition returns the near-edge pixel of tile index i. Every position is
// derived from index 0 so rounding never accumulates along the axis.
func (a AxisLayout) TilePosition(i, stepPixels int) int {
	return a.MarginNear + int(math.Round(float64(stepPixels)*float64(i)))
}

// StepPixels returns the centre-to-centre increment for tiles of tileSize
// pixels. An overlapFactor of 1 means tiles abut; smaller values overlap them.
// A result below one pixel is returned as is; DivisionConfig.Validate rejects
// configurations that would produce it.
func StepPixels(tileSize int, overlapFactor float64) int {
	return int(math.Round(float64(tileSize) * overlapFactor))
}
