package inherit

import (
	"math"

	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
)

// OverlapResult is the outcome of testing one previous-level candidate
// against a new tile.
type OverlapResult struct {
	// OverlapFactor is the fraction of the new tile's area covered by the
	// candidate, 0 when they do not intersect.
	OverlapFactor float64

	// Move* report that the candidate's neighbour in that direction may also
	// intersect the new tile. For a non-overlapping candidate only the
	// directions towards the overlapping tiles are set.
	MoveUp    bool
	MoveDown  bool
	MoveLeft  bool
	MoveRight bool
}

// CheckOverlappingFactor measures how much of newTile is covered by the
// previous-level tile candidate and where further candidates may lie.
// It reads prev only to look at candidate's immediate neighbours.
func CheckOverlappingFactor(prev *tiling.IterationStepTiles, candidate *tiling.Tile,
	next *tiling.IterationStepTiles, newTile *tiling.Tile) OverlapResult {
	fp := newTile.Footprint()
	var r OverlapResult

	if inter := fp.Intersect(candidate.Footprint()); !inter.Empty() {
		r.OverlapFactor = float64(inter.Dx()*inter.Dy()) / float64(next.TileWidth*next.TileHeight)
	}

	i, j := candidate.IndexI, candidate.IndexJ
	if j > 0 {
		r.MoveLeft = fp.Min.X < prev.Tile(i, j-1).Footprint().Max.X
	}
	if j+1 < prev.NumberOfTilesInJ {
		r.MoveRight = fp.Max.X > prev.Tile(i, j+1).Footprint().Min.X
	}
	if i > 0 {
		r.MoveUp = fp.Min.Y < prev.Tile(i-1, j).Footprint().Max.Y
	}
	if i+1 < prev.NumberOfTilesInI {
		r.MoveDown = fp.Max.Y > prev.Tile(i+1, j).Footprint().Min.Y
	}
	return r
}

type cell struct{ i, j int }

// areaContributions sweeps the previous grid outwards from the tile nearest
// newTile's centre, following the directional hints, and returns every
// intersecting tile weighted by intersection area.
func areaContributions(prev *tiling.IterationStepTiles, newTile *tiling.Tile) []tiling.WeightContribution {
	next := newTile.Grid()
	cx, cy := newTile.Center()
	start := cell{
		i: nearestIndex(cy, prev.MarginTop, prev.VerticalStep, prev.NumberOfTilesInI),
		j: nearestIndex(cx, prev.MarginLeft, prev.HorizontalStep, prev.NumberOfTilesInJ),
	}

	var out []tiling.WeightContribution
	seen := map[cell]bool{start: true}
	queue := []cell{start}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		r := CheckOverlappingFactor(prev, prev.Tile(c.i, c.j), next, newTile)
		if r.OverlapFactor > 0 {
			out = append(out, tiling.WeightContribution{PrevI: c.i, PrevJ: c.j, Weight: r.OverlapFactor})
		}

		for _, n := range []struct {
			ok bool
			c  cell
		}{
			{r.MoveUp, cell{c.i - 1, c.j}},
			{r.MoveDown, cell{c.i + 1, c.j}},
			{r.MoveLeft, cell{c.i, c.j - 1}},
			{r.MoveRight, cell{c.i, c.j + 1}},
		} {
			if n.ok && !seen[n.c] {
				seen[n.c] = true
				queue = append(queue, n.c)
			}
		}
	}
	return out
}

// nearestIndex returns the index of the tile whose span along an axis starts
// at or before pos, clamped to the grid.
func nearestIndex(pos float64, margin, step, count int) int {
	k := int(math.Floor((pos - float64(margin)) / float64(step)))
	if k < 0 {
		return 0
	}
	if k >= count {
		return count - 1
	}
	return k
}
