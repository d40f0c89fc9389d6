package inherit

import (
	"math"

	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
)

// distanceContributions picks, in each quadrant around newTile's centre, the
// previous tile whose centre is nearest, and weights it by inverse distance.
//
// Previous centres lie on a regular lattice, so the nearest centre of each
// quadrant is the lattice neighbour: the last column (row) whose centre is at
// or before the new centre and the one after it. A centre exactly on the new
// centre's column or row therefore counts as left (top). At grid edges fewer
// than four candidates remain. A candidate at distance zero takes all the
// weight.
func distanceContributions(prev *tiling.IterationStepTiles, newTile *tiling.Tile) []tiling.WeightContribution {
	cx, cy := newTile.Center()
	halfW := float64(prev.TileWidth) / 2
	halfH := float64(prev.TileHeight) / 2

	cols := bracket(cx, float64(prev.MarginLeft)+halfW, prev.HorizontalStep, prev.NumberOfTilesInJ)
	rows := bracket(cy, float64(prev.MarginTop)+halfH, prev.VerticalStep, prev.NumberOfTilesInI)

	out := make([]tiling.WeightContribution, 0, 4)
	for _, i := range rows {
		for _, j := range cols {
			px, py := prev.Tile(i, j).Center()
			d := math.Hypot(px-cx, py-cy)
			if d == 0 {
				return []tiling.WeightContribution{{PrevI: i, PrevJ: j, Weight: 1}}
			}
			out = append(out, tiling.WeightContribution{PrevI: i, PrevJ: j, Weight: 1 / d})
		}
	}
	return out
}

// bracket returns the indices of the lattice points (first at origin, spaced
// step apart, count of them) immediately at-or-before and after pos.
func bracket(pos, origin float64, step, count int) []int {
	before := int(math.Floor((pos - origin) / float64(step)))
	if before >= count {
		before = count - 1
	}
	if before < -1 {
		before = -1
	}
	idx := make([]int, 0, 2)
	if before >= 0 {
		idx = append(idx, before)
	}
	if after := before + 1; after >= 0 && after < count {
		idx = append(idx, after)
	}
	return idx
}
