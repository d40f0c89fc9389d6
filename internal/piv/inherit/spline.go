package inherit

import (
	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
	"gonum.org/v1/gonum/interp"
)

// minCubicPoints is the smallest number of tile centres per axis for which a
// cubic spline is fitted; smaller grids use piecewise-linear interpolation.
const minCubicPoints = 4

// surface is a tensor-product interpolant of the previous level's
// displacement field over its tile centres.
type surface struct {
	xs, ys []float64 // column and row centre coordinates
	rowsU  []interp.FittablePredictor
	rowsV  []interp.FittablePredictor
	cubic  bool
}

func newSurface(prev *tiling.IterationStepTiles) *surface {
	nI, nJ := prev.NumberOfTilesInI, prev.NumberOfTilesInJ
	s := &surface{
		xs:    make([]float64, nJ),
		ys:    make([]float64, nI),
		rowsU: make([]interp.FittablePredictor, nI),
		rowsV: make([]interp.FittablePredictor, nI),
		cubic: nI >= minCubicPoints && nJ >= minCubicPoints,
	}
	for j := 0; j < nJ; j++ {
		s.xs[j], _ = prev.Tile(0, j).Center()
	}
	for i := 0; i < nI; i++ {
		_, s.ys[i] = prev.Tile(i, 0).Center()
	}

	for i := 0; i < nI; i++ {
		us := make([]float64, nJ)
		vs := make([]float64, nJ)
		for j := 0; j < nJ; j++ {
			us[j], vs[j] = prev.Tile(i, j).Displacement()
		}
		s.rowsU[i] = s.fit(s.xs, us)
		s.rowsV[i] = s.fit(s.xs, vs)
	}
	return s
}

// at evaluates the surface at (x, y). Outside the hull of the previous tile
// centres the nearest boundary value is used.
func (s *surface) at(x, y float64) (u, v float64) {
	colU := make([]float64, len(s.ys))
	colV := make([]float64, len(s.ys))
	for i := range s.ys {
		colU[i] = s.rowsU[i].Predict(x)
		colV[i] = s.rowsV[i].Predict(x)
	}
	return s.fit(s.ys, colU).Predict(y), s.fit(s.ys, colV).Predict(y)
}

// fit returns an interpolant through (xs, ys).
func (s *surface) fit(xs, ys []float64) interp.FittablePredictor {
	if len(xs) == 1 {
		return constant(ys[0])
	}
	if s.cubic {
		var nc interp.NaturalCubic
		if err := nc.Fit(xs, ys); err == nil {
			return &nc
		}
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		// xs are strictly increasing tile centres with at least two points.
		panic("inherit: linear fit failed: " + err.Error())
	}
	return &pl
}

// constant interpolates a single sample.
type constant float64

func (c constant) Fit(_, _ []float64) error { return nil }
func (c constant) Predict(float64) float64  { return float64(c) }

func (in *Inheritor) seedSpline(prev, next *tiling.IterationStepTiles) {
	s := newSurface(prev)
	tiles := next.Tiles()
	for k := range tiles {
		tile := &tiles[k]
		tile.SetDisplacement(s.at(tile.Center()))
		in.traceTile(next, tile, nil)
	}
}
