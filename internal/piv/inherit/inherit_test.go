package inherit

import (
	"math"
	"sync"
	"testing"

	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/interp"
)

// squareGrid builds an n x n grid of size px tiles on a square image.
func squareGrid(level, image, size, step, margin, n int) *tiling.IterationStepTiles {
	g := tiling.NewIterationStepTiles(tiling.GridShape{
		ImageWidth:       image,
		ImageHeight:      image,
		TileWidth:        size,
		TileHeight:       size,
		HorizontalStep:   step,
		VerticalStep:     step,
		MarginLeft:       margin,
		MarginRight:      image - margin - size - (n-1)*step,
		MarginTop:        margin,
		MarginBottom:     image - margin - size - (n-1)*step,
		NumberOfTilesInI: n,
		NumberOfTilesInJ: n,
	})
	g.Level = level
	return g
}

func fillField(g *tiling.IterationStepTiles, f func(x, y float64) (float64, float64)) {
	tiles := g.Tiles()
	for k := range tiles {
		tiles[k].SetDisplacement(f(tiles[k].Center()))
	}
}

func allKeys(g *tiling.IterationStepTiles) tiling.TraceSelector {
	var keys []tiling.TileKey
	for _, t := range g.Tiles() {
		keys = append(keys, tiling.TileKey{Level: g.Level, I: t.IndexI, J: t.IndexJ})
	}
	return tiling.NewTraceSelector(keys...)
}

type traceSink struct {
	mu     sync.Mutex
	traces []tiling.InheritanceTrace
}

func (s *traceSink) RecordClipping(tiling.ClippingEvent) {}

func (s *traceSink) RecordInheritance(tr tiling.InheritanceTrace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = append(s.traces, tr)
}

func referenceDivider(t *testing.T, kind tiling.DivisionKind) *tiling.AreaDivider {
	t.Helper()
	d, err := tiling.NewAreaDivider(tiling.DivisionConfig{
		ImageWidth: 1600, ImageHeight: 1200,
		MarginTop: 16, MarginBottom: 16, MarginLeft: 16, MarginRight: 16,
		StartWidth: 128, StartHeight: 128, EndWidth: 16, EndHeight: 16,
		OverlapFactor: 0.5,
		Kind:          kind,
	})
	require.NoError(t, err)
	return d
}

func swirl(x, y float64) (float64, float64) {
	return 0.01*x + 0.5*math.Sin(y/97), -0.02*y + 0.25*math.Cos(x/53)
}

func TestCheckOverlappingFactor_FullCover(t *testing.T) {
	t.Parallel()

	prev := squareGrid(0, 128, 32, 32, 0, 4)
	next := squareGrid(1, 128, 16, 16, 0, 8)

	r := CheckOverlappingFactor(prev, prev.Tile(0, 0), next, next.Tile(0, 0))
	assert.Equal(t, OverlapResult{OverlapFactor: 1}, r)

	r = CheckOverlappingFactor(prev, prev.Tile(1, 1), next, next.Tile(3, 3))
	assert.Equal(t, OverlapResult{OverlapFactor: 1}, r)
}

func TestCheckOverlappingFactor_PartialCover(t *testing.T) {
	t.Parallel()

	prev := squareGrid(0, 128, 32, 32, 0, 4)
	next := squareGrid(1, 128, 16, 16, 8, 7)

	// next (0,1) spans x [24,40), y [8,24)
	r := CheckOverlappingFactor(prev, prev.Tile(0, 0), next, next.Tile(0, 1))
	assert.InDelta(t, 0.5, r.OverlapFactor, 1e-12)
	assert.True(t, r.MoveRight)
	assert.False(t, r.MoveLeft)
	assert.False(t, r.MoveUp)
	assert.False(t, r.MoveDown)
}

func TestCheckOverlappingFactor_NoOverlapPointsTowardsTile(t *testing.T) {
	t.Parallel()

	prev := squareGrid(0, 128, 32, 32, 0, 4)
	next := squareGrid(1, 128, 16, 16, 8, 7)

	// next (2,4) spans x [72,88), y [40,56): right of and below prev (0,0)
	r := CheckOverlappingFactor(prev, prev.Tile(0, 0), next, next.Tile(2, 4))
	assert.Equal(t, OverlapResult{MoveRight: true, MoveDown: true}, r)

	// next (0,0) spans [8,24): left of and above prev (3,3)
	r = CheckOverlappingFactor(prev, prev.Tile(3, 3), next, next.Tile(0, 0))
	assert.Equal(t, OverlapResult{MoveLeft: true, MoveUp: true}, r)

	// next (0,4) spans x [72,88), y [8,24): only to the right of prev (0,0)
	r = CheckOverlappingFactor(prev, prev.Tile(0, 0), next, next.Tile(0, 4))
	assert.Equal(t, OverlapResult{MoveRight: true}, r)
}

func TestCheckOverlappingFactor_OverlappingPreviousGrid(t *testing.T) {
	t.Parallel()

	prev := squareGrid(0, 128, 32, 16, 0, 7)
	next := squareGrid(1, 128, 16, 16, 0, 8)

	// next (1,1) spans [16,32); prev (1,1) spans [16,48) and prev (0,0) spans [0,32)
	r := CheckOverlappingFactor(prev, prev.Tile(1, 1), next, next.Tile(1, 1))
	assert.Equal(t, 1.0, r.OverlapFactor)
	assert.True(t, r.MoveLeft)
	assert.True(t, r.MoveUp)
	assert.False(t, r.MoveRight)
	assert.False(t, r.MoveDown)
}

func TestAreaWeighted_WeightsSumToOne(t *testing.T) {
	t.Parallel()

	for _, kind := range []tiling.DivisionKind{tiling.NoSuperposition, tiling.Superposition} {
		d := referenceDivider(t, kind)
		prev := d.Next(tiling.FirstImage, nil)
		next := d.Next(tiling.FirstImage, prev)
		require.NotNil(t, next)
		fillField(prev, swirl)

		sink := &traceSink{}
		New(AreaWeighted).WithTrace(sink, allKeys(next)).Seed(prev, next)

		require.NotEmpty(t, sink.traces, "kind=%s", kind)
		for _, tr := range sink.traces {
			require.NotEmpty(t, tr.Contributions)
			var sum float64
			for _, c := range tr.Contributions {
				assert.Greater(t, c.Weight, 0.0)
				sum += c.Weight
			}
			assert.InDelta(t, 1.0, sum, 1e-9, "kind=%s tile=(%d,%d)", kind, tr.I, tr.J)
		}
	}
}

func TestAreaWeighted_MatchesExhaustiveScan(t *testing.T) {
	t.Parallel()

	d := referenceDivider(t, tiling.Superposition)
	prev := d.Next(tiling.FirstImage, nil)
	next := d.Next(tiling.FirstImage, prev)
	fillField(prev, swirl)
	New(AreaWeighted).Seed(prev, next)

	for _, tile := range next.Tiles() {
		var su, sv, sw float64
		fp := tile.Footprint()
		for _, p := range prev.Tiles() {
			inter := fp.Intersect(p.Footprint())
			if inter.Empty() {
				continue
			}
			w := float64(inter.Dx() * inter.Dy())
			pu, pv := p.Displacement()
			su += w * pu
			sv += w * pv
			sw += w
		}
		u, v := tile.Displacement()
		if sw == 0 {
			assert.Zero(t, u)
			assert.Zero(t, v)
			continue
		}
		assert.InDelta(t, su/sw, u, 1e-9, "tile=(%d,%d)", tile.IndexI, tile.IndexJ)
		assert.InDelta(t, sv/sw, v, 1e-9, "tile=(%d,%d)", tile.IndexI, tile.IndexJ)
	}
}

func TestAreaWeighted_ConstantFieldPreserved(t *testing.T) {
	t.Parallel()

	d := referenceDivider(t, tiling.NoSuperposition)
	prev := d.Next(tiling.FirstImage, nil)
	next := d.Next(tiling.FirstImage, prev)
	fillField(prev, func(_, _ float64) (float64, float64) { return 2.5, -1 })

	New(AreaWeighted).Seed(prev, next)
	for _, tile := range next.Tiles() {
		u, v := tile.Displacement()
		assert.InDelta(t, 2.5, u, 1e-12)
		assert.InDelta(t, -1.0, v, 1e-12)
	}
}

func TestAreaWeighted_TileOutsidePreviousCoverage(t *testing.T) {
	t.Parallel()

	prev := squareGrid(0, 128, 32, 32, 0, 2)
	next := squareGrid(1, 128, 16, 16, 0, 8)
	fillField(prev, func(_, _ float64) (float64, float64) { return 1, 1 })

	New(AreaWeighted).Seed(prev, next)

	u, v := next.Tile(7, 7).Displacement()
	assert.Zero(t, u)
	assert.Zero(t, v)
	u, _ = next.Tile(0, 0).Displacement()
	assert.Equal(t, 1.0, u)
}

// Level 0 -> level 1, then level 1's result fed into a synthetic level 2 of
// identical shape must come back unchanged.
func TestSeed_RoundTripIdenticalShape(t *testing.T) {
	t.Parallel()

	for _, method := range []Method{AreaWeighted, DistanceWeighted, BicubicSpline} {
		d := referenceDivider(t, tiling.NoSuperposition)
		level0 := d.Next(tiling.FirstImage, nil)
		level1 := d.Next(tiling.FirstImage, level0)
		fillField(level0, swirl)

		in := New(method)
		in.Seed(level0, level1)
		fillField(level1, func(x, y float64) (float64, float64) { return swirl(y, x) })

		level2 := tiling.NewIterationStepTiles(level1.GridShape)
		level2.Level = 2
		in.Seed(level1, level2)

		for k, tile := range level2.Tiles() {
			wantU, wantV := level1.Tiles()[k].Displacement()
			u, v := tile.Displacement()
			assert.InDelta(t, wantU, u, 1e-9, "method=%s tile=%d", method, k)
			assert.InDelta(t, wantV, v, 1e-9, "method=%s tile=%d", method, k)
		}
	}
}

func TestDistanceWeighted_CoincidentCentreIsExact(t *testing.T) {
	t.Parallel()

	// 32px tiles every 16px put a new 16px tile centre on every other previous centre.
	prev := squareGrid(0, 128, 32, 16, 0, 7)
	next := squareGrid(1, 128, 16, 16, 8, 7)
	fillField(prev, swirl)

	New(DistanceWeighted).Seed(prev, next)

	wantU, wantV := prev.Tile(2, 3).Displacement()
	u, v := next.Tile(2, 3).Displacement()
	assert.Equal(t, wantU, u)
	assert.Equal(t, wantV, v)
}

func TestDistanceWeighted_QuadrantAverage(t *testing.T) {
	t.Parallel()

	prev := squareGrid(0, 128, 32, 32, 0, 4)
	next := squareGrid(1, 128, 16, 16, 0, 8)
	fillField(prev, swirl)

	sink := &traceSink{}
	New(DistanceWeighted).WithTrace(sink, tiling.NewTraceSelector(
		tiling.TileKey{Level: 1, I: 1, J: 1},
		tiling.TileKey{Level: 1, I: 0, J: 0},
	)).Seed(prev, next)

	// next (1,1) is centred at (24,24): prev centres (16,16) (48,16) (16,48) (48,48)
	var wantU, wantV, wsum float64
	for _, c := range [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		px, py := prev.Tile(c[0], c[1]).Center()
		w := 1 / math.Hypot(px-24, py-24)
		pu, pv := prev.Tile(c[0], c[1]).Displacement()
		wantU += w * pu
		wantV += w * pv
		wsum += w
	}
	u, v := next.Tile(1, 1).Displacement()
	assert.InDelta(t, wantU/wsum, u, 1e-12)
	assert.InDelta(t, wantV/wsum, v, 1e-12)

	// next (0,0) is centred at (8,8), only prev (0,0) lies right/below it
	pu, pv := prev.Tile(0, 0).Displacement()
	u, v = next.Tile(0, 0).Displacement()
	assert.InDelta(t, pu, u, 1e-12)
	assert.InDelta(t, pv, v, 1e-12)

	require.Len(t, sink.traces, 2)
	for _, tr := range sink.traces {
		assert.Equal(t, "distance_weighted", tr.Method)
		if tr.I == 1 {
			assert.Len(t, tr.Contributions, 4)
		} else {
			assert.Len(t, tr.Contributions, 1)
		}
	}
}

func TestBicubicSpline_ReproducesLinearField(t *testing.T) {
	t.Parallel()

	linear := func(x, y float64) (float64, float64) { return 0.1*x - 0.05*y + 1, 0.02*x + 0.3*y - 2 }

	for _, n := range []int{6, 3} { // cubic, then bilinear fallback
		prev := squareGrid(0, 32*n, 32, 32, 0, n)
		next := squareGrid(1, 32*n, 16, 16, 0, 2*n)
		fillField(prev, linear)

		New(BicubicSpline).Seed(prev, next)

		for _, tile := range next.Tiles() {
			x, y := tile.Center()
			if x < 16 || y < 16 || x > float64(32*n-16) || y > float64(32*n-16) {
				continue // outside the hull of previous centres
			}
			wantU, wantV := linear(x, y)
			u, v := tile.Displacement()
			assert.InDelta(t, wantU, u, 1e-9, "n=%d at (%g,%g)", n, x, y)
			assert.InDelta(t, wantV, v, 1e-9, "n=%d at (%g,%g)", n, x, y)
		}
	}
}

func TestBicubicSpline_CubicAndBilinearDiffer(t *testing.T) {
	t.Parallel()

	// Each component varies along one axis only, so the surface reduces to a
	// 1D interpolant of c*c/1000 over the previous centres.
	square := func(x, y float64) (float64, float64) { return x * x / 1000, y * y / 1000 }

	t.Run("cubic from 6x6", func(t *testing.T) {
		prev := squareGrid(0, 192, 32, 32, 0, 6)
		next := squareGrid(1, 192, 16, 16, 0, 12)
		fillField(prev, square)
		New(BicubicSpline).Seed(prev, next)

		centres := []float64{16, 48, 80, 112, 144, 176}
		values := make([]float64, len(centres))
		for k, c := range centres {
			values[k] = c * c / 1000
		}
		var ref interp.NaturalCubic
		require.NoError(t, ref.Fit(centres, values))
		want := ref.Predict(104)

		tile := next.Tile(6, 6)
		x, y := tile.Center()
		require.Equal(t, 104.0, x)
		require.Equal(t, 104.0, y)
		u, v := tile.Displacement()
		assert.InDelta(t, want, u, 1e-9)
		assert.InDelta(t, want, v, 1e-9)

		// linear between 80 and 112 would give 11.008
		assert.Greater(t, math.Abs(u-11.008), 0.1)
	})

	t.Run("bilinear from 3x3", func(t *testing.T) {
		prev := squareGrid(0, 96, 32, 32, 0, 3)
		next := squareGrid(1, 96, 16, 16, 0, 6)
		fillField(prev, square)
		New(BicubicSpline).Seed(prev, next)

		tile := next.Tile(3, 3)
		x, y := tile.Center()
		require.Equal(t, 56.0, x)
		require.Equal(t, 56.0, y)

		// a quarter of the way from 2.304 at 48 to 6.4 at 80
		u, v := tile.Displacement()
		assert.InDelta(t, 3.328, u, 1e-9)
		assert.InDelta(t, 3.328, v, 1e-9)
	})
}

func TestBicubicSpline_SingleColumn(t *testing.T) {
	t.Parallel()

	prev := squareGrid(0, 32, 32, 32, 0, 1)
	next := squareGrid(1, 32, 16, 16, 0, 2)
	prev.Tile(0, 0).SetDisplacement(0.75, -0.5)

	New(BicubicSpline).Seed(prev, next)
	for _, tile := range next.Tiles() {
		u, v := tile.Displacement()
		assert.Equal(t, 0.75, u)
		assert.Equal(t, -0.5, v)
	}
}

func TestDirect_ZeroesDisplacements(t *testing.T) {
	t.Parallel()

	prev := squareGrid(0, 128, 32, 32, 0, 4)
	next := squareGrid(1, 128, 16, 16, 0, 8)
	fillField(prev, swirl)
	fillField(next, swirl)

	New(Direct).Seed(prev, next)
	for _, tile := range next.Tiles() {
		u, v := tile.Displacement()
		assert.Zero(t, u)
		assert.Zero(t, v)
	}
}

func TestSeed_LevelZeroWithoutPrevious(t *testing.T) {
	t.Parallel()

	next := squareGrid(0, 128, 32, 32, 0, 4)
	fillField(next, swirl)
	New(AreaWeighted).Seed(nil, next)
	u, _ := next.Tile(2, 2).Displacement()
	assert.Zero(t, u)
}

func TestSeed_SequencingViolationPanics(t *testing.T) {
	t.Parallel()

	prev := squareGrid(0, 128, 32, 32, 0, 4)
	skipped := squareGrid(2, 128, 16, 16, 0, 8)
	assert.Panics(t, func() { New(AreaWeighted).Seed(prev, skipped) })

	other := squareGrid(1, 128, 16, 16, 0, 8)
	other.Order = tiling.SecondImage
	assert.Panics(t, func() { New(DistanceWeighted).Seed(prev, other) })
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	for _, m := range []Method{Direct, AreaWeighted, DistanceWeighted, BicubicSpline} {
		got, err := ParseMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMethod("kriging")
	assert.Error(t, err)
}
