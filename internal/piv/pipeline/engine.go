// Package pipeline drives the refinement sequence of a frame: it asks the
// area divider for each level's grids, seeds them by velocity inheritance and
// hands every tile to a correlator until the stability rule is satisfied.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/velocity.piv/internal/piv/inherit"
	"github.com/banshee-data/velocity.piv/internal/piv/stability"
	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
	"github.com/banshee-data/velocity.piv/internal/timeutil"
)

// Frame is one image pair. Payload is opaque to the engine and is passed
// through to the Correlator.
type Frame struct {
	ID      int
	Payload interface{}
}

// Correlator measures the displacement correction of a tile pair. first and
// second are the same tile of the first- and second-image grids; the returned
// (du, dv) is accumulated into both.
type Correlator interface {
	Measure(ctx context.Context, frame Frame, first, second *tiling.Tile) (du, dv float64, err error)
}

// CorrelatorFunc adapts a function to the Correlator interface.
type CorrelatorFunc func(ctx context.Context, frame Frame, first, second *tiling.Tile) (float64, float64, error)

func (f CorrelatorFunc) Measure(ctx context.Context, frame Frame, first, second *tiling.Tile) (float64, float64, error) {
	return f(ctx, frame, first, second)
}

// LevelSummary describes how one level of a frame went.
type LevelSummary struct {
	Level      int
	TileWidth  int
	TileHeight int
	Tiles      int
	Passes     int // correlation passes until every tile was stable
	Rejected   int // updates refused by the clipping policy
}

// Result is the finished last level of a frame. The grids belong to the
// caller until the Result is passed to Engine.Release.
type Result struct {
	Frame  Frame
	First  *tiling.IterationStepTiles
	Second *tiling.IterationStepTiles
	Levels []LevelSummary

	Elapsed time.Duration
}

// Passes returns the correlation passes summed over all levels.
func (r *Result) Passes() int {
	n := 0
	for _, s := range r.Levels {
		n += s.Passes
	}
	return n
}

// Rejected returns the clipped updates summed over all levels.
func (r *Result) Rejected() int {
	n := 0
	for _, s := range r.Levels {
		n += s.Rejected
	}
	return n
}

// Engine runs frames through the refinement sequence. It holds no per-frame
// state and may be shared by concurrent workers.
type Engine struct {
	divider    *tiling.AreaDivider
	inheritor  *inherit.Inheritor
	criterion  stability.Criterion
	correlator Correlator
	clock      timeutil.Clock
}

// NewEngine assembles an engine from its strategies.
func NewEngine(divider *tiling.AreaDivider, inheritor *inherit.Inheritor,
	criterion stability.Criterion, correlator Correlator) *Engine {
	return &Engine{
		divider:    divider,
		inheritor:  inheritor,
		criterion:  criterion,
		correlator: correlator,
		clock:      timeutil.RealClock{},
	}
}

// WithClock replaces the clock used to time frames.
func (e *Engine) WithClock(clock timeutil.Clock) *Engine {
	e.clock = clock
	return e
}

// Divider returns the engine's area divider.
func (e *Engine) Divider() *tiling.AreaDivider { return e.divider }

// ProcessFrame runs every level of frame. Cancellation is checked before each
// level and each pass; the grids of an abandoned frame are returned to the
// pool. A frame whose level 0 does not fit the image yields a Result without
// grids.
func (e *Engine) ProcessFrame(ctx context.Context, frame Frame) (*Result, error) {
	pool := e.divider.Pool()
	var first, second *tiling.IterationStepTiles
	releaseCurrent := func() {
		pool.Release(first)
		pool.Release(second)
	}

	start := e.clock.Now()
	res := &Result{Frame: frame}
	for {
		if err := ctx.Err(); err != nil {
			releaseCurrent()
			return nil, fmt.Errorf("frame %d: %w", frame.ID, err)
		}

		nextFirst := e.divider.Next(tiling.FirstImage, first)
		if nextFirst == nil {
			break
		}
		nextSecond := e.divider.Next(tiling.SecondImage, second)

		e.inheritor.Seed(first, nextFirst)
		e.inheritor.Seed(second, nextSecond)
		releaseCurrent()
		first, second = nextFirst, nextSecond

		summary, err := e.correlate(ctx, frame, first, second)
		if err != nil {
			releaseCurrent()
			return nil, fmt.Errorf("frame %d level %d: %w", frame.ID, first.Level, err)
		}
		res.Levels = append(res.Levels, summary)
		tracef("frame %d level %d: %d tiles of %dx%d, %d passes, %d rejected",
			frame.ID, summary.Level, summary.Tiles, summary.TileWidth, summary.TileHeight,
			summary.Passes, summary.Rejected)
	}

	if first == nil {
		opsf("frame %d: level 0 does not fit the image", frame.ID)
	}
	res.First, res.Second = first, second
	res.Elapsed = e.clock.Since(start)
	hits, misses := e.divider.Pool().Stats()
	diagf("frame %d finished after %d levels in %s, pool hits=%d misses=%d",
		frame.ID, len(res.Levels), res.Elapsed, hits, misses)
	return res, nil
}

// correlate measures every tile of a level until the stability criterion
// holds for all of them. Only unstable tiles are measured again.
func (e *Engine) correlate(ctx context.Context, frame Frame, first, second *tiling.IterationStepTiles) (LevelSummary, error) {
	s := LevelSummary{
		Level:      first.Level,
		TileWidth:  first.TileWidth,
		TileHeight: first.TileHeight,
		Tiles:      first.Len(),
	}

	firstTiles, secondTiles := first.Tiles(), second.Tiles()
	pending := make([]int, len(firstTiles))
	for k := range pending {
		pending[k] = k
	}

	for iteration := 1; len(pending) > 0; iteration++ {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		s.Passes = iteration

		unstable := pending[:0]
		for _, k := range pending {
			a, b := &firstTiles[k], &secondTiles[k]
			du, dv, err := e.correlator.Measure(ctx, frame, a, b)
			if err != nil {
				return s, fmt.Errorf("tile (%d,%d): %w", a.IndexI, a.IndexJ, err)
			}
			if !a.AccumulateDisplacement(du, dv) {
				s.Rejected++
			}
			b.AccumulateDisplacement(du, dv)
			if !e.criterion.IsStable(a, iteration) {
				unstable = append(unstable, k)
			}
		}
		pending = unstable
	}
	return s, nil
}

// Release returns a result's grids to the pool. The result must not be used
// afterwards.
func (e *Engine) Release(res *Result) {
	if res == nil {
		return
	}
	pool := e.divider.Pool()
	pool.Release(res.First)
	pool.Release(res.Second)
	res.First, res.Second = nil, nil
}
