package synthetic

import (
	"context"
	"math"

	"github.com/banshee-data/velocity.piv/internal/piv/pipeline"
	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
)

// Correlator answers each measurement with Gain times the remaining error
// between the true flow at the tile centre and the tile's current
// displacement. A Gain of 1 converges in one pass; smaller gains need the
// stability loop to re-iterate.
//
// When a frame's Payload is a Flow it replaces Flow for that frame.
type Correlator struct {
	Flow Flow
	Gain float64
}

// NewCorrelator returns a Correlator for flow with unit gain.
func NewCorrelator(flow Flow) *Correlator {
	return &Correlator{Flow: flow, Gain: 1}
}

// Measure implements pipeline.Correlator.
func (c *Correlator) Measure(ctx context.Context, frame pipeline.Frame, first, _ *tiling.Tile) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	flow := c.Flow
	if f, ok := frame.Payload.(Flow); ok {
		flow = f
	}

	x, y := first.Center()
	tu, tv := flow.Displacement(x, y)
	u, v := first.Displacement()
	return c.Gain * (tu - u), c.Gain * (tv - v), nil
}

// Frames returns n frames whose payload is flow scaled by a slow pulse, so
// consecutive frames differ.
func Frames(n int, flow Flow) []pipeline.Frame {
	frames := make([]pipeline.Frame, n)
	for k := range frames {
		frames[k] = pipeline.Frame{
			ID:      k,
			Payload: Scaled{Base: flow, Factor: 1 + 0.25*math.Sin(float64(k)*math.Pi/8)},
		}
	}
	return frames
}
