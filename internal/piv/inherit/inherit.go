// Package inherit seeds a refinement level's starting displacements from the
// finished displacements of the previous, coarser level.
package inherit

import (
	"fmt"

	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
	"gonum.org/v1/gonum/floats"
)

// Method selects the velocity inheritance algorithm.
type Method int

const (
	// Direct performs no inheritance; every tile starts at (0, 0).
	Direct Method = iota
	// AreaWeighted averages the previous tiles overlapping a new tile,
	// weighted by intersection area.
	AreaWeighted
	// DistanceWeighted averages the nearest previous tile centre in each
	// quadrant around the new tile centre, weighted by inverse distance.
	DistanceWeighted
	// BicubicSpline evaluates a cubic-spline surface through the previous
	// tile centres, falling back to bilinear on small grids.
	BicubicSpline
)

var methodNames = map[Method]string{
	Direct:           "direct",
	AreaWeighted:     "area_weighted",
	DistanceWeighted: "distance_weighted",
	BicubicSpline:    "bicubic_spline",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps a configuration name to a Method.
func ParseMethod(name string) (Method, error) {
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown velocity inheritance %q", name)
}

// Inheritor applies one inheritance method. It is immutable after setup and
// safe to share between frame workers.
type Inheritor struct {
	method Method
	sink   tiling.DiagnosticsSink
	trace  tiling.TraceSelector
}

// New returns an Inheritor for method.
func New(method Method) *Inheritor {
	return &Inheritor{method: method}
}

// WithTrace sends the weights of the selected tiles to sink.
func (in *Inheritor) WithTrace(sink tiling.DiagnosticsSink, sel tiling.TraceSelector) *Inheritor {
	in.sink = sink
	in.trace = sel
	return in
}

// Method returns the configured method.
func (in *Inheritor) Method() Method { return in.method }

// Seed overwrites every displacement of next with the value inherited from
// prev. Tiles with no eligible previous tile start at (0, 0). A nil prev
// (level 0) leaves every tile at (0, 0).
//
// prev must be the level directly before next for the same image; anything
// else is a sequencing bug in the caller and panics.
func (in *Inheritor) Seed(prev, next *tiling.IterationStepTiles) {
	next.ResetDisplacements()
	if prev == nil || in.method == Direct {
		return
	}
	if prev.Order != next.Order || prev.Level+1 != next.Level {
		panic(fmt.Sprintf("inherit: cannot seed %s level %d from %s level %d",
			next.Order, next.Level, prev.Order, prev.Level))
	}
	if prev.Len() == 0 {
		return
	}

	switch in.method {
	case AreaWeighted:
		in.seedWeighted(prev, next, areaContributions)
	case DistanceWeighted:
		in.seedWeighted(prev, next, distanceContributions)
	case BicubicSpline:
		in.seedSpline(prev, next)
	default:
		panic(fmt.Sprintf("inherit: unknown method %d", int(in.method)))
	}
}

type contributionFunc func(prev *tiling.IterationStepTiles, tile *tiling.Tile) []tiling.WeightContribution

func (in *Inheritor) seedWeighted(prev, next *tiling.IterationStepTiles, contributions contributionFunc) {
	tiles := next.Tiles()
	for k := range tiles {
		tile := &tiles[k]
		cs := contributions(prev, tile)
		if len(cs) == 0 {
			continue
		}
		normalise(cs)

		var u, v float64
		for _, c := range cs {
			pu, pv := prev.Tile(c.PrevI, c.PrevJ).Displacement()
			u += c.Weight * pu
			v += c.Weight * pv
		}
		tile.SetDisplacement(u, v)
		in.traceTile(next, tile, cs)
	}
}

// normalise scales the weights to sum to one.
func normalise(cs []tiling.WeightContribution) {
	ws := make([]float64, len(cs))
	for k, c := range cs {
		ws[k] = c.Weight
	}
	sum := floats.Sum(ws)
	if sum <= 0 {
		return
	}
	floats.Scale(1/sum, ws)
	for k := range cs {
		cs[k].Weight = ws[k]
	}
}

func (in *Inheritor) traceTile(next *tiling.IterationStepTiles, tile *tiling.Tile, cs []tiling.WeightContribution) {
	if in.sink == nil || !in.trace.Selected(next.Level, tile.IndexI, tile.IndexJ) {
		return
	}
	u, v := tile.Displacement()
	in.sink.RecordInheritance(tiling.InheritanceTrace{
		Order:         next.Order,
		Level:         next.Level,
		I:             tile.IndexI,
		J:             tile.IndexJ,
		Method:        in.method.String(),
		Contributions: append([]tiling.WeightContribution(nil), cs...),
		U:             u,
		V:             v,
	})
}
