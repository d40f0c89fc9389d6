// Package synthetic provides analytic displacement fields and a correlator
// that measures them exactly. It stands in for image cross-correlation in the
// CLI and in tests.
package synthetic

import (
	"fmt"
	"math"
)

// Flow is a displacement field in pixels between the two images of a pair.
type Flow interface {
	Displacement(x, y float64) (u, v float64)
}

// Uniform moves every pixel by (U, V).
type Uniform struct {
	U, V float64
}

func (f Uniform) Displacement(_, _ float64) (float64, float64) { return f.U, f.V }

// Shear is a horizontal shear layer: u grows linearly with the distance from
// the row CenterY, v is zero.
type Shear struct {
	CenterY float64
	Rate    float64 // pixels of u per pixel of y
}

func (f Shear) Displacement(_, y float64) (float64, float64) {
	return f.Rate * (y - f.CenterY), 0
}

// Vortex is a Rankine vortex: solid-body rotation inside Core, decaying as
// 1/r outside it. Peak is the tangential displacement at r = Core.
type Vortex struct {
	CenterX, CenterY float64
	Core             float64
	Peak             float64
}

func (f Vortex) Displacement(x, y float64) (float64, float64) {
	dx, dy := x-f.CenterX, y-f.CenterY
	r := math.Hypot(dx, dy)
	if r == 0 || f.Core <= 0 {
		return 0, 0
	}
	tangential := f.Peak * r / f.Core
	if r > f.Core {
		tangential = f.Peak * f.Core / r
	}
	return -tangential * dy / r, tangential * dx / r
}

// Scaled multiplies another flow by Factor.
type Scaled struct {
	Base   Flow
	Factor float64
}

func (f Scaled) Displacement(x, y float64) (float64, float64) {
	u, v := f.Base.Displacement(x, y)
	return f.Factor * u, f.Factor * v
}

// FlowNames lists the names ParseFlow accepts.
var FlowNames = []string{"uniform", "shear", "vortex"}

// ParseFlow builds a named flow sized for a width x height image, with peak
// displacements of a few pixels.
func ParseFlow(name string, width, height int) (Flow, error) {
	w, h := float64(width), float64(height)
	switch name {
	case "uniform":
		return Uniform{U: 2.5, V: -1.25}, nil
	case "shear":
		return Shear{CenterY: h / 2, Rate: 4 / h}, nil
	case "vortex":
		return Vortex{CenterX: w / 2, CenterY: h / 2, Core: math.Min(w, h) / 4, Peak: 3}, nil
	default:
		return nil, fmt.Errorf("unknown flow %q (want one of %v)", name, FlowNames)
	}
}
