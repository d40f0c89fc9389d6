// Package stability decides when a tile's displacement at a refinement level
// has converged and no further correlation passes are needed.
package stability

import (
	"fmt"
	"math"

	"github.com/banshee-data/velocity.piv/internal/config"
	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
)

// Kind selects the stability rule.
type Kind int

const (
	// Simple accepts every tile after the first pass at a level.
	Simple Kind = iota
	// MaxDisplacement accepts a tile once its last update is smaller than a
	// pixel threshold or the iteration cap is reached.
	MaxDisplacement
)

var kindNames = map[Kind]string{
	Simple:          "simple",
	MaxDisplacement: "max_displacement",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown stability %q", name)
}

// Criterion is a configured stability rule.
type Criterion struct {
	Kind Kind

	// MaxDisplacementPx is the update magnitude, in pixels, below which a
	// tile counts as converged. Used by MaxDisplacement only.
	MaxDisplacementPx float64

	// MaxIterations caps the passes per level. Used by MaxDisplacement only.
	MaxIterations int
}

// Validate checks the thresholds of the selected rule.
func (c Criterion) Validate() error {
	if _, ok := kindNames[c.Kind]; !ok {
		return fmt.Errorf("unknown stability %d", int(c.Kind))
	}
	if c.Kind != MaxDisplacement {
		return nil
	}
	if c.MaxDisplacementPx < 0 || math.IsNaN(c.MaxDisplacementPx) {
		return fmt.Errorf("max displacement must be non-negative, got %g", c.MaxDisplacementPx)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	return nil
}

// IsStable reports whether tile needs no further pass at its level after
// iteration passes (1 after the first correlation). Before any pass a tile is
// never stable.
func (c Criterion) IsStable(tile *tiling.Tile, iteration int) bool {
	if iteration < 1 {
		return false
	}
	switch c.Kind {
	case MaxDisplacement:
		if iteration >= c.MaxIterations {
			return true
		}
		du, dv := tile.LastUpdate()
		return math.Hypot(du, dv) < c.MaxDisplacementPx
	default:
		return true
	}
}

// CriterionFromRun builds a Criterion from a loaded RunConfig.
func CriterionFromRun(cfg *config.RunConfig) (Criterion, error) {
	kind, err := ParseKind(cfg.GetStability())
	if err != nil {
		return Criterion{}, err
	}
	c := Criterion{
		Kind:              kind,
		MaxDisplacementPx: cfg.GetMaxDisplacementPx(),
		MaxIterations:     cfg.GetMaxStabilityIterations(),
	}
	if err := c.Validate(); err != nil {
		return Criterion{}, err
	}
	return c, nil
}
