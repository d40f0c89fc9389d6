package pipeline

import (
	"github.com/banshee-data/velocity.piv/internal/config"
	"github.com/banshee-data/velocity.piv/internal/piv/inherit"
	"github.com/banshee-data/velocity.piv/internal/piv/stability"
	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
)

// EngineFromRun builds an engine from a RunConfig. Grids come from a fresh
// GridPool and clipping records and selected inheritance traces go to sink,
// which may be nil.
func EngineFromRun(cfg *config.RunConfig, correlator Correlator, sink tiling.DiagnosticsSink) (*Engine, error) {
	division, err := tiling.DivisionConfigFromRun(cfg)
	if err != nil {
		return nil, err
	}
	divider, err := tiling.NewAreaDivider(division)
	if err != nil {
		return nil, err
	}
	divider.WithPool(tiling.NewGridPool()).WithSink(sink)

	method, err := inherit.ParseMethod(cfg.GetVelocityInheritance())
	if err != nil {
		return nil, err
	}
	inheritor := inherit.New(method)
	if sink != nil {
		inheritor.WithTrace(sink, tiling.TraceSelectorFromRun(cfg))
	}

	criterion, err := stability.CriterionFromRun(cfg)
	if err != nil {
		return nil, err
	}
	return NewEngine(divider, inheritor, criterion, correlator), nil
}
