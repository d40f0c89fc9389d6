package tiling

import "github.com/banshee-data/velocity.piv/internal/config"

// DivisionConfigFromRun builds a DivisionConfig from a loaded RunConfig.
// Strategy names are parsed here; geometry is validated by NewAreaDivider.
func DivisionConfigFromRun(cfg *config.RunConfig) (DivisionConfig, error) {
	kind, err := ParseDivisionKind(cfg.GetAreaDivision())
	if err != nil {
		return DivisionConfig{}, err
	}
	clipping, err := ParseClippingPolicy(cfg.GetClipping())
	if err != nil {
		return DivisionConfig{}, err
	}

	return DivisionConfig{
		ImageWidth:              cfg.GetImageWidth(),
		ImageHeight:             cfg.GetImageHeight(),
		MarginTop:               cfg.GetMarginTop(),
		MarginBottom:            cfg.GetMarginBottom(),
		MarginLeft:              cfg.GetMarginLeft(),
		MarginRight:             cfg.GetMarginRight(),
		StartWidth:              cfg.GetStartIAWidth(),
		StartHeight:             cfg.GetStartIAHeight(),
		EndWidth:                cfg.GetEndIAWidth(),
		EndHeight:               cfg.GetEndIAHeight(),
		OverlapFactor:           cfg.GetOverlapFactor(),
		SuperpositionStartLevel: cfg.GetSuperpositionStartLevel(),
		Kind:                    kind,
		Clipping:                clipping,
	}, nil
}

// TraceSelectorFromRun builds the inheritance trace selector from the
// trace_tiles list of a RunConfig.
func TraceSelectorFromRun(cfg *config.RunConfig) TraceSelector {
	keys := make([]TileKey, 0, len(cfg.TraceTiles))
	for _, t := range cfg.TraceTiles {
		keys = append(keys, TileKey{Level: t.Level, I: t.I, J: t.J})
	}
	return NewTraceSelector(keys...)
}
