package tiling

import (
	"testing"

	"github.com/banshee-data/velocity.piv/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDivisionConfigFromRun_Defaults(t *testing.T) {
	cfg, err := DivisionConfigFromRun(config.MustLoadDefaultConfig())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, MixedSuperposition, cfg.Kind)
	assert.Equal(t, NoOutOfBoundClipping, cfg.Clipping)
	assert.Equal(t, 1600, cfg.ImageWidth)
	assert.Equal(t, 128, cfg.StartWidth)
}

func TestDivisionConfigFromRun_UnknownStrategy(t *testing.T) {
	name := "hexagonal"
	_, err := DivisionConfigFromRun(&config.RunConfig{AreaDivision: &name})
	assert.ErrorIs(t, err, ErrInvalidTilingParameters)

	clip := "wrap"
	_, err = DivisionConfigFromRun(&config.RunConfig{Clipping: &clip})
	assert.ErrorIs(t, err, ErrInvalidTilingParameters)
}

func TestTraceSelectorFromRun(t *testing.T) {
	cfg := &config.RunConfig{TraceTiles: []config.TraceTile{{Level: 1, I: 4, J: 5}}}
	s := TraceSelectorFromRun(cfg)
	assert.True(t, s.Selected(1, 4, 5))
	assert.Nil(t, TraceSelectorFromRun(&config.RunConfig{}))
}
