// Package tiling owns the interrogation-area grids of the adaptive PIV engine.
//
// Responsibilities: per-axis grid geometry, the sequence of refinement
// levels (area division), tile displacement bookkeeping under a clipping
// policy, and recycling of level grids across frames.
// Key types: Tile, IterationStepTiles, AreaDivider, GridPool.
//
// Dependency rule: tiling never reads image pixels and never runs
// correlations. Velocity inheritance lives in internal/piv/inherit and the
// driving loop in internal/piv/pipeline.
package tiling
