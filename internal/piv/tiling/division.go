package tiling

import (
	"errors"
	"fmt"
)

// ErrInvalidTilingParameters is returned (wrapped) for configurations that
// cannot produce a refinement sequence.
var ErrInvalidTilingParameters = errors.New("invalid tiling parameters")

// DivisionKind selects how tiles of a level are spaced.
type DivisionKind int

const (
	// NoSuperposition places tiles edge to edge at every level.
	NoSuperposition DivisionKind = iota
	// Superposition overlaps tiles at every level.
	Superposition
	// MixedSuperposition abuts tiles before SuperpositionStartLevel and
	// overlaps them from that level on.
	MixedSuperposition
)

var divisionNames = map[DivisionKind]string{
	NoSuperposition:    "no_superposition",
	Superposition:      "superposition",
	MixedSuperposition: "mixed_superposition",
}

func (k DivisionKind) String() string {
	if name, ok := divisionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("DivisionKind(%d)", int(k))
}

// ParseDivisionKind maps a configuration name to a DivisionKind.
func ParseDivisionKind(name string) (DivisionKind, error) {
	for k, n := range divisionNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown area division %q", ErrInvalidTilingParameters, name)
}

// DivisionConfig is the read-only snapshot the area divider works from.
type DivisionConfig struct {
	ImageWidth  int
	ImageHeight int

	MarginTop    int
	MarginBottom int
	MarginLeft   int
	MarginRight  int

	StartWidth  int // interrogation-area width at level 0
	StartHeight int // interrogation-area height at level 0
	EndWidth    int // smallest interrogation-area width
	EndHeight   int // smallest interrogation-area height

	OverlapFactor           float64 // step as a fraction of tile size, in (0, 1]
	SuperpositionStartLevel int     // first overlapping level for MixedSuperposition

	Kind     DivisionKind
	Clipping ClippingPolicy
}

// Validate checks the configuration. Every failure wraps
// ErrInvalidTilingParameters.
func (c DivisionConfig) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidTilingParameters, fmt.Sprintf(format, args...))
	}

	if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
		return invalid("image size must be positive, got %dx%d", c.ImageWidth, c.ImageHeight)
	}
	if c.MarginTop < 0 || c.MarginBottom < 0 || c.MarginLeft < 0 || c.MarginRight < 0 {
		return invalid("margins must be non-negative, got l=%d r=%d t=%d b=%d",
			c.MarginLeft, c.MarginRight, c.MarginTop, c.MarginBottom)
	}
	if c.MarginLeft+c.MarginRight >= c.ImageWidth {
		return invalid("horizontal margins %d+%d exceed image width %d", c.MarginLeft, c.MarginRight, c.ImageWidth)
	}
	if c.MarginTop+c.MarginBottom >= c.ImageHeight {
		return invalid("vertical margins %d+%d exceed image height %d", c.MarginTop, c.MarginBottom, c.ImageHeight)
	}
	if c.StartWidth <= 0 || c.StartHeight <= 0 || c.EndWidth <= 0 || c.EndHeight <= 0 {
		return invalid("interrogation-area sizes must be positive, got start %dx%d end %dx%d",
			c.StartWidth, c.StartHeight, c.EndWidth, c.EndHeight)
	}
	if c.EndWidth > c.StartWidth || c.EndHeight > c.StartHeight {
		return invalid("end size %dx%d larger than start size %dx%d",
			c.EndWidth, c.EndHeight, c.StartWidth, c.StartHeight)
	}
	if c.OverlapFactor <= 0 || c.OverlapFactor > 1 {
		return invalid("overlap factor must be in (0, 1], got %g", c.OverlapFactor)
	}
	if c.SuperpositionStartLevel < 0 {
		return invalid("superposition start level must be non-negative, got %d", c.SuperpositionStartLevel)
	}
	if _, ok := divisionNames[c.Kind]; !ok {
		return invalid("unknown area division %d", int(c.Kind))
	}
	if _, ok := clippingNames[c.Clipping]; !ok {
		return invalid("unknown clipping policy %d", int(c.Clipping))
	}
	if last := c.levelCount() - 1; c.overlapsAt(last) {
		w, h := c.StartWidth>>uint(last), c.StartHeight>>uint(last)
		if StepPixels(w, c.OverlapFactor) < 1 || StepPixels(h, c.OverlapFactor) < 1 {
			return invalid("overlap factor %g gives no step for %dx%d tiles", c.OverlapFactor, w, h)
		}
	}
	return nil
}

// levelCount is the number of levels both axes can halve through.
func (c DivisionConfig) levelCount() int {
	steps := AdaptiveSteps(c.StartWidth, c.EndWidth)
	if s := AdaptiveSteps(c.StartHeight, c.EndHeight); s < steps {
		steps = s
	}
	return steps
}

// overlapsAt reports whether tiles at level are placed with the overlap
// factor rather than abutting.
func (c DivisionConfig) overlapsAt(level int) bool {
	switch c.Kind {
	case Superposition:
		return true
	case MixedSuperposition:
		return level >= c.SuperpositionStartLevel
	}
	return false
}

// AdaptiveSteps returns floor(log2(start/end)) + 1 for positive sizes with
// end <= start: the number of halvings of start that stay at or above end,
// plus the starting level itself.
func AdaptiveSteps(start, end int) int {
	steps := 1
	for size := start / 2; size >= end; size /= 2 {
		steps++
	}
	return steps
}

// AreaDivider produces the grid of each refinement level. Tile size starts at
// the configured start size and halves per level until the end size would be
// undercut or the tiles no longer fit the image.
//
// The divider holds no per-frame state: the level is derived from the
// previous grid, so one divider serves both images of a pair and any number
// of concurrent frames.
type AreaDivider struct {
	cfg      DivisionConfig
	maxSteps int
	pool     *GridPool
	sink     DiagnosticsSink
}

// NewAreaDivider validates cfg and computes the number of levels.
func NewAreaDivider(cfg DivisionConfig) (*AreaDivider, error) {
	if err := cfg.Validate(); err != nil {
		opsf("rejecting division config: %v", err)
		return nil, err
	}
	return &AreaDivider{cfg: cfg, maxSteps: cfg.levelCount()}, nil
}

// WithPool makes the divider draw grids from pool.
func (d *AreaDivider) WithPool(pool *GridPool) *AreaDivider {
	d.pool = pool
	return d
}

// WithSink attaches a diagnostics sink to every grid the divider produces.
func (d *AreaDivider) WithSink(sink DiagnosticsSink) *AreaDivider {
	d.sink = sink
	return d
}

// Config returns the divider configuration.
func (d *AreaDivider) Config() DivisionConfig { return d.cfg }

// MaxAdaptiveSteps returns the number of levels of the refinement sequence.
func (d *AreaDivider) MaxAdaptiveSteps() int { return d.maxSteps }

// Pool returns the pool grids are drawn from, or nil.
func (d *AreaDivider) Pool() *GridPool { return d.pool }

// TileSize returns the interrogation-area size used at level.
func (d *AreaDivider) TileSize(level int) (width, height int) {
	return d.cfg.StartWidth >> uint(level), d.cfg.StartHeight >> uint(level)
}

// Steps returns the horizontal and vertical step pixels used at level.
func (d *AreaDivider) Steps(level int) (horizontal, vertical int) {
	w, h := d.TileSize(level)
	if !d.cfg.overlapsAt(level) {
		return w, h
	}
	return StepPixels(w, d.cfg.OverlapFactor), StepPixels(h, d.cfg.OverlapFactor)
}

// Next returns the grid following prev for the given image, or nil when the
// refinement sequence is complete. Pass nil for prev to obtain level 0.
// prev must have been produced by this divider for the same image order.
func (d *AreaDivider) Next(order ImageOrder, prev *IterationStepTiles) *IterationStepTiles {
	level := 0
	if prev != nil {
		if prev.Order != order {
			panic(fmt.Sprintf("tiling: previous grid is for the %s image, want %s", prev.Order, order))
		}
		level = prev.Level + 1
	}
	if level >= d.maxSteps {
		return nil
	}

	shape, ok := d.Shape(order, level)
	if !ok {
		diagf("level %d does not fit %dx%d image, stopping after %d levels",
			level, d.cfg.ImageWidth, d.cfg.ImageHeight, level)
		return nil
	}

	g := d.pool.Acquire(shape)
	g.Level = level
	g.MaxAdaptiveSteps = d.maxSteps
	g.Clipping = d.cfg.Clipping
	g.Sink = d.sink
	diagf("%s", g)
	return g
}

// Shape computes the grid shape of a level. ok is false when the level's
// tiles do not fit between the margins.
func (d *AreaDivider) Shape(order ImageOrder, level int) (shape GridShape, ok bool) {
	w, h := d.TileSize(level)
	hs, vs := d.Steps(level)
	c := d.cfg

	cols, ok := ComputeAxis(c.ImageWidth, c.MarginLeft, c.MarginRight, w, hs)
	if !ok {
		return GridShape{}, false
	}
	rows, ok := ComputeAxis(c.ImageHeight, c.MarginTop, c.MarginBottom, h, vs)
	if !ok {
		return GridShape{}, false
	}

	return GridShape{
		Order:            order,
		ImageWidth:       c.ImageWidth,
		ImageHeight:      c.ImageHeight,
		TileWidth:        w,
		TileHeight:       h,
		HorizontalStep:   hs,
		VerticalStep:     vs,
		MarginLeft:       cols.MarginNear,
		MarginRight:      cols.MarginFar,
		MarginTop:        rows.MarginNear,
		MarginBottom:     rows.MarginFar,
		NumberOfTilesInI: rows.TileCount,
		NumberOfTilesInJ: cols.TileCount,
	}, true
}
