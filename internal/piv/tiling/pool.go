package tiling

import "sync"

// GridPool recycles level grids across frames. A grid handed out by Acquire
// belongs to the caller until it is passed back with Release; the pool only
// ever returns a buffer whose shape matches the request exactly, so tile
// identity (the same backing array) survives from frame to frame.
//
// A nil *GridPool is valid and simply allocates. The zero value is an empty
// pool ready for use.
type GridPool struct {
	mu     sync.Mutex
	free   map[GridShape][]*IterationStepTiles
	hits   int
	misses int
}

// NewGridPool creates an empty pool.
func NewGridPool() *GridPool {
	return &GridPool{free: make(map[GridShape][]*IterationStepTiles)}
}

// Acquire returns a grid of the requested shape with zeroed displacements,
// reusing a released buffer when one is available.
func (p *GridPool) Acquire(shape GridShape) *IterationStepTiles {
	if p == nil {
		return NewIterationStepTiles(shape)
	}

	p.mu.Lock()
	list := p.free[shape]
	if n := len(list); n > 0 {
		g := list[n-1]
		list[n-1] = nil
		p.free[shape] = list[:n-1]
		p.hits++
		p.mu.Unlock()

		g.pooled = false
		g.Level, g.MaxAdaptiveSteps = 0, 0
		g.Sink = nil
		g.ResetDisplacements()
		return g
	}
	p.misses++
	p.mu.Unlock()

	return NewIterationStepTiles(shape)
}

// Release hands a grid back to the pool. The caller must not touch the grid
// afterwards. Releasing the same grid twice panics.
func (p *GridPool) Release(g *IterationStepTiles) {
	if p == nil || g == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if g.pooled {
		panic("tiling: grid released twice")
	}
	g.pooled = true
	if p.free == nil {
		p.free = make(map[GridShape][]*IterationStepTiles)
	}
	p.free[g.GridShape] = append(p.free[g.GridShape], g)
}

// Stats returns the number of Acquire calls served from the pool and the
// number that had to allocate.
func (p *GridPool) Stats() (hits, misses int) {
	if p == nil {
		return 0, 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}
