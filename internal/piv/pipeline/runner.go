package pipeline

import (
	"context"
	"sync"
)

// Runner processes independent frames on a fixed number of workers. Each
// worker owns the grids of the frame it is working on; only the engine's
// grid pool is shared.
type Runner struct {
	Engine  *Engine
	Workers int
}

// Run processes frames until all are done, ctx is cancelled or a frame or the
// handler fails; the first error cancels the remaining frames and is
// returned. handle is called serially in completion order. The result's grids
// are released when handle returns, so handle must copy anything it keeps.
func (r *Runner) Run(ctx context.Context, frames []Frame, handle func(*Result) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(frames) {
		workers = len(frames)
	}

	var (
		once     sync.Once
		firstErr error
		handleMu sync.Mutex
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	jobs := make(chan Frame)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for frame := range jobs {
				res, err := r.Engine.ProcessFrame(ctx, frame)
				if err != nil {
					opsf("frame %d failed: %v", frame.ID, err)
					fail(err)
					continue
				}

				handleMu.Lock()
				if ctx.Err() == nil {
					err = handle(res)
				}
				handleMu.Unlock()
				r.Engine.Release(res)
				if err != nil {
					fail(err)
				}
			}
		}()
	}

feed:
	for _, frame := range frames {
		select {
		case jobs <- frame:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
