package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// RunStats accumulates per-frame counters from concurrent workers.
type RunStats struct {
	mu   sync.Mutex
	snap RunSnapshot
}

// RunSnapshot is a consistent copy of RunStats.
type RunSnapshot struct {
	Frames   int
	Levels   int
	Passes   int
	Rejected int
	Elapsed  time.Duration // summed over frames
	Slowest  time.Duration
}

// ObserveFrame adds one finished frame.
func (s *RunStats) ObserveFrame(levels, passes, rejected int, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Frames++
	s.snap.Levels += levels
	s.snap.Passes += passes
	s.snap.Rejected += rejected
	s.snap.Elapsed += elapsed
	if elapsed > s.snap.Slowest {
		s.snap.Slowest = elapsed
	}
}

// Snapshot returns the counters so far.
func (s *RunStats) Snapshot() RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// MeanFrameTime returns the average processing time per frame.
func (s RunSnapshot) MeanFrameTime() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Frames)
}

func (s RunSnapshot) String() string {
	return fmt.Sprintf("frames=%d levels=%d passes=%d rejected=%d mean=%s slowest=%s",
		s.Frames, s.Levels, s.Passes, s.Rejected, s.MeanFrameTime(), s.Slowest)
}
