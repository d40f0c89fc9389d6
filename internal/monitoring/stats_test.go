package monitoring

import (
	"sync"
	"testing"
	"time"
)

func TestRunStats_ObserveFrame(t *testing.T) {
	var s RunStats
	s.ObserveFrame(4, 9, 1, 20*time.Millisecond)
	s.ObserveFrame(3, 3, 0, 40*time.Millisecond)

	got := s.Snapshot()
	want := RunSnapshot{Frames: 2, Levels: 7, Passes: 12, Rejected: 1, Elapsed: 60 * time.Millisecond, Slowest: 40 * time.Millisecond}
	if got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
	if m := got.MeanFrameTime(); m != 30*time.Millisecond {
		t.Errorf("MeanFrameTime() = %s, want 30ms", m)
	}
}

func TestRunStats_Empty(t *testing.T) {
	var s RunStats
	if m := s.Snapshot().MeanFrameTime(); m != 0 {
		t.Errorf("MeanFrameTime() of empty stats = %s, want 0", m)
	}
}

func TestRunStats_Concurrent(t *testing.T) {
	var s RunStats
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				s.ObserveFrame(1, 1, 0, time.Microsecond)
			}
		}()
	}
	wg.Wait()

	if f := s.Snapshot().Frames; f != 400 {
		t.Errorf("Frames = %d, want 400", f)
	}
}
