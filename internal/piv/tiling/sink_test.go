package tiling

import "sync"

// recordingSink collects diagnostics for assertions.
type recordingSink struct {
	mu       sync.Mutex
	clipping []ClippingEvent
	traces   []InheritanceTrace
}

func (s *recordingSink) RecordClipping(ev ClippingEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clipping = append(s.clipping, ev)
}

func (s *recordingSink) RecordInheritance(tr InheritanceTrace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = append(s.traces, tr)
}
