package tiling

import (
	"fmt"
	"strings"
)

// ClippingEvent records a displacement update that moved a tile's sampled
// patch outside the image and was kept under LoggedOutOfBoundClipping.
type ClippingEvent struct {
	Order     ImageOrder
	Level     int
	I, J      int
	LeftPixel int
	TopPixel  int
	U, V      float64 // displacement before the update
	DU, DV    float64 // offending update
}

// WeightContribution is one previous-level tile's share of an inherited
// displacement.
type WeightContribution struct {
	PrevI  int     `json:"prev_i"`
	PrevJ  int     `json:"prev_j"`
	Weight float64 `json:"weight"`
}

// InheritanceTrace describes how a tile's starting displacement was seeded.
type InheritanceTrace struct {
	Order         ImageOrder
	Level         int
	I, J          int
	Method        string
	Contributions []WeightContribution
	U, V          float64
}

// DiagnosticsSink receives clipping records and inheritance traces.
// Implementations must be safe for concurrent use when frames run in parallel.
type DiagnosticsSink interface {
	RecordClipping(ev ClippingEvent)
	RecordInheritance(tr InheritanceTrace)
}

// LogSink writes diagnostics to the tiling trace stream.
type LogSink struct{}

// RecordClipping implements DiagnosticsSink.
func (LogSink) RecordClipping(ev ClippingEvent) {
	tracef("clipping order=%s level=%d tile=(%d,%d) at=(%d,%d) uv=(%.3f,%.3f) update=(%.3f,%.3f)",
		ev.Order, ev.Level, ev.I, ev.J, ev.LeftPixel, ev.TopPixel, ev.U, ev.V, ev.DU, ev.DV)
}

// RecordInheritance implements DiagnosticsSink.
func (LogSink) RecordInheritance(tr InheritanceTrace) {
	var b strings.Builder
	for k, c := range tr.Contributions {
		if k > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "(%d,%d)=%.4f", c.PrevI, c.PrevJ, c.Weight)
	}
	tracef("inherit order=%s level=%d tile=(%d,%d) method=%s uv=(%.3f,%.3f) weights=[%s]",
		tr.Order, tr.Level, tr.I, tr.J, tr.Method, tr.U, tr.V, b.String())
}

// MultiSink fans diagnostics out to several sinks.
type MultiSink []DiagnosticsSink

// RecordClipping implements DiagnosticsSink.
func (m MultiSink) RecordClipping(ev ClippingEvent) {
	for _, s := range m {
		s.RecordClipping(ev)
	}
}

// RecordInheritance implements DiagnosticsSink.
func (m MultiSink) RecordInheritance(tr InheritanceTrace) {
	for _, s := range m {
		s.RecordInheritance(tr)
	}
}

// TileKey identifies a tile by level and grid coordinate.
type TileKey struct {
	Level int `json:"level"`
	I     int `json:"i"`
	J     int `json:"j"`
}

// TraceSelector is the set of tiles whose inheritance weights are traced.
type TraceSelector map[TileKey]struct{}

// NewTraceSelector builds a selector from a list of keys.
func NewTraceSelector(keys ...TileKey) TraceSelector {
	if len(keys) == 0 {
		return nil
	}
	s := make(TraceSelector, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Selected reports whether the tile at (level, i, j) is traced.
func (s TraceSelector) Selected(level, i, j int) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[TileKey{Level: level, I: i, J: j}]
	return ok
}
