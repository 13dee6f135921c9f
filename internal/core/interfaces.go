// Package core defines the identifiers, clock, sink and contract primitives
// shared by the frame metrics packages.
package core

import (
	"time"
)

// Sink receives every record the frame metrics emit. Implementations must be
// fast and must not call back into the emitting component.
type Sink interface {
	RecordDuration(name string, d time.Duration)
	RecordPercentage(name string, pct float64)
	RecordTrace(ev TraceEvent)
}

// TraceEvent is a sampled summary of one frame sequence.
type TraceEvent struct {
	ID        string
	Name      string
	Category  string
	Timestamp time.Time
	Args      map[string]any
}

// NullSink discards all records.
var NullSink Sink = nullSink{}

type nullSink struct{}

func (nullSink) RecordDuration(string, time.Duration) {}
func (nullSink) RecordPercentage(string, float64)     {}
func (nullSink) RecordTrace(TraceEvent)               {}

// MultiSink fans every record out to all sinks, in order.
type MultiSink []Sink

func (m MultiSink) RecordDuration(name string, d time.Duration) {
	for _, s := range m {
		s.RecordDuration(name, d)
	}
}

func (m MultiSink) RecordPercentage(name string, pct float64) {
	for _, s := range m {
		s.RecordPercentage(name, pct)
	}
}

func (m MultiSink) RecordTrace(ev TraceEvent) {
	for _, s := range m {
		s.RecordTrace(ev)
	}
}
