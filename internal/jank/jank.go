// Package jank detects perceptible stutter in a sequence of presentations.
//
// A presentation is janky when its gap to the previous presentation exceeds
// the previous gap by more than half a vsync interval.
package jank

import (
	"time"

	"framemeter/internal/core"
	"framemeter/internal/seqtype"
)

const jankThresholdFraction = 0.5

// Metrics counts jank for one (sequence type, thread) pair.
type Metrics struct {
	seqType seqtype.Type
	thread  seqtype.Thread

	jankCount uint32
	maxStale  time.Duration

	lastPresentation time.Time
	prevGap          time.Duration
	hasPrevGap       bool
}

func New(t seqtype.Type, thread seqtype.Thread) *Metrics {
	return &Metrics{seqType: t, thread: thread}
}

// AddPresentedFrame records a presentation at t. Out-of-order presentations
// are dropped.
func (m *Metrics) AddPresentedFrame(t time.Time, interval time.Duration) {
	if t.IsZero() {
		return
	}
	if m.lastPresentation.IsZero() {
		m.lastPresentation = t
		return
	}
	if !t.After(m.lastPresentation) {
		return
	}
	if interval <= 0 {
		interval = core.DefaultInterval
	}

	gap := t.Sub(m.lastPresentation)
	threshold := time.Duration(jankThresholdFraction * float64(interval))
	if m.hasPrevGap && gap > m.prevGap+threshold {
		m.jankCount++
	}
	if stale := gap - interval; stale > m.maxStale {
		m.maxStale = stale
	}

	m.lastPresentation = t
	m.prevGap = gap
	m.hasPrevGap = true
}

// ReportJankMetrics emits the jank percent against framesExpected and the
// maximum staleness, then clears the counts. Sequence types that never report
// jank emit nothing.
func (m *Metrics) ReportJankMetrics(sink core.Sink, framesExpected uint32) {
	if !m.seqType.ReportsJank() || framesExpected == 0 {
		return
	}

	count := m.jankCount
	if !core.Checkf(count <= framesExpected, "jank count %d exceeds %d expected frames for %v", count, framesExpected, m.seqType) {
		count = framesExpected
	}
	pct := 100 * float64(count) / float64(framesExpected)
	sink.RecordPercentage(Name(m.thread, m.seqType), pct)
	sink.RecordDuration(MaxStaleName(m.thread, m.seqType), m.maxStale)

	m.jankCount = 0
	m.maxStale = 0
}

// Merge folds other's counts into m.
func (m *Metrics) Merge(other *Metrics) {
	if other == nil {
		return
	}
	m.jankCount += other.jankCount
	if other.maxStale > m.maxStale {
		m.maxStale = other.maxStale
	}
}

func (m *Metrics) JankCount() uint32       { return m.jankCount }
func (m *Metrics) MaxStale() time.Duration { return m.maxStale }

// Name is the percentage record name for a thread and sequence type.
func Name(thread seqtype.Thread, t seqtype.Type) string {
	return "Graphics.Smoothness.Jank." + thread.String() + "." + t.String()
}

// MaxStaleName is the staleness record name for a thread and sequence type.
func MaxStaleName(thread seqtype.Thread, t seqtype.Type) string {
	return "Graphics.Smoothness.MaxStale." + thread.String() + "." + t.String()
}
