// Package sequence accumulates per-sequence throughput, checkerboarding and
// jank, and reports them once a sequence has enough data.
package sequence

import (
	"time"

	"github.com/google/uuid"

	"framemeter/internal/core"
	"framemeter/internal/jank"
	"framemeter/internal/seqtype"
)

// DefaultMinFramesForReporting is the number of expected frames needed before
// a throughput value is meaningful.
const DefaultMinFramesForReporting = 100

// SummaryEventName names the sampled per-sequence trace event.
const SummaryEventName = "FrameSequenceTracker.Summary"

// SummarySampler decides whether a report of type t emits a summary event.
type SummarySampler interface {
	ShouldSample(t seqtype.Type) bool
}

// Metrics holds the counters of one frame sequence.
type Metrics struct {
	seqType         seqtype.Type
	customID        int
	scrollingThread seqtype.Thread
	minFrames       uint32

	impl       ThroughputData
	main       ThroughputData
	aggregated ThroughputData

	framesCheckerboarded uint32

	jank *jank.Metrics
}

// NewMetrics returns empty metrics for t. minFrames of zero selects
// DefaultMinFramesForReporting.
func NewMetrics(t seqtype.Type, minFrames uint32) *Metrics {
	if minFrames == 0 {
		minFrames = DefaultMinFramesForReporting
	}
	m := &Metrics{
		seqType:         t,
		scrollingThread: seqtype.Compositor,
		minFrames:       minFrames,
	}
	m.jank = jank.New(t, m.EffectiveThread())
	return m
}

func (m *Metrics) Type() seqtype.Type { return m.seqType }

func (m *Metrics) CustomID() int      { return m.customID }
func (m *Metrics) SetCustomID(id int) { m.customID = id }

// SetScrollingThread selects the effective thread of scroll sequences.
// Jank counted so far belongs to the previous thread and is discarded.
func (m *Metrics) SetScrollingThread(th seqtype.Thread) {
	if !m.seqType.IsScroll() {
		return
	}
	if !core.Checkf(th == seqtype.Compositor || th == seqtype.Main, "scrolling thread must be compositor or main, got %v", th) {
		return
	}
	if th == m.scrollingThread {
		return
	}
	m.scrollingThread = th
	m.jank = jank.New(m.seqType, th)
}

// EffectiveThread is the thread whose throughput represents the sequence.
func (m *Metrics) EffectiveThread() seqtype.Thread {
	if m.seqType.IsScroll() {
		return m.scrollingThread
	}
	return m.seqType.DefaultThread()
}

func (m *Metrics) Impl() *ThroughputData       { return &m.impl }
func (m *Metrics) Main() *ThroughputData       { return &m.main }
func (m *Metrics) Aggregated() *ThroughputData { return &m.aggregated }

// Throughput returns the counters attributed to th.
func (m *Metrics) Throughput(th seqtype.Thread) ThroughputData {
	switch th {
	case seqtype.Compositor:
		return m.impl
	case seqtype.Main:
		return m.main
	case seqtype.Slower:
		return m.aggregated
	case seqtype.Unknown:
		return ThroughputData{}
	}
	return ThroughputData{}
}

func (m *Metrics) FramesCheckerboarded() uint32 { return m.framesCheckerboarded }

func (m *Metrics) AddCheckerboardedFrames(n uint32) {
	m.framesCheckerboarded += n
}

// NotifyPresented forwards a presentation credited to th to the jank detector
// when th is the effective thread.
func (m *Metrics) NotifyPresented(th seqtype.Thread, t time.Time, interval time.Duration) {
	if th == m.EffectiveThread() {
		m.jank.AddPresentedFrame(t, interval)
	}
}

func (m *Metrics) Jank() *jank.Metrics { return m.jank }

// Merge folds other into m. Both must track the same type and thread.
func (m *Metrics) Merge(other *Metrics) {
	if other == nil {
		return
	}
	core.Checkf(other.seqType == m.seqType && other.EffectiveThread() == m.EffectiveThread(),
		"merging %v/%v into %v/%v", other.seqType, other.EffectiveThread(), m.seqType, m.EffectiveThread())
	m.impl.Merge(other.impl)
	m.main.Merge(other.main)
	m.aggregated.Merge(other.aggregated)
	m.framesCheckerboarded += other.framesCheckerboarded
	m.jank.Merge(other.jank)
}

// HasEnoughDataForReporting reports whether either thread expected at least
// the minimum number of frames.
func (m *Metrics) HasEnoughDataForReporting() bool {
	return m.impl.FramesExpected >= m.minFrames || m.main.FramesExpected >= m.minFrames
}

// HasDataLeftForReporting reports whether any expected frames remain unreported.
func (m *Metrics) HasDataLeftForReporting() bool {
	return m.impl.FramesExpected > 0 || m.main.FramesExpected > 0
}

// ReportMetrics emits every value that has enough data and clears what it
// emitted. Custom sequences are reported by their caller and emit nothing.
func (m *Metrics) ReportMetrics(sink core.Sink, sampler SummarySampler, now time.Time) {
	if m.seqType == seqtype.Custom {
		return
	}

	if sampler != nil && sampler.ShouldSample(m.seqType) {
		sink.RecordTrace(m.summaryEvent(now))
	}

	implReported := m.reportThroughput(sink, seqtype.Compositor, m.impl)
	mainReported := m.reportThroughput(sink, seqtype.Main, m.main)
	slowerReported := m.reportThroughput(sink, seqtype.Slower, m.aggregated)

	effective := m.Throughput(m.EffectiveThread())
	if effective.FramesExpected >= m.minFrames {
		pct := effective.DroppedPercent()
		if m.seqType.IsAnimation() {
			sink.RecordPercentage(AllAnimationsName, pct)
		}
		if m.seqType.IsInteraction() {
			sink.RecordPercentage(AllInteractionsName, pct)
		}
		sink.RecordPercentage(AllSequencesName, pct)
		m.jank.ReportJankMetrics(sink, effective.FramesExpected)
	}

	if implReported {
		if m.seqType.ReportsCheckerboarding() {
			checkerboarded := m.framesCheckerboarded
			if checkerboarded > m.impl.FramesExpected {
				checkerboarded = m.impl.FramesExpected
			}
			sink.RecordPercentage(CheckerboardingName(m.seqType),
				100*float64(checkerboarded)/float64(m.impl.FramesExpected))
		}
		m.impl = ThroughputData{}
		m.framesCheckerboarded = 0
	}
	if mainReported {
		m.main = ThroughputData{}
	}
	if slowerReported {
		m.aggregated = ThroughputData{}
	}
}

func (m *Metrics) reportThroughput(sink core.Sink, th seqtype.Thread, d ThroughputData) bool {
	if d.FramesExpected < m.minFrames {
		return false
	}
	sink.RecordPercentage(PercentDroppedName(th, m.seqType), d.DroppedPercent())
	return true
}

func (m *Metrics) summaryEvent(now time.Time) core.TraceEvent {
	return core.TraceEvent{
		ID:        uuid.NewString(),
		Name:      SummaryEventName,
		Category:  m.seqType.String(),
		Timestamp: now,
		Args: map[string]any{
			"thread":               m.EffectiveThread().String(),
			"impl":                 m.impl,
			"main":                 m.main,
			"aggregated":           m.aggregated,
			"framesCheckerboarded": m.framesCheckerboarded,
			"jankCount":            m.jank.JankCount(),
			"maxStaleMilliseconds": float64(m.jank.MaxStale()) / float64(time.Millisecond),
		},
	}
}

const (
	AllAnimationsName   = "Graphics.Smoothness.PercentDroppedFrames.AllAnimations"
	AllInteractionsName = "Graphics.Smoothness.PercentDroppedFrames.AllInteractions"
	AllSequencesName    = "Graphics.Smoothness.PercentDroppedFrames.AllSequences"
)

// PercentDroppedName is the throughput record name for a thread and type.
func PercentDroppedName(th seqtype.Thread, t seqtype.Type) string {
	return "Graphics.Smoothness.PercentDroppedFrames." + th.String() + "." + t.String()
}

// CheckerboardingName is the checkerboard record name for a type.
func CheckerboardingName(t seqtype.Type) string {
	return "Graphics.Smoothness.Checkerboarding." + t.String()
}
