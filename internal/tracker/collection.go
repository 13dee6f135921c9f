package tracker

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"framemeter/internal/core"
	"framemeter/internal/seqtype"
	"framemeter/internal/sequence"
)

type accumulatorKey struct {
	seqType seqtype.Type
	thread  seqtype.Thread
}

// Collection owns the live trackers and routes every pipeline event to them.
// It is not safe for concurrent use; callers serialise events onto one
// goroutine.
type Collection struct {
	settings Settings
	sink     core.Sink
	sampler  sequence.SummarySampler
	log      *logrus.Entry

	trackers        map[seqtype.Type]*Tracker
	customTrackers  map[int]*Tracker
	removalTrackers []*Tracker

	accumulated     map[accumulatorKey]*sequence.Metrics
	customResults   map[int]sequence.ThroughputData
	scrollingThread map[seqtype.Type]seqtype.Thread

	lastFrameTime time.Time
}

// NewCollection returns an empty collection reporting to sink. sampler may be
// nil to disable summary events.
func NewCollection(sink core.Sink, sampler sequence.SummarySampler, settings Settings) *Collection {
	if sink == nil {
		sink = core.NullSink
	}
	return &Collection{
		settings:        settings,
		sink:            sink,
		sampler:         sampler,
		log:             core.Logger().WithField("component", "collection"),
		trackers:        make(map[seqtype.Type]*Tracker),
		customTrackers:  make(map[int]*Tracker),
		accumulated:     make(map[accumulatorKey]*sequence.Metrics),
		customResults:   make(map[int]sequence.ThroughputData),
		scrollingThread: make(map[seqtype.Type]seqtype.Thread),
	}
}

func (c *Collection) newMetrics(t seqtype.Type) *sequence.Metrics {
	m := sequence.NewMetrics(t, c.settings.MinFramesForReporting)
	if th, ok := c.scrollingThread[t]; ok {
		m.SetScrollingThread(th)
	}
	return m
}

// StartSequence starts tracking t, or returns the tracker already running.
func (c *Collection) StartSequence(t seqtype.Type) *Tracker {
	if !core.Checkf(t.IsValid() && t != seqtype.Custom, "cannot start built-in sequence %d", uint8(t)) {
		return nil
	}
	if tr, ok := c.trackers[t]; ok {
		return tr
	}
	tr := newTracker(t, c.settings, c.newMetrics(t))
	c.trackers[t] = tr
	c.log.WithField("sequence", t.String()).Debug("sequence started")
	return tr
}

// StopSequence schedules the tracker of t for termination. It keeps
// receiving feedback for its in-flight frame until it is ready.
func (c *Collection) StopSequence(t seqtype.Type) {
	tr, ok := c.trackers[t]
	if !ok {
		return
	}
	delete(c.trackers, t)
	c.retire(tr)
	c.log.WithField("sequence", t.String()).Debug("sequence stopped")
	c.destroyTrackers()
}

// StartCustomSequence starts a caller-defined sequence. Its result is only
// available through TakeCustomTrackerResults.
func (c *Collection) StartCustomSequence(id int) *Tracker {
	if tr, ok := c.customTrackers[id]; ok {
		return tr
	}
	m := c.newMetrics(seqtype.Custom)
	m.SetCustomID(id)
	tr := newTracker(seqtype.Custom, c.settings, m)
	tr.customID = id
	c.customTrackers[id] = tr
	return tr
}

func (c *Collection) StopCustomSequence(id int) {
	tr, ok := c.customTrackers[id]
	if !ok {
		return
	}
	delete(c.customTrackers, id)
	c.retire(tr)
	c.destroyTrackers()
}

func (c *Collection) retire(tr *Tracker) {
	tr.ScheduleTerminate()
	c.removalTrackers = append(c.removalTrackers, tr)
}

// ClearAll drops every tracker without reporting.
func (c *Collection) ClearAll() {
	clear(c.trackers)
	clear(c.customTrackers)
	for i := range c.removalTrackers {
		c.removalTrackers[i] = nil
	}
	c.removalTrackers = c.removalTrackers[:0]
}

// Flush retires every tracker at once and reports what each holds without
// waiting for outstanding presentation feedback. Replays call it at the end
// of a trace.
func (c *Collection) Flush() {
	c.forEach(false, c.retire)
	clear(c.trackers)
	clear(c.customTrackers)
	for _, tr := range c.removalTrackers {
		tr.status = ReadyForTermination
	}
	c.destroyTrackers()
	c.log.Debug("flushed all trackers")
}

// SetScrollingThread sets the thread whose throughput represents scroll
// sequences of type t, for the running tracker and future ones.
func (c *Collection) SetScrollingThread(t seqtype.Type, th seqtype.Thread) {
	if !core.Checkf(t.IsScroll(), "%v is not a scroll sequence", t) {
		return
	}
	c.scrollingThread[t] = th
	if tr, ok := c.trackers[t]; ok {
		tr.metrics.SetScrollingThread(th)
	}
}

// ActiveTrackerTypes returns the built-in types currently tracked, sorted.
func (c *Collection) ActiveTrackerTypes() []seqtype.Type {
	types := make([]seqtype.Type, 0, len(c.trackers))
	for t := range c.trackers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Tracker returns the live tracker of t.
func (c *Collection) Tracker(t seqtype.Type) (*Tracker, bool) {
	tr, ok := c.trackers[t]
	return tr, ok
}

func (c *Collection) CustomTracker(id int) (*Tracker, bool) {
	tr, ok := c.customTrackers[id]
	return tr, ok
}

// RemovalTrackerCount is the number of retired trackers still draining.
func (c *Collection) RemovalTrackerCount() int { return len(c.removalTrackers) }

// AccumulatedMetrics returns metrics kept for (t, th) because they did not
// have enough data to report yet.
func (c *Collection) AccumulatedMetrics(t seqtype.Type, th seqtype.Thread) (*sequence.Metrics, bool) {
	m, ok := c.accumulated[accumulatorKey{t, th}]
	return m, ok
}

// TakeCustomTrackerResults returns the main-thread throughput of every custom
// sequence that finished since the last call.
func (c *Collection) TakeCustomTrackerResults() map[int]sequence.ThroughputData {
	out := c.customResults
	c.customResults = make(map[int]sequence.ThroughputData)
	return out
}

// forEach calls fn on live built-in trackers in type order, then on custom
// trackers. With removal set it also visits trackers that are draining.
func (c *Collection) forEach(removal bool, fn func(*Tracker)) {
	for _, t := range seqtype.BuiltIn() {
		if tr, ok := c.trackers[t]; ok {
			fn(tr)
		}
	}
	ids := make([]int, 0, len(c.customTrackers))
	for id := range c.customTrackers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fn(c.customTrackers[id])
	}
	if removal {
		for _, tr := range c.removalTrackers {
			fn(tr)
		}
	}
}

// NotifyBeginImplFrame replaces trackers that have run for a full report
// window, then opens the tick on every tracker.
func (c *Collection) NotifyBeginImplFrame(args core.BeginFrameArgs) {
	c.recreateTrackers(args)
	c.lastFrameTime = args.FrameTime
	c.forEach(false, func(tr *Tracker) { tr.ReportBeginImplFrame(args) })
}

func (c *Collection) NotifyBeginMainFrame(id core.BeginFrameID) {
	c.forEach(false, func(tr *Tracker) { tr.ReportBeginMainFrame(id) })
}

func (c *Collection) NotifyMainFrameProcessed(id core.BeginFrameID) {
	c.forEach(false, func(tr *Tracker) { tr.ReportMainFrameProcessed(id) })
}

func (c *Collection) NotifyImplFrameCausedNoDamage(ack core.BeginFrameAck) {
	c.forEach(true, func(tr *Tracker) { tr.ReportImplFrameCausedNoDamage(ack) })
}

func (c *Collection) NotifyMainFrameCausedNoDamage(id core.BeginFrameID) {
	c.forEach(true, func(tr *Tracker) { tr.ReportMainFrameCausedNoDamage(id) })
}

func (c *Collection) NotifyPauseFrameProduction() {
	c.forEach(false, func(tr *Tracker) { tr.PauseFrameProduction() })
}

func (c *Collection) NotifySubmitFrame(token core.FrameToken, hasMissingContent bool, ack core.BeginFrameAck, origin core.BeginFrameID) {
	c.forEach(true, func(tr *Tracker) { tr.ReportSubmitFrame(token, hasMissingContent, ack, origin) })
	c.destroyTrackers()
}

func (c *Collection) NotifyFrameEnd(id, mainID core.BeginFrameID) {
	c.forEach(true, func(tr *Tracker) { tr.ReportFrameEnd(id, mainID) })
	c.destroyTrackers()
}

func (c *Collection) NotifyFramePresented(token core.FrameToken, feedback core.PresentationFeedback) {
	c.forEach(true, func(tr *Tracker) { tr.ReportFramePresented(token, feedback) })
	c.destroyTrackers()
}

func (c *Collection) recreateTrackers(args core.BeginFrameArgs) {
	var due []seqtype.Type
	for _, t := range seqtype.BuiltIn() {
		if tr, ok := c.trackers[t]; ok && tr.ShouldReportMetricsNow(args) {
			due = append(due, t)
		}
	}
	for _, t := range due {
		c.log.WithField("sequence", t.String()).Debug("report window elapsed, recreating tracker")
		tr := c.trackers[t]
		delete(c.trackers, t)
		c.retire(tr)
		c.StartSequence(t)
	}
	if len(due) > 0 {
		c.destroyTrackers()
	}
}

// destroyTrackers reports and drops every retired tracker that is ready.
func (c *Collection) destroyTrackers() {
	kept := c.removalTrackers[:0]
	for _, tr := range c.removalTrackers {
		if tr.status != ReadyForTermination {
			kept = append(kept, tr)
			continue
		}
		c.finish(tr)
	}
	for i := len(kept); i < len(c.removalTrackers); i++ {
		c.removalTrackers[i] = nil
	}
	c.removalTrackers = kept
}

func (c *Collection) finish(tr *Tracker) {
	m := tr.metrics
	if tr.seqType == seqtype.Custom {
		result := c.customResults[tr.customID]
		result.Merge(*m.Main())
		c.customResults[tr.customID] = result
		return
	}

	key := accumulatorKey{tr.seqType, m.EffectiveThread()}
	if acc, ok := c.accumulated[key]; ok {
		m.Merge(acc)
		delete(c.accumulated, key)
	}
	if m.HasEnoughDataForReporting() {
		m.ReportMetrics(c.sink, c.sampler, c.lastFrameTime)
	}
	if m.HasDataLeftForReporting() {
		c.accumulated[key] = m
	}
}
