// Package tracker turns the stream of begin-frame, submission and
// presentation events into per-sequence throughput, checkerboarding and jank.
//
// A Tracker follows one sequence type. A Collection owns the live trackers,
// fans every pipeline event out to them, and reports a tracker's metrics
// once it has finished draining.
package tracker

import (
	"time"

	"github.com/sirupsen/logrus"

	"framemeter/internal/core"
	"framemeter/internal/seqtype"
	"framemeter/internal/sequence"
)

// TerminationStatus is the lifecycle state of a tracker.
type TerminationStatus uint8

const (
	Active TerminationStatus = iota
	ScheduledForTermination
	ReadyForTermination
)

func (s TerminationStatus) String() string {
	switch s {
	case Active:
		return "Active"
	case ScheduledForTermination:
		return "ScheduledForTermination"
	case ReadyForTermination:
		return "ReadyForTermination"
	}
	return "Invalid"
}

// Settings tune when trackers report and retire.
type Settings struct {
	// ReportWindow is how long a built-in tracker runs before it is
	// replaced so that long sequences report incrementally.
	ReportWindow time.Duration
	// MinFramesForReporting is the number of expected frames a thread
	// needs before its throughput is reported.
	MinFramesForReporting uint32
	// FrameTokenGap is how many frame tokens past its last submission a
	// scheduled tracker waits for feedback before giving up.
	FrameTokenGap uint32
}

func DefaultSettings() Settings {
	return Settings{
		ReportWindow:          5 * time.Second,
		MinFramesForReporting: sequence.DefaultMinFramesForReporting,
		FrameTokenGap:         3,
	}
}

type trackedFrameData struct {
	previousSource        uint64
	previousSequence      uint64
	previousSequenceDelta uint32
}

func (d *trackedFrameData) update(id core.BeginFrameID) {
	if d.previousSource != id.SourceID || d.previousSequence == 0 {
		d.previousSource = id.SourceID
		d.previousSequence = id.SequenceNumber
		d.previousSequenceDelta = 1
		return
	}
	d.previousSequenceDelta = uint32(id.SequenceNumber - d.previousSequence)
	d.previousSequence = id.SequenceNumber
}

type checkerboardState struct {
	frames                      []core.FrameToken
	lastFrameHadCheckerboarding bool
	lastFrameTimestamp          time.Time
}

// Tracker correlates pipeline events for one sequence. Trackers are created
// by a Collection.
type Tracker struct {
	seqType  seqtype.Type
	customID int
	settings Settings
	metrics  *sequence.Metrics
	status   TerminationStatus
	log      *logrus.Entry

	beginImpl trackedFrameData
	beginMain trackedFrameData

	resetAllState bool
	isInsideFrame bool

	frameHadNoCompositorDamage bool
	compositorFrameSubmitted   bool

	firstFrameTime       time.Time
	firstSubmittedFrame  core.FrameToken
	hasFirstSubmitted    bool
	lastSubmittedFrame   core.FrameToken
	awaitingPresentation bool
	lastPresentedFrame   core.FrameToken
	hasPresented         bool

	firstReceivedMainSequence uint64
	previousBeginMainSequence uint64
	previousBeginMainDelta    uint32
	lastSubmittedMainSequence uint64
	lastNoMainDamageSequence  uint64
	awaitedMainSequence       uint64

	// mainFrames holds submitted tokens carrying new main-thread content.
	mainFrames []core.FrameToken
	// pendingAggregated counts presentations whose aggregated credit waits
	// on pendingFor being resolved as no-damage.
	pendingAggregated uint32
	pendingFor        uint64

	checkerboard       checkerboardState
	ignoredFrameTokens map[core.FrameToken]struct{}
}

func newTracker(t seqtype.Type, settings Settings, metrics *sequence.Metrics) *Tracker {
	return &Tracker{
		seqType:            t,
		settings:           settings,
		metrics:            metrics,
		ignoredFrameTokens: make(map[core.FrameToken]struct{}),
		log:                core.Logger().WithFields(logrus.Fields{"component": "tracker", "sequence": t.String()}),
	}
}

func (t *Tracker) Type() seqtype.Type                   { return t.seqType }
func (t *Tracker) CustomID() int                        { return t.customID }
func (t *Tracker) Metrics() *sequence.Metrics           { return t.metrics }
func (t *Tracker) TerminationStatus() TerminationStatus { return t.status }

func (t *Tracker) ignored(event string, fields logrus.Fields) {
	if !t.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	t.log.WithFields(fields).Debugf("ignored %s", event)
}

// shouldIgnoreSource reports whether source is foreign to the tracker. The
// first non-manual source seen anchors the tracker.
func (t *Tracker) shouldIgnoreSource(source uint64) bool {
	if t.beginImpl.previousSource == 0 {
		return source == core.ManualSourceID
	}
	return source != t.beginImpl.previousSource
}

func (t *Tracker) shouldIgnoreSequence(seq uint64) bool {
	return seq != t.beginImpl.previousSequence
}

// ReportBeginImplFrame opens a scheduling tick and counts the frames it
// expects on the compositor thread.
func (t *Tracker) ReportBeginImplFrame(args core.BeginFrameArgs) {
	if t.status != Active {
		return
	}
	if t.resetAllState {
		t.beginImpl = trackedFrameData{}
		t.beginMain = trackedFrameData{}
		t.resetAllState = false
	}
	id := args.ID
	if t.shouldIgnoreSource(id.SourceID) {
		t.ignored("begin impl frame", logrus.Fields{"id": id.String()})
		return
	}
	if t.beginImpl.previousSequence != 0 && id.SequenceNumber <= t.beginImpl.previousSequence {
		t.ignored("stale begin impl frame", logrus.Fields{"id": id.String()})
		return
	}

	t.beginImpl.update(id)
	delta := t.beginImpl.previousSequenceDelta
	t.metrics.Impl().AddExpected(delta)
	t.metrics.Aggregated().AddExpected(delta)

	if t.firstFrameTime.IsZero() {
		t.firstFrameTime = args.FrameTime
	}
	t.isInsideFrame = true
	t.frameHadNoCompositorDamage = false
	t.compositorFrameSubmitted = false
}

// ReportBeginMainFrame counts the frames the main thread is expected to
// produce. Main ticks only count once one matching an open compositor tick has
// been seen.
func (t *Tracker) ReportBeginMainFrame(id core.BeginFrameID) {
	if t.status != Active {
		return
	}
	if t.shouldIgnoreSource(id.SourceID) {
		t.ignored("begin main frame", logrus.Fields{"id": id.String()})
		return
	}
	seq := id.SequenceNumber
	if t.firstReceivedMainSequence == 0 {
		if !t.isInsideFrame || seq != t.beginImpl.previousSequence {
			t.ignored("begin main frame before first tick", logrus.Fields{"id": id.String()})
			return
		}
		t.firstReceivedMainSequence = seq
	} else if seq < t.firstReceivedMainSequence {
		t.ignored("begin main frame before first received", logrus.Fields{"id": id.String()})
		return
	}
	if t.beginMain.previousSequence != 0 && seq <= t.beginMain.previousSequence {
		t.ignored("stale begin main frame", logrus.Fields{"id": id.String()})
		return
	}

	t.previousBeginMainSequence = t.beginMain.previousSequence
	t.previousBeginMainDelta = t.beginMain.previousSequenceDelta
	t.beginMain.update(id)
	t.metrics.Main().AddExpected(t.beginMain.previousSequenceDelta)
}

// ReportMainFrameProcessed is called once the main thread finishes the frame
// id. If no submission carried the main frame before it and it was not
// reported as having no damage, its expected count is taken back.
func (t *Tracker) ReportMainFrameProcessed(id core.BeginFrameID) {
	if t.status == ReadyForTermination {
		return
	}
	if t.shouldIgnoreSource(id.SourceID) {
		t.ignored("main frame processed", logrus.Fields{"id": id.String()})
		return
	}
	if t.firstReceivedMainSequence == 0 || id.SequenceNumber < t.firstReceivedMainSequence {
		t.ignored("main frame processed before first received", logrus.Fields{"id": id.String()})
		return
	}

	prev := t.previousBeginMainSequence
	unresolved := prev != 0 &&
		prev > t.lastSubmittedMainSequence &&
		prev > t.lastNoMainDamageSequence &&
		prev >= t.firstReceivedMainSequence
	if unresolved {
		t.metrics.Main().RemoveExpected(t.previousBeginMainDelta, t.mainFramesInFlight())
		t.resolveMainNoDamage(prev)
	}
}

// ReportSubmitFrame is called when the compositor submits frame token for
// the tick in ack. origin is the main frame whose content the frame carries.
func (t *Tracker) ReportSubmitFrame(token core.FrameToken, hasMissingContent bool, ack core.BeginFrameAck, origin core.BeginFrameID) {
	if t.status == ReadyForTermination ||
		t.shouldIgnoreSource(ack.ID.SourceID) ||
		t.shouldIgnoreSequence(ack.ID.SequenceNumber) ||
		(t.status == ScheduledForTermination && !t.isInsideFrame) ||
		(t.isInsideFrame && t.compositorFrameSubmitted) {
		t.ignoreFrameToken(token)
		return
	}

	if !t.hasFirstSubmitted {
		t.firstSubmittedFrame = token
		t.hasFirstSubmitted = true
	}
	t.lastSubmittedFrame = token
	t.awaitingPresentation = true
	t.compositorFrameSubmitted = true

	if hasMissingContent {
		t.checkerboard.frames = append(t.checkerboard.frames, token)
	}

	oseq := origin.SequenceNumber
	if !origin.IsValid() || t.shouldIgnoreSource(origin.SourceID) || oseq > t.beginMain.previousSequence {
		return
	}
	afterStart := t.firstReceivedMainSequence != 0 && oseq >= t.firstReceivedMainSequence
	newChanges := t.lastSubmittedMainSequence == 0 || oseq > t.lastSubmittedMainSequence
	hadNoDamage := t.lastNoMainDamageSequence != 0 && oseq == t.lastNoMainDamageSequence
	if afterStart && newChanges && !hadNoDamage {
		t.lastSubmittedMainSequence = oseq
		t.mainFrames = append(t.mainFrames, token)
		core.Checkf(t.metrics.Main().FramesExpected >= t.metrics.Main().FramesProduced+uint32(len(t.mainFrames)),
			"%v main frames in flight exceed expected %v", len(t.mainFrames), t.metrics.Main())
	}
}

func (t *Tracker) ignoreFrameToken(token core.FrameToken) {
	t.ignoredFrameTokens[token] = struct{}{}
	t.ignored("frame submission", logrus.Fields{"token": token})
	t.maybeForceTerminate(token)
}

// ReportFrameEnd closes the tick id. mainID names the main frame the tick was
// waiting on, if any.
func (t *Tracker) ReportFrameEnd(id, mainID core.BeginFrameID) {
	if t.status == ReadyForTermination {
		return
	}
	if t.shouldIgnoreSource(id.SourceID) {
		t.ignored("frame end", logrus.Fields{"id": id.String()})
		return
	}
	if t.shouldIgnoreSequence(id.SequenceNumber) {
		t.isInsideFrame = false
		t.maybeTerminate()
		return
	}

	if t.isInsideFrame && t.frameHadNoCompositorDamage && !t.compositorFrameSubmitted {
		t.metrics.Impl().RemoveExpected(1, 0)
		t.metrics.Aggregated().RemoveExpected(1, 0)
	}
	if mainID.IsValid() && !t.shouldIgnoreSource(mainID.SourceID) {
		t.awaitedMainSequence = mainID.SequenceNumber
	}

	t.isInsideFrame = false
	t.frameHadNoCompositorDamage = false
	t.compositorFrameSubmitted = false
	t.maybeTerminate()
}

// ReportImplFrameCausedNoDamage marks the open tick as having nothing to show
// on the compositor thread.
func (t *Tracker) ReportImplFrameCausedNoDamage(ack core.BeginFrameAck) {
	if t.status == ReadyForTermination {
		return
	}
	if t.shouldIgnoreSource(ack.ID.SourceID) || t.shouldIgnoreSequence(ack.ID.SequenceNumber) || !t.isInsideFrame {
		t.ignored("impl no damage", logrus.Fields{"id": ack.ID.String()})
		return
	}
	t.frameHadNoCompositorDamage = true
}

// ReportMainFrameCausedNoDamage takes back the expected main frames of id,
// which turned out to have nothing to show. Repeated reports for an id that
// was already resolved are ignored.
func (t *Tracker) ReportMainFrameCausedNoDamage(id core.BeginFrameID) {
	if t.status == ReadyForTermination {
		return
	}
	if t.shouldIgnoreSource(id.SourceID) {
		t.ignored("main no damage", logrus.Fields{"id": id.String()})
		return
	}
	seq := id.SequenceNumber
	if t.firstReceivedMainSequence == 0 ||
		seq < t.firstReceivedMainSequence ||
		seq <= t.lastNoMainDamageSequence ||
		seq <= t.lastSubmittedMainSequence ||
		seq > t.beginMain.previousSequence {
		t.ignored("main no damage", logrus.Fields{"id": id.String(), "lastNoDamage": t.lastNoMainDamageSequence})
		return
	}

	delta := uint32(1)
	switch seq {
	case t.beginMain.previousSequence:
		delta = t.beginMain.previousSequenceDelta
	case t.previousBeginMainSequence:
		delta = t.previousBeginMainDelta
	}
	t.metrics.Main().RemoveExpected(delta, t.mainFramesInFlight())
	t.resolveMainNoDamage(seq)
}

// resolveMainNoDamage records seq as a main frame without damage and
// releases aggregated credit that was waiting on it.
func (t *Tracker) resolveMainNoDamage(seq uint64) {
	t.lastNoMainDamageSequence = seq
	if t.pendingAggregated == 0 || seq < t.pendingFor {
		return
	}
	for ; t.pendingAggregated > 0; t.pendingAggregated-- {
		t.metrics.Aggregated().AddProduced()
	}
}

// PauseFrameProduction drops the begin-frame deltas at the next tick so the
// pause is not counted as missed frames.
func (t *Tracker) PauseFrameProduction() {
	t.resetAllState = true
}

// ReportFramePresented reconciles the presentation of token.
func (t *Tracker) ReportFramePresented(token core.FrameToken, feedback core.PresentationFeedback) {
	if t.status == ReadyForTermination {
		return
	}
	defer t.maybeForceTerminate(token)

	if _, ok := t.ignoredFrameTokens[token]; ok {
		// A later frame reaching the screen acknowledges our last submission.
		if t.hasFirstSubmitted && t.awaitingPresentation && core.FrameTokenGE(token, t.lastSubmittedFrame) {
			t.awaitingPresentation = false
		}
		t.pruneIgnored(token)
		t.pruneCheckerboard(token)
		t.maybeTerminate()
		return
	}
	if !t.hasFirstSubmitted || core.FrameTokenGT(t.firstSubmittedFrame, token) {
		t.pruneIgnored(token)
		return
	}
	if t.hasPresented && !core.FrameTokenGT(token, t.lastPresentedFrame) {
		return
	}
	t.hasPresented = true
	t.lastPresentedFrame = token

	ours := t.awaitingPresentation && core.FrameTokenGE(t.lastSubmittedFrame, token)
	if t.awaitingPresentation && core.FrameTokenGE(token, t.lastSubmittedFrame) {
		t.awaitingPresentation = false
	}

	presented := !feedback.Failed && !feedback.Timestamp.IsZero()
	if presented && ours {
		t.creditPresentation(token, feedback)
	}
	if presented {
		t.updateCheckerboard(token, feedback)
	} else {
		t.pruneCheckerboard(token)
	}
	t.pruneIgnored(token)
	t.maybeTerminate()
}

func (t *Tracker) creditPresentation(token core.FrameToken, feedback core.PresentationFeedback) {
	interval := feedback.EffectiveInterval()
	ts := feedback.Timestamp

	if t.metrics.Impl().AddProduced() {
		t.metrics.NotifyPresented(seqtype.Compositor, ts, interval)
	}

	popped := 0
	for len(t.mainFrames) > 0 && !core.FrameTokenGT(t.mainFrames[0], token) {
		t.mainFrames = t.mainFrames[1:]
		popped++
	}
	switch {
	case popped > 0:
		if t.metrics.Main().AddProduced() {
			t.metrics.NotifyPresented(seqtype.Main, ts, interval)
		}
		t.pendingAggregated = 0
		if t.metrics.Aggregated().AddProduced() {
			t.metrics.NotifyPresented(seqtype.Slower, ts, interval)
		}
	case t.mainUpdatePending():
		t.pendingAggregated++
		t.pendingFor = t.awaitedMain()
	default:
		if t.metrics.Aggregated().AddProduced() {
			t.metrics.NotifyPresented(seqtype.Slower, ts, interval)
		}
	}
}

// awaitedMain is the main frame the compositor is waiting on.
func (t *Tracker) awaitedMain() uint64 {
	if t.awaitedMainSequence > t.beginMain.previousSequence || t.awaitedMainSequence == 0 {
		return t.beginMain.previousSequence
	}
	return t.awaitedMainSequence
}

// mainUpdatePending reports whether a main frame was sent and is neither
// submitted nor resolved as no-damage.
func (t *Tracker) mainUpdatePending() bool {
	seq := t.awaitedMain()
	return seq != 0 &&
		seq >= t.firstReceivedMainSequence &&
		seq > t.lastSubmittedMainSequence &&
		seq > t.lastNoMainDamageSequence
}

// updateCheckerboard converts the time the previous checkerboarded frame was
// on screen into a frame count.
func (t *Tracker) updateCheckerboard(token core.FrameToken, feedback core.PresentationFeedback) {
	cb := &t.checkerboard
	if cb.lastFrameHadCheckerboarding && !cb.lastFrameTimestamp.IsZero() {
		diff := feedback.Timestamp.Sub(cb.lastFrameTimestamp)
		if n := (diff + time.Millisecond) / feedback.EffectiveInterval(); n > 0 {
			t.metrics.AddCheckerboardedFrames(uint32(n))
		}
	}

	had := false
	for len(cb.frames) > 0 && !core.FrameTokenGT(cb.frames[0], token) {
		if cb.frames[0] == token {
			had = true
		}
		cb.frames = cb.frames[1:]
	}
	cb.lastFrameHadCheckerboarding = had
	cb.lastFrameTimestamp = feedback.Timestamp
}

func (t *Tracker) pruneCheckerboard(token core.FrameToken) {
	cb := &t.checkerboard
	for len(cb.frames) > 0 && !core.FrameTokenGT(cb.frames[0], token) {
		cb.frames = cb.frames[1:]
	}
}

func (t *Tracker) pruneIgnored(token core.FrameToken) {
	for tok := range t.ignoredFrameTokens {
		if !core.FrameTokenGT(tok, token) {
			delete(t.ignoredFrameTokens, tok)
		}
	}
}

func (t *Tracker) mainFramesInFlight() uint32 {
	return uint32(len(t.mainFrames))
}

// ScheduleTerminate stops the tracker from counting new ticks. It becomes
// ready for termination once its in-flight frame has been presented.
func (t *Tracker) ScheduleTerminate() {
	if t.status != Active {
		return
	}
	t.status = ScheduledForTermination
	t.maybeTerminate()
}

func (t *Tracker) maybeTerminate() {
	if t.status == ScheduledForTermination && !t.isInsideFrame && !t.awaitingPresentation {
		t.status = ReadyForTermination
	}
}

// maybeForceTerminate retires a scheduled tracker once token is far enough
// past its last submission that the feedback is assumed lost.
func (t *Tracker) maybeForceTerminate(token core.FrameToken) {
	if t.status != ScheduledForTermination || !t.hasFirstSubmitted {
		return
	}
	if core.FrameTokenGT(token, t.lastSubmittedFrame) && uint32(token-t.lastSubmittedFrame) >= t.settings.FrameTokenGap {
		t.log.WithFields(logrus.Fields{"token": token, "lastSubmitted": t.lastSubmittedFrame}).Debug("feedback lost, terminating")
		t.status = ReadyForTermination
	}
}

// ShouldReportMetricsNow reports whether the tracker has enough data and has
// run for at least the report window.
func (t *Tracker) ShouldReportMetricsNow(args core.BeginFrameArgs) bool {
	if !t.metrics.HasEnoughDataForReporting() || t.firstFrameTime.IsZero() {
		return false
	}
	return args.FrameTime.Sub(t.firstFrameTime) >= t.settings.ReportWindow
}
