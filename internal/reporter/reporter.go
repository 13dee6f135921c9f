// Package reporter follows one candidate frame through the pipeline and, once
// the frame ends, emits per-stage latency records.
//
// A Reporter keeps an open current stage and an append-only history of closed
// stages. Consecutive stages share their boundary timestamp, so the stage
// durations always add up to the frame's total latency.
package reporter

import (
	"time"

	"github.com/sirupsen/logrus"

	"framemeter/internal/core"
	"framemeter/internal/dropped"
	"framemeter/internal/seqtype"
)

// FrameOutcomeRecorder receives the outcome of every frame that emitted
// records. *dropped.Counter implements it.
type FrameOutcomeRecorder interface {
	AddFrame(s dropped.FrameState)
}

// Reporter collects the stage history of a single frame.
// It is not safe for concurrent use.
type Reporter struct {
	args           core.BeginFrameArgs
	clock          core.Clock
	sink           core.Sink
	activeTrackers []seqtype.Type
	outcome        FrameOutcomeRecorder
	log            *logrus.Entry

	current      StageData
	stageHistory []StageData

	terminated bool
	finalized  bool
	status     TerminationStatus
	frameDone  time.Time

	didFinishImplFrame bool
	implFrameFinish    time.Time
	didAbortMainFrame  bool
	mainAbortTime      time.Time
	didNotProduceFrame bool

	hasBlinkBreakdown bool
	blinkBreakdown    BlinkBreakdown
	beginMainStart    time.Time

	hasVizBreakdown bool
	vizBreakdown    VizBreakdown

	hasEvents bool
	events    []EventMetrics

	partialUpdate bool
	frameToken    core.FrameToken
	hasFrameToken bool
}

// New returns a reporter for the frame scheduled by args. Stage records are
// also emitted once per active tracker type.
func New(args core.BeginFrameArgs, clock core.Clock, sink core.Sink, activeTrackers []seqtype.Type) *Reporter {
	if clock == nil {
		clock = core.RealClock{}
	}
	if sink == nil {
		sink = core.NullSink
	}
	return &Reporter{
		args:           args,
		clock:          clock,
		sink:           sink,
		activeTrackers: append([]seqtype.Type(nil), activeTrackers...),
		log:            core.Logger().WithFields(logrus.Fields{"component": "reporter", "frame": args.ID.String()}),
	}
}

// SetFrameOutcomeRecorder attaches r; it is told about the frame once, when
// the reporter emits.
func (r *Reporter) SetFrameOutcomeRecorder(rec FrameOutcomeRecorder) {
	r.outcome = rec
}

// StartStage closes the open stage at t and opens stage at t.
func (r *Reporter) StartStage(stage StageType, t time.Time) {
	if r.terminated {
		return
	}
	if !core.Checkf(stage.IsValid() && stage != TotalLatency, "cannot start stage %d", uint8(stage)) {
		return
	}
	r.endCurrentStage(t)
	r.current = StageData{Type: stage, Start: t}
}

func (r *Reporter) endCurrentStage(t time.Time) {
	if r.current.Start.IsZero() {
		return
	}
	if !core.Checkf(!t.Before(r.current.Start), "stage %v ends at %v before it starts at %v", r.current.Type, t, r.current.Start) {
		t = r.current.Start
	}
	r.current.End = t
	r.stageHistory = append(r.stageHistory, r.current)
	r.current = StageData{}
}

func (r *Reporter) OnFinishImplFrame(t time.Time) {
	if !core.Checkf(!r.didFinishImplFrame, "impl frame of %v finished twice", r.args.ID) {
		return
	}
	r.didFinishImplFrame = true
	r.implFrameFinish = t
}

func (r *Reporter) OnAbortBeginMainFrame(t time.Time) {
	if !core.Checkf(!r.didAbortMainFrame, "main frame of %v aborted twice", r.args.ID) {
		return
	}
	r.didAbortMainFrame = true
	r.mainAbortTime = t
}

// OnDidNotProduceFrame marks the frame as never produced; a later
// DidNotPresentFrame termination becomes DidNotProduceFrame.
func (r *Reporter) OnDidNotProduceFrame() {
	if !core.Checkf(!r.didNotProduceFrame, "frame %v reported as not produced twice", r.args.ID) {
		return
	}
	r.didNotProduceFrame = true
}

// SetBlinkBreakdown attaches the main-thread breakdown. mainStart is when the
// main thread started on the frame.
func (r *Reporter) SetBlinkBreakdown(b BlinkBreakdown, mainStart time.Time) {
	if !core.Checkf(!r.hasBlinkBreakdown, "blink breakdown of %v set twice", r.args.ID) {
		return
	}
	r.hasBlinkBreakdown = true
	r.blinkBreakdown = b
	r.beginMainStart = mainStart
}

func (r *Reporter) SetVizBreakdown(v VizBreakdown) {
	if !core.Checkf(!r.hasVizBreakdown, "viz breakdown of %v set twice", r.args.ID) {
		return
	}
	r.hasVizBreakdown = true
	r.vizBreakdown = v
}

func (r *Reporter) SetEventsMetrics(events []EventMetrics) {
	if !core.Checkf(!r.hasEvents, "input events of %v set twice", r.args.ID) {
		return
	}
	r.hasEvents = true
	r.events = append([]EventMetrics(nil), events...)
}

// SetPartialUpdate marks a frame that was presented without the main-thread
// update it was waiting for.
func (r *Reporter) SetPartialUpdate() { r.partialUpdate = true }

func (r *Reporter) SetFrameToken(token core.FrameToken) {
	r.frameToken = token
	r.hasFrameToken = true
}

// TerminateFrame ends the frame at t. Only the first call has an effect.
func (r *Reporter) TerminateFrame(status TerminationStatus, t time.Time) {
	if r.terminated {
		return
	}
	if status == DidNotPresentFrame && r.didNotProduceFrame {
		status = DidNotProduceFrame
	}
	r.terminated = true
	r.status = status
	r.frameDone = t
	r.endCurrentStage(t)
}

// Finalize terminates the frame with Unknown if needed and emits its records.
// Calls after the first do nothing.
func (r *Reporter) Finalize() {
	if r.finalized {
		return
	}
	r.finalized = true
	if !r.terminated {
		r.TerminateFrame(Unknown, r.clock.Now())
	}
	if !r.status.emitsStages() {
		r.log.WithField("status", r.status).Debug("frame ended without records")
		return
	}

	r.recordOutcome()
	if len(r.stageHistory) == 0 {
		return
	}

	total := StageData{
		Type:  TotalLatency,
		Start: r.stageHistory[0].Start,
		End:   r.stageHistory[len(r.stageHistory)-1].End,
	}
	var sum time.Duration
	for _, s := range r.stageHistory {
		sum += s.Duration()
	}
	core.Checkf(sum == total.Duration(), "stage durations of %v add up to %v, total is %v", r.args.ID, sum, total.Duration())

	sequences := sequenceNames(r.activeTrackers)
	for _, report := range r.reportTypes() {
		for _, stage := range r.stageHistory {
			r.reportStage(report, sequences, stage)
		}
		r.reportStage(report, sequences, total)
	}

	if r.status == PresentedFrame {
		r.reportEventLatencies()
	}
}

func (r *Reporter) reportTypes() []FrameReportType {
	switch r.status {
	case PresentedFrame:
		types := []FrameReportType{NonDroppedFrame}
		if !r.args.Deadline.IsZero() && r.frameDone.After(r.args.Deadline) {
			types = append(types, MissedDeadlineFrame)
		}
		if r.isCompositorOnly() {
			types = append(types, CompositorOnlyFrame)
		}
		return types
	case DidNotPresentFrame, ReplacedByNewReporter:
		return []FrameReportType{DroppedFrame}
	case Unknown, DidNotProduceFrame:
		return nil
	}
	return nil
}

// isCompositorOnly reports whether the frame carried no main-thread update.
func (r *Reporter) isCompositorOnly() bool {
	if r.didAbortMainFrame {
		return true
	}
	for _, s := range r.stageHistory {
		if s.Type == SendBeginMainFrameToCommit {
			return false
		}
	}
	return true
}

func (r *Reporter) reportStage(report FrameReportType, sequences []string, stage StageData) {
	r.record(report, sequences, stage.Type, "", stage.Duration())

	switch {
	case stage.Type == SendBeginMainFrameToCommit && r.hasBlinkBreakdown:
		for _, sub := range r.blinkBreakdown.subStages(stage.Start, r.beginMainStart) {
			r.record(report, sequences, stage.Type, sub.name, sub.d)
		}
	case stage.Type == SubmitCompositorFrameToPresentationCompositorFrame && r.hasVizBreakdown:
		for _, sub := range r.vizBreakdown.subStages(stage.Start) {
			r.record(report, sequences, stage.Type, sub.name, sub.d)
		}
	}
}

func (r *Reporter) record(report FrameReportType, sequences []string, stage StageType, sub string, d time.Duration) {
	r.sink.RecordDuration(LatencyName(report, "", stage, sub), d)
	for _, seq := range sequences {
		r.sink.RecordDuration(LatencyName(report, seq, stage, sub), d)
	}
}

func (r *Reporter) reportEventLatencies() {
	for _, ev := range r.events {
		if ev.Timestamp.IsZero() {
			continue
		}
		latency := r.frameDone.Sub(ev.Timestamp)
		if !core.Checkf(latency >= 0, "%v event at %v is after frame end %v", ev.Type, ev.Timestamp, r.frameDone) {
			latency = 0
		}
		r.sink.RecordDuration(EventLatencyName(ev.Type), latency)

		if !ev.Type.IsScroll() || !r.hasVizBreakdown || r.vizBreakdown.SwapStart.IsZero() {
			continue
		}
		toSwap := r.vizBreakdown.SwapStart.Sub(ev.Timestamp)
		if toSwap < 0 {
			toSwap = 0
		}
		r.sink.RecordDuration(EventLatencyToSwapBeginName(ev.Type, ev.ScrollInput), toSwap)
	}
}

func (r *Reporter) recordOutcome() {
	if r.outcome == nil {
		return
	}
	switch r.status {
	case PresentedFrame:
		if r.partialUpdate {
			r.outcome.AddFrame(dropped.Partial)
		} else {
			r.outcome.AddFrame(dropped.Complete)
		}
	case DidNotPresentFrame, ReplacedByNewReporter:
		r.outcome.AddFrame(dropped.Dropped)
	case Unknown, DidNotProduceFrame:
	}
}

// CopyReporterAtBeginImplStage forks a reporter for the same begin-frame that
// starts over from the begin-impl stage. It returns nil unless the first
// recorded stage is BeginImplFrameToSendBeginMainFrame and the impl frame has
// finished.
func (r *Reporter) CopyReporterAtBeginImplStage() *Reporter {
	if len(r.stageHistory) == 0 ||
		r.stageHistory[0].Type != BeginImplFrameToSendBeginMainFrame ||
		!r.didFinishImplFrame {
		return nil
	}
	fork := New(r.args, r.clock, r.sink, r.activeTrackers)
	fork.outcome = r.outcome
	fork.current = StageData{Type: BeginImplFrameToSendBeginMainFrame, Start: r.stageHistory[0].Start}
	fork.didFinishImplFrame = true
	fork.implFrameFinish = r.implFrameFinish
	return fork
}

func (r *Reporter) Args() core.BeginFrameArgs { return r.args }

// StageHistory returns a copy of the closed stages.
func (r *Reporter) StageHistory() []StageData {
	return append([]StageData(nil), r.stageHistory...)
}

// CurrentStage returns the open stage; ok is false if none is open.
func (r *Reporter) CurrentStage() (stage StageData, ok bool) {
	return r.current, !r.current.Start.IsZero()
}

func (r *Reporter) IsTerminated() bool                   { return r.terminated }
func (r *Reporter) TerminationStatus() TerminationStatus { return r.status }
func (r *Reporter) FrameDoneTime() time.Time             { return r.frameDone }
func (r *Reporter) DidFinishImplFrame() bool             { return r.didFinishImplFrame }
func (r *Reporter) ImplFrameFinishTime() time.Time       { return r.implFrameFinish }
func (r *Reporter) DidAbortMainFrame() bool              { return r.didAbortMainFrame }

func (r *Reporter) FrameToken() (core.FrameToken, bool) { return r.frameToken, r.hasFrameToken }
