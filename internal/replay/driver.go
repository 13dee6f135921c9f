package replay

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"framemeter/internal/core"
	"framemeter/internal/dropped"
	"framemeter/internal/ratelimit"
	"framemeter/internal/reporter"
	"framemeter/internal/sequence"
	"framemeter/internal/tracker"
)

// Options configure a Driver. Zero values select defaults.
type Options struct {
	Sink            core.Sink
	Sampler         sequence.SummarySampler
	Settings        tracker.Settings
	Pacer           *ratelimit.Pacer
	Publisher       dropped.Publisher
	DefaultInterval time.Duration
	// Base is the wall time trace offsets are added to.
	Base time.Time
	Name string
}

type frame struct {
	rep      *reporter.Reporter
	inputs   []reporter.EventMetrics
	token    core.FrameToken
	noDamage bool
	// implDone is set once the compositor side of the tick went its own way
	// and only the main-thread update is still followed.
	implDone bool
}

// mainInFlight reports whether the main-thread update of f was sent and has
// not reached the compositor yet.
func (f *frame) mainInFlight() bool {
	if f.rep.DidAbortMainFrame() {
		return false
	}
	cur, ok := f.rep.CurrentStage()
	if !ok {
		return false
	}
	switch cur.Type {
	case reporter.SendBeginMainFrameToCommit, reporter.Commit, reporter.EndCommitToActivation:
		return true
	}
	return false
}

// Driver replays one trace through a Collection, one Reporter per begin-frame
// and a dropped-frame Counter, on a clock driven by the trace timestamps.
// Apply and Finish must be called from one goroutine; Processed may be read
// from any goroutine.
type Driver struct {
	clock           *core.FakeClock
	base            time.Time
	sink            core.Sink
	collection      *tracker.Collection
	counter         *dropped.Counter
	pacer           *ratelimit.Pacer
	defaultInterval time.Duration
	log             *logrus.Entry

	pending   map[core.BeginFrameID]*frame
	submitted []*frame

	customResults map[int]sequence.ThroughputData
	processed     atomic.Uint64
	finished      bool
}

func NewDriver(opts Options) *Driver {
	if opts.Sink == nil {
		opts.Sink = core.NullSink
	}
	if opts.Settings == (tracker.Settings{}) {
		opts.Settings = tracker.DefaultSettings()
	}
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = core.DefaultInterval
	}
	if opts.Base.IsZero() {
		opts.Base = time.Unix(0, 0).UTC()
	}
	counter := dropped.NewCounter()
	if opts.Publisher != nil {
		counter.SetPublisher(opts.Publisher)
	}
	return &Driver{
		clock:           core.NewFakeClock(opts.Base),
		base:            opts.Base,
		sink:            opts.Sink,
		collection:      tracker.NewCollection(opts.Sink, opts.Sampler, opts.Settings),
		counter:         counter,
		pacer:           opts.Pacer,
		defaultInterval: opts.DefaultInterval,
		log:             core.Logger().WithFields(logrus.Fields{"component": "replay", "trace": opts.Name}),
		pending:         make(map[core.BeginFrameID]*frame),
		customResults:   make(map[int]sequence.ThroughputData),
	}
}

// Run applies every event of r, then finishes the replay. A malformed line
// stops the replay with a *ParseError; events before it stay applied.
func (d *Driver) Run(ctx context.Context, r io.Reader) error {
	defer d.Finish()
	rd := NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if d.pacer != nil {
			if err := d.pacer.Wait(ctx); err != nil {
				return err
			}
		}
		d.Apply(ev)
	}
}

func (d *Driver) at(offset time.Duration) time.Time {
	return d.base.Add(offset)
}

// Apply feeds one event to the pipeline. Events about frames the driver does
// not know are passed to the trackers and otherwise ignored.
func (d *Driver) Apply(ev Event) {
	d.processed.Add(1)
	t := d.clock.Now()
	if ev.HasTime {
		t = d.at(ev.At)
		d.clock.Set(t)
	}
	c := d.collection

	switch ev.Kind {
	case StartSequence:
		c.StartSequence(ev.SeqType)
	case StopSequence:
		c.StopSequence(ev.SeqType)
	case StartCustom:
		c.StartCustomSequence(ev.CustomID)
	case StopCustom:
		c.StopCustomSequence(ev.CustomID)
		d.takeCustomResults()
	case Clear:
		c.ClearAll()
	case ScrollingThread:
		c.SetScrollingThread(ev.SeqType, ev.Thread)

	case BeginImpl:
		d.beginImpl(ev, t)
	case BeginMain:
		c.NotifyBeginMainFrame(ev.ID)
		if f, ok := d.pending[ev.ID]; ok {
			f.rep.StartStage(reporter.SendBeginMainFrameToCommit, t)
		}
	case MainProcessed:
		c.NotifyMainFrameProcessed(ev.ID)
	case ImplNoDamage:
		c.NotifyImplFrameCausedNoDamage(core.BeginFrameAck{ID: ev.ID, HasDamage: false})
		if f, ok := d.pending[ev.ID]; ok && !f.implDone {
			d.markNoDamage(f)
		}
	case MainNoDamage:
		c.NotifyMainFrameCausedNoDamage(ev.ID)
		if f, ok := d.pending[ev.ID]; ok && f.implDone {
			d.endMainOnly(ev.ID, f, t)
		}
	case Pause:
		c.NotifyPauseFrameProduction()

	case Stage:
		if f, ok := d.frameFor(ev); ok {
			f.rep.StartStage(ev.Stage, t)
		}
	case FinishImpl:
		if f, ok := d.frameFor(ev); ok {
			f.rep.OnFinishImplFrame(t)
		}
	case AbortMain:
		if f, ok := d.frameFor(ev); ok {
			f.rep.OnAbortBeginMainFrame(t)
			if f.implDone {
				d.endMainOnly(ev.ID, f, t)
			}
		}
	case BlinkBreakdown:
		if f, ok := d.frameFor(ev); ok {
			var mainStart time.Time
			if ev.HasMainStart {
				mainStart = d.at(ev.MainStart)
			}
			f.rep.SetBlinkBreakdown(ev.Blink, mainStart)
		}
	case Input:
		if f, ok := d.frameFor(ev); ok {
			f.inputs = append(f.inputs, reporter.EventMetrics{
				Type:        ev.InputType,
				Timestamp:   t,
				ScrollInput: ev.ScrollInput,
			})
		}

	case Submit:
		d.submit(ev, t)
	case FrameEnd:
		c.NotifyFrameEnd(ev.ID, ev.MainID)
		d.frameEnd(ev, t)
	case VizBreakdown:
		d.vizBreakdown(ev)
	case Presented:
		d.presented(ev, t)
	}
}

func (d *Driver) frameFor(ev Event) (*frame, bool) {
	f, ok := d.pending[ev.ID]
	if !ok {
		d.log.WithFields(logrus.Fields{"line": ev.Line, "ev": ev.Kind.String(), "frame": ev.ID.String()}).Debug("event for unknown frame ignored")
	}
	return f, ok
}

func (d *Driver) beginImpl(ev Event, t time.Time) {
	interval := ev.Interval
	if interval <= 0 {
		interval = d.defaultInterval
	}
	args := core.BeginFrameArgs{
		ID:        ev.ID,
		FrameTime: t,
		Deadline:  t.Add(interval),
		Interval:  interval,
	}
	if ev.Deadline > 0 {
		args.Deadline = d.at(ev.Deadline)
	}

	d.collection.NotifyBeginImplFrame(args)
	d.replaceStale(ev.ID, t)

	rep := reporter.New(args, d.clock, d.sink, d.collection.ActiveTrackerTypes())
	rep.SetFrameOutcomeRecorder(d.counter)
	rep.StartStage(reporter.BeginImplFrameToSendBeginMainFrame, t)
	d.pending[ev.ID] = &frame{rep: rep}
}

// replaceStale ends every pending frame that is still on the compositor side,
// and any frame of the same tick, as replaced by the frame of id.
func (d *Driver) replaceStale(id core.BeginFrameID, t time.Time) {
	var stale []core.BeginFrameID
	for pid, f := range d.pending {
		if pid == id || !f.implDone {
			stale = append(stale, pid)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].SequenceNumber < stale[j].SequenceNumber })
	for _, pid := range stale {
		f := d.pending[pid]
		delete(d.pending, pid)
		f.rep.TerminateFrame(reporter.ReplacedByNewReporter, t)
		f.rep.Finalize()
	}
}

func (d *Driver) markNoDamage(f *frame) {
	if f.noDamage {
		return
	}
	f.noDamage = true
	f.rep.OnDidNotProduceFrame()
}

// forkImpl splits the compositor side of f into its own reporter when the
// main-thread update of f is still in flight. f then follows the main thread
// only and no longer feeds the dropped-frame counter.
func (d *Driver) forkImpl(f *frame) *reporter.Reporter {
	if f.implDone || !f.mainInFlight() {
		return nil
	}
	fork := f.rep.CopyReporterAtBeginImplStage()
	if fork == nil {
		return nil
	}
	if f.noDamage {
		fork.OnDidNotProduceFrame()
	}
	f.rep.SetFrameOutcomeRecorder(nil)
	f.implDone = true
	return fork
}

func (d *Driver) submit(ev Event, t time.Time) {
	d.collection.NotifySubmitFrame(ev.Token, ev.MissingContent, core.BeginFrameAck{ID: ev.ID, HasDamage: ev.HasDamage}, ev.Origin)

	if f, ok := d.pending[ev.ID]; ok && !f.implDone {
		if fork := d.forkImpl(f); fork != nil {
			// Shown without the main-thread update it was waiting for.
			d.submitFrame(&frame{rep: fork, inputs: f.inputs}, ev, t, true)
			f.inputs = nil
		} else {
			delete(d.pending, ev.ID)
			d.submitFrame(f, ev, t, ev.MissingContent)
		}
	}

	// The main-thread update of an earlier tick reaches the screen with this
	// frame.
	if ev.Origin.IsValid() && ev.Origin != ev.ID {
		if f, ok := d.pending[ev.Origin]; ok && f.implDone {
			delete(d.pending, ev.Origin)
			d.submitFrame(f, ev, t, ev.MissingContent)
		}
	}
}

func (d *Driver) submitFrame(f *frame, ev Event, t time.Time, partial bool) {
	f.token = ev.Token
	f.rep.SetFrameToken(ev.Token)
	if partial {
		f.rep.SetPartialUpdate()
	}
	if len(f.inputs) > 0 {
		f.rep.SetEventsMetrics(f.inputs)
	}
	f.rep.StartStage(reporter.SubmitCompositorFrameToPresentationCompositorFrame, t)
	d.submitted = append(d.submitted, f)
}

// frameEnd ends a tick that submitted nothing. A main-thread update still in
// flight keeps the frame pending; only its compositor side is dropped.
func (d *Driver) frameEnd(ev Event, t time.Time) {
	f, ok := d.pending[ev.ID]
	if !ok || f.implDone {
		return
	}
	if fork := d.forkImpl(f); fork != nil {
		fork.TerminateFrame(reporter.DidNotPresentFrame, t)
		fork.Finalize()
		return
	}
	delete(d.pending, ev.ID)
	f.rep.TerminateFrame(reporter.DidNotPresentFrame, t)
	f.rep.Finalize()
}

// endMainOnly ends a frame that was only waiting on a main-thread update
// which turned out to have nothing to show.
func (d *Driver) endMainOnly(id core.BeginFrameID, f *frame, t time.Time) {
	delete(d.pending, id)
	d.markNoDamage(f)
	f.rep.TerminateFrame(reporter.DidNotPresentFrame, t)
	f.rep.Finalize()
}

func (d *Driver) vizBreakdown(ev Event) {
	for _, f := range d.submitted {
		if f.token != ev.Token {
			continue
		}
		var points [5]time.Time
		for i, p := range ev.VizPoints {
			if i < len(points) {
				points[i] = d.at(p)
			}
		}
		f.rep.SetVizBreakdown(reporter.VizBreakdown{
			ReceivedCompositorFrame: points[0],
			DrawStart:               points[1],
			SwapStart:               points[2],
			SwapEnd:                 points[3],
			Presentation:            points[4],
		})
		return
	}
}

// presented ends every submitted frame up to ev.Token. Earlier frames that
// got no feedback of their own were not displayed.
func (d *Driver) presented(ev Event, t time.Time) {
	d.collection.NotifyFramePresented(ev.Token, core.PresentationFeedback{
		Timestamp: t,
		Interval:  ev.Interval,
		Failed:    ev.Failed,
	})

	kept := d.submitted[:0]
	for _, f := range d.submitted {
		if !core.FrameTokenGE(ev.Token, f.token) {
			kept = append(kept, f)
			continue
		}
		status := reporter.DidNotPresentFrame
		if f.token == ev.Token && !ev.Failed {
			status = reporter.PresentedFrame
		}
		f.rep.TerminateFrame(status, t)
		f.rep.Finalize()
	}
	for i := len(kept); i < len(d.submitted); i++ {
		d.submitted[i] = nil
	}
	d.submitted = kept
}

func (d *Driver) takeCustomResults() {
	for id, r := range d.collection.TakeCustomTrackerResults() {
		acc := d.customResults[id]
		acc.Merge(r)
		d.customResults[id] = acc
	}
}

// Finish reports every tracker and ends every open frame. Frames without
// feedback end as Unknown and emit nothing. Calls after the first do nothing.
func (d *Driver) Finish() {
	if d.finished {
		return
	}
	d.finished = true
	d.collection.Flush()
	d.takeCustomResults()
	for id, f := range d.pending {
		f.rep.Finalize()
		delete(d.pending, id)
	}
	for _, f := range d.submitted {
		f.rep.Finalize()
	}
	d.submitted = nil
	for id, r := range d.customResults {
		d.log.WithFields(logrus.Fields{"custom_id": id, "throughput": r.String()}).Info("custom sequence finished")
	}
}

// Processed returns how many events have been applied.
func (d *Driver) Processed() uint64 { return d.processed.Load() }

// Counter returns the dropped-frame counter fed by the replayed frames.
func (d *Driver) Counter() *dropped.Counter { return d.counter }

// Collection returns the tracker collection the replay drives.
func (d *Driver) Collection() *tracker.Collection { return d.collection }

// CustomResults returns the main-thread throughput of every custom sequence
// that finished.
func (d *Driver) CustomResults() map[int]sequence.ThroughputData {
	out := make(map[int]sequence.ThroughputData, len(d.customResults))
	for id, r := range d.customResults {
		out[id] = r
	}
	return out
}
