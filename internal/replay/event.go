// Package replay feeds recorded pipeline traces through the frame metrics.
//
// A trace is JSON Lines: one object per pipeline event, with an "ev" kind and
// millisecond timestamps ("t_ms") relative to the start of the trace.
package replay

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"framemeter/internal/core"
	"framemeter/internal/reporter"
	"framemeter/internal/seqtype"
)

// Kind is the pipeline event an Event carries.
type Kind uint8

const (
	StartSequence Kind = iota
	StopSequence
	StartCustom
	StopCustom
	Clear
	ScrollingThread
	BeginImpl
	BeginMain
	MainProcessed
	ImplNoDamage
	MainNoDamage
	Pause
	Stage
	FinishImpl
	BlinkBreakdown
	VizBreakdown
	AbortMain
	Submit
	FrameEnd
	Presented
	Input
	kindCount
)

var kindNames = [kindCount]string{
	"start_sequence",
	"stop_sequence",
	"start_custom",
	"stop_custom",
	"clear",
	"scrolling_thread",
	"begin_impl",
	"begin_main",
	"main_processed",
	"impl_no_damage",
	"main_no_damage",
	"pause",
	"stage",
	"finish_impl",
	"blink_breakdown",
	"viz_breakdown",
	"abort_main",
	"submit",
	"frame_end",
	"presented",
	"input",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func parseKind(s string) (Kind, bool) {
	for k := Kind(0); k < kindCount; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return 0, false
}

var (
	ErrInvalidJSON  = errors.New("invalid JSON")
	ErrUnknownEvent = errors.New("unknown event kind")
	ErrMissingField = errors.New("missing field")
	ErrInvalidField = errors.New("invalid field")
)

// ParseError reports the trace line an event could not be parsed from.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Event is one parsed trace line. Offsets are relative to the start of the
// trace; only the fields of the event's Kind are set.
type Event struct {
	Kind Kind
	Line int

	At       time.Duration
	HasTime  bool
	Deadline time.Duration
	Interval time.Duration

	ID     core.BeginFrameID
	MainID core.BeginFrameID
	Origin core.BeginFrameID

	Token          core.FrameToken
	HasDamage      bool
	MissingContent bool
	Failed         bool

	SeqType  seqtype.Type
	Thread   seqtype.Thread
	CustomID int

	Stage        reporter.StageType
	Blink        reporter.BlinkBreakdown
	MainStart    time.Duration
	HasMainStart bool
	// VizPoints are the present viz timestamps, in pipeline order.
	VizPoints []time.Duration

	InputType   reporter.EventType
	ScrollInput reporter.ScrollInputType
}

var blinkFields = [...]string{
	"handle_input_ms",
	"animate_ms",
	"style_ms",
	"layout_ms",
	"prepaint_ms",
	"composite_ms",
	"paint_ms",
	"scrolling_coordinator_ms",
	"composite_commit_ms",
	"update_layers_ms",
}

var vizFields = [...]string{
	"received_ms",
	"draw_start_ms",
	"swap_start_ms",
	"swap_end_ms",
	"presentation_ms",
}

// ParseLine parses one trace line. Errors are not wrapped in ParseError.
func ParseLine(line []byte) (Event, error) {
	if !gjson.ValidBytes(line) {
		return Event{}, ErrInvalidJSON
	}
	doc := gjson.ParseBytes(line)
	name := doc.Get("ev").String()
	kind, ok := parseKind(name)
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}

	ev := Event{Kind: kind}
	if at, ok := millis(doc, "t_ms"); ok {
		ev.At, ev.HasTime = at, true
	}

	var err error
	switch kind {
	case StartSequence, StopSequence:
		ev.SeqType, err = seqTypeField(doc)
	case ScrollingThread:
		if ev.SeqType, err = seqTypeField(doc); err == nil {
			ev.Thread, err = threadField(doc)
		}
	case StartCustom, StopCustom:
		err = requireField(doc, "id")
		ev.CustomID = int(doc.Get("id").Int())
	case BeginImpl:
		if err = requireTime(ev); err == nil {
			ev.ID, err = frameID(doc, "source", "seq")
		}
		ev.Deadline, _ = millis(doc, "deadline_ms")
		ev.Interval, _ = millis(doc, "interval_ms")
	case BeginMain, Stage, FinishImpl, AbortMain, BlinkBreakdown, Input:
		ev.ID, err = frameID(doc, "source", "seq")
		if err == nil && kind != BlinkBreakdown {
			err = requireTime(ev)
		}
		if err != nil {
			break
		}
		switch kind {
		case Stage:
			err = stageField(doc, &ev)
		case BlinkBreakdown:
			ev.Blink = blinkField(doc)
			ev.MainStart, ev.HasMainStart = millis(doc, "main_start_ms")
		case Input:
			err = inputField(doc, &ev)
		}
	case MainProcessed, ImplNoDamage, MainNoDamage:
		ev.ID, err = frameID(doc, "source", "seq")
	case FrameEnd:
		if ev.ID, err = frameID(doc, "source", "seq"); err == nil {
			ev.MainID = optionalFrameID(doc, "main_source", "main_seq")
		}
	case Submit:
		if ev.ID, err = frameID(doc, "source", "seq"); err != nil {
			break
		}
		if err = requireField(doc, "token"); err != nil {
			break
		}
		ev.Token = core.FrameToken(doc.Get("token").Uint())
		ev.Origin = optionalFrameID(doc, "origin_source", "origin_seq")
		ev.MissingContent = doc.Get("missing_content").Bool()
		ev.HasDamage = true
		if d := doc.Get("has_damage"); d.Exists() {
			ev.HasDamage = d.Bool()
		}
	case VizBreakdown:
		if err = requireField(doc, "token"); err != nil {
			break
		}
		ev.Token = core.FrameToken(doc.Get("token").Uint())
		for _, f := range vizFields {
			at, ok := millis(doc, f)
			if !ok {
				break
			}
			ev.VizPoints = append(ev.VizPoints, at)
		}
	case Presented:
		if err = requireField(doc, "token"); err != nil {
			break
		}
		if err = requireTime(ev); err != nil {
			break
		}
		ev.Token = core.FrameToken(doc.Get("token").Uint())
		ev.Interval, _ = millis(doc, "interval_ms")
		ev.Failed = doc.Get("failed").Bool()
	case Clear, Pause:
	}
	if err != nil {
		return Event{}, fmt.Errorf("%s: %w", kind, err)
	}
	return ev, nil
}

// millis reads a millisecond field as a duration, rounded to the nanosecond.
func millis(doc gjson.Result, key string) (time.Duration, bool) {
	v := doc.Get(key)
	if !v.Exists() || v.Type != gjson.Number {
		return 0, false
	}
	return time.Duration(math.Round(v.Float() * float64(time.Millisecond))), true
}

func requireField(doc gjson.Result, key string) error {
	if !doc.Get(key).Exists() {
		return fmt.Errorf("%w %q", ErrMissingField, key)
	}
	return nil
}

func requireTime(ev Event) error {
	if !ev.HasTime {
		return fmt.Errorf("%w %q", ErrMissingField, "t_ms")
	}
	return nil
}

func frameID(doc gjson.Result, sourceKey, seqKey string) (core.BeginFrameID, error) {
	if err := requireField(doc, seqKey); err != nil {
		return core.BeginFrameID{}, err
	}
	id := core.BeginFrameID{
		SourceID:       doc.Get(sourceKey).Uint(),
		SequenceNumber: doc.Get(seqKey).Uint(),
	}
	if !id.IsValid() {
		return id, fmt.Errorf("%w %q: sequence numbers start at 1", ErrInvalidField, seqKey)
	}
	return id, nil
}

func optionalFrameID(doc gjson.Result, sourceKey, seqKey string) core.BeginFrameID {
	if !doc.Get(seqKey).Exists() {
		return core.BeginFrameID{}
	}
	return core.BeginFrameID{
		SourceID:       doc.Get(sourceKey).Uint(),
		SequenceNumber: doc.Get(seqKey).Uint(),
	}
}

func seqTypeField(doc gjson.Result) (seqtype.Type, error) {
	if err := requireField(doc, "type"); err != nil {
		return 0, err
	}
	t, err := seqtype.ParseType(doc.Get("type").String())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return t, nil
}

func threadField(doc gjson.Result) (seqtype.Thread, error) {
	if err := requireField(doc, "thread"); err != nil {
		return 0, err
	}
	th, err := seqtype.ParseThread(doc.Get("thread").String())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return th, nil
}

func stageField(doc gjson.Result, ev *Event) error {
	if err := requireField(doc, "stage"); err != nil {
		return err
	}
	name := doc.Get("stage").String()
	st, ok := reporter.ParseStageType(name)
	if !ok || st == reporter.TotalLatency {
		return fmt.Errorf("%w: stage %q", ErrInvalidField, name)
	}
	ev.Stage = st
	return nil
}

func blinkField(doc gjson.Result) reporter.BlinkBreakdown {
	var d [len(blinkFields)]time.Duration
	for i, f := range blinkFields {
		d[i], _ = millis(doc, f)
	}
	return reporter.BlinkBreakdown{
		HandleInputEvents:    d[0],
		Animate:              d[1],
		StyleUpdate:          d[2],
		LayoutUpdate:         d[3],
		Prepaint:             d[4],
		Composite:            d[5],
		Paint:                d[6],
		ScrollingCoordinator: d[7],
		CompositeCommit:      d[8],
		UpdateLayers:         d[9],
	}
}

func inputField(doc gjson.Result, ev *Event) error {
	if err := requireField(doc, "type"); err != nil {
		return err
	}
	et, err := reporter.ParseEventType(doc.Get("type").String())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	ev.InputType = et
	if s := doc.Get("scroll_input"); s.Exists() {
		si, err := reporter.ParseScrollInputType(s.String())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidField, err)
		}
		ev.ScrollInput = si
	}
	return nil
}
