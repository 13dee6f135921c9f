package replay

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framemeter/internal/core"
	"framemeter/internal/reporter"
	"framemeter/internal/seqtype"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, ev Event)
	}{
		{
			name: "begin impl",
			line: `{"ev":"begin_impl","source":7,"seq":10,"t_ms":160.5,"deadline_ms":170,"interval_ms":16.6}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, BeginImpl, ev.Kind)
				assert.Equal(t, core.BeginFrameID{SourceID: 7, SequenceNumber: 10}, ev.ID)
				assert.Equal(t, 160500*time.Microsecond, ev.At)
				assert.True(t, ev.HasTime)
				assert.Equal(t, 170*time.Millisecond, ev.Deadline)
				assert.Equal(t, 16600*time.Microsecond, ev.Interval)
			},
		},
		{
			name: "submit defaults to damage",
			line: `{"ev":"submit","source":7,"seq":10,"token":42,"t_ms":1,"origin_source":7,"origin_seq":9}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, core.FrameToken(42), ev.Token)
				assert.True(t, ev.HasDamage)
				assert.False(t, ev.MissingContent)
				assert.Equal(t, core.BeginFrameID{SourceID: 7, SequenceNumber: 9}, ev.Origin)
			},
		},
		{
			name: "submit without damage",
			line: `{"ev":"submit","source":7,"seq":10,"token":42,"has_damage":false,"missing_content":true}`,
			check: func(t *testing.T, ev Event) {
				assert.False(t, ev.HasDamage)
				assert.True(t, ev.MissingContent)
				assert.False(t, ev.Origin.IsValid())
			},
		},
		{
			name: "scrolling thread",
			line: `{"ev":"scrolling_thread","type":"TouchScroll","thread":"main"}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, seqtype.TouchScroll, ev.SeqType)
				assert.Equal(t, seqtype.Main, ev.Thread)
			},
		},
		{
			name: "stage",
			line: `{"ev":"stage","source":7,"seq":10,"stage":"Commit","t_ms":5}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, reporter.Commit, ev.Stage)
			},
		},
		{
			name: "blink breakdown",
			line: `{"ev":"blink_breakdown","source":7,"seq":10,"animate_ms":2,"paint_ms":1.5,"main_start_ms":3}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, 2*time.Millisecond, ev.Blink.Animate)
				assert.Equal(t, 1500*time.Microsecond, ev.Blink.Paint)
				assert.True(t, ev.HasMainStart)
				assert.Equal(t, 3*time.Millisecond, ev.MainStart)
				assert.False(t, ev.HasTime)
			},
		},
		{
			name: "viz points stop at the first gap",
			line: `{"ev":"viz_breakdown","token":3,"received_ms":1,"draw_start_ms":2,"swap_end_ms":4}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, ev.VizPoints)
			},
		},
		{
			name: "input",
			line: `{"ev":"input","source":7,"seq":10,"type":"GestureScrollUpdate","scroll_input":"touch","t_ms":1}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, reporter.GestureScrollUpdate, ev.InputType)
				assert.Equal(t, reporter.Touchscreen, ev.ScrollInput)
			},
		},
		{
			name: "presented",
			line: `{"ev":"presented","token":4,"t_ms":30,"failed":true}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, core.FrameToken(4), ev.Token)
				assert.True(t, ev.Failed)
				assert.Zero(t, ev.Interval)
			},
		},
		{
			name: "custom",
			line: `{"ev":"start_custom","id":12}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, 12, ev.CustomID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseLine([]byte(tt.line))
			require.NoError(t, err)
			tt.check(t, ev)
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"invalid json", `{"ev":`, ErrInvalidJSON},
		{"unknown kind", `{"ev":"teleport"}`, ErrUnknownEvent},
		{"missing seq", `{"ev":"begin_main","source":7,"t_ms":1}`, ErrMissingField},
		{"zero seq", `{"ev":"main_processed","source":7,"seq":0}`, ErrInvalidField},
		{"missing time", `{"ev":"begin_impl","source":7,"seq":1}`, ErrMissingField},
		{"missing token", `{"ev":"presented","t_ms":1}`, ErrMissingField},
		{"total latency is not a stage", `{"ev":"stage","source":7,"seq":1,"stage":"TotalLatency","t_ms":1}`, ErrInvalidField},
		{"unknown sequence", `{"ev":"start_sequence","type":"Teleport"}`, ErrInvalidField},
		{"unknown input", `{"ev":"input","source":7,"seq":1,"type":"Sneeze","t_ms":1}`, ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine([]byte(tt.line))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadAll(t *testing.T) {
	trace := `{"ev":"start_sequence","type":"Video"}

{"ev":"pause"}
`
	events, err := ReadAll(strings.NewReader(trace))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Line)
	assert.Equal(t, 3, events[1].Line)
	assert.Equal(t, Pause, events[1].Kind)
}

func TestReadAllReportsLine(t *testing.T) {
	trace := "{\"ev\":\"pause\"}\n{\"ev\":\"nope\"}\n{\"ev\":\"pause\"}\n"
	events, err := ReadAll(strings.NewReader(trace))
	require.Error(t, err)
	assert.Len(t, events, 1)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Contains(t, err.Error(), "line 2")
}

func TestKindNamesRoundTrip(t *testing.T) {
	for k := Kind(0); k < kindCount; k++ {
		got, ok := parseKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}
}
