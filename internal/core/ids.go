package core

import (
	"fmt"
	"time"
)

// ManualSourceID is the begin-frame source used for frames requested outside
// the regular display cadence. A tracker never anchors on it.
const ManualSourceID uint64 = 1

// DefaultInterval is the vsync interval assumed when feedback carries none.
const DefaultInterval = time.Second / 60

// BeginFrameID identifies one scheduling tick.
type BeginFrameID struct {
	SourceID       uint64
	SequenceNumber uint64
}

// IsValid reports whether the id refers to a real tick. Sequence numbers start at 1.
func (id BeginFrameID) IsValid() bool { return id.SequenceNumber != 0 }

func (id BeginFrameID) String() string {
	return fmt.Sprintf("%d:%d", id.SourceID, id.SequenceNumber)
}

// BeginFrameArgs describes a scheduling tick as delivered by the scheduler.
type BeginFrameArgs struct {
	ID        BeginFrameID
	FrameTime time.Time
	Deadline  time.Time
	Interval  time.Duration
}

// BeginFrameAck is the compositor's answer to a tick.
type BeginFrameAck struct {
	ID        BeginFrameID
	HasDamage bool
}

// FrameToken identifies a frame handed to the presentation backend. Tokens
// increase monotonically and wrap; compare them with FrameTokenGT only.
type FrameToken uint32

// FrameTokenGT reports whether a was issued after b, treating tokens less than
// half the token space apart as ordered across the wrap.
func FrameTokenGT(a, b FrameToken) bool {
	d := uint32(a - b)
	return d != 0 && d < 1<<31
}

// FrameTokenGE is FrameTokenGT or equality.
func FrameTokenGE(a, b FrameToken) bool {
	return a == b || FrameTokenGT(a, b)
}

// PresentationFeedback describes what happened to a submitted frame.
// Failed means the frame never reached the screen.
type PresentationFeedback struct {
	Timestamp time.Time
	Interval  time.Duration
	Failed    bool
}

// EffectiveInterval returns the feedback interval, or DefaultInterval when unset.
func (f PresentationFeedback) EffectiveInterval() time.Duration {
	if f.Interval <= 0 {
		return DefaultInterval
	}
	return f.Interval
}
