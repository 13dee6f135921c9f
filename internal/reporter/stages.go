package reporter

import (
	"time"

	"framemeter/internal/core"
)

// StageType is one step of the frame pipeline.
type StageType uint8

const (
	BeginImplFrameToSendBeginMainFrame StageType = iota
	SendBeginMainFrameToCommit
	Commit
	EndCommitToActivation
	Activation
	EndActivateToSubmitCompositorFrame
	SubmitCompositorFrameToPresentationCompositorFrame
	// TotalLatency spans the whole history and is only added on emission.
	TotalLatency
	stageTypeCount
)

func (s StageType) IsValid() bool { return s < stageTypeCount }

func (s StageType) String() string {
	switch s {
	case BeginImplFrameToSendBeginMainFrame:
		return "BeginImplFrameToSendBeginMainFrame"
	case SendBeginMainFrameToCommit:
		return "SendBeginMainFrameToCommit"
	case Commit:
		return "Commit"
	case EndCommitToActivation:
		return "EndCommitToActivation"
	case Activation:
		return "Activation"
	case EndActivateToSubmitCompositorFrame:
		return "EndActivateToSubmitCompositorFrame"
	case SubmitCompositorFrameToPresentationCompositorFrame:
		return "SubmitCompositorFrameToPresentationCompositorFrame"
	case TotalLatency:
		return "TotalLatency"
	}
	core.Checkf(false, "unknown stage type %d", uint8(s))
	return "Invalid"
}

// ParseStageType maps a name produced by String back to its StageType.
func ParseStageType(name string) (StageType, bool) {
	for s := StageType(0); s < stageTypeCount; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// StageData is one closed stage. End is never before Start.
type StageData struct {
	Type  StageType
	Start time.Time
	End   time.Time
}

func (d StageData) Duration() time.Duration {
	if d.End.Before(d.Start) {
		return 0
	}
	return d.End.Sub(d.Start)
}

// TerminationStatus is how a frame reporter ended.
type TerminationStatus uint8

const (
	// Unknown is used when a reporter is finalized without being terminated.
	Unknown TerminationStatus = iota
	PresentedFrame
	DidNotPresentFrame
	ReplacedByNewReporter
	DidNotProduceFrame
)

func (s TerminationStatus) String() string {
	switch s {
	case Unknown:
		return "Unknown"
	case PresentedFrame:
		return "PresentedFrame"
	case DidNotPresentFrame:
		return "DidNotPresentFrame"
	case ReplacedByNewReporter:
		return "ReplacedByNewReporter"
	case DidNotProduceFrame:
		return "DidNotProduceFrame"
	}
	return "Invalid"
}

// emitsStages reports whether frames ending with s produce stage records.
func (s TerminationStatus) emitsStages() bool {
	switch s {
	case PresentedFrame, DidNotPresentFrame, ReplacedByNewReporter:
		return true
	case Unknown, DidNotProduceFrame:
		return false
	}
	return false
}

// FrameReportType partitions stage records by frame outcome.
type FrameReportType uint8

const (
	NonDroppedFrame FrameReportType = iota
	MissedDeadlineFrame
	DroppedFrame
	CompositorOnlyFrame
)

// String returns the name segment used in record names; it is empty for
// NonDroppedFrame.
func (r FrameReportType) String() string {
	switch r {
	case NonDroppedFrame:
		return ""
	case MissedDeadlineFrame:
		return "MissedDeadlineFrame"
	case DroppedFrame:
		return "DroppedFrame"
	case CompositorOnlyFrame:
		return "CompositorOnlyFrame"
	}
	return "Invalid"
}
