package reporter

import (
	"strings"

	"framemeter/internal/seqtype"
)

const (
	latencyPrefix = "CompositorLatency"
	eventPrefix   = "EventLatency"
)

// LatencyName builds CompositorLatency.[report.][sequence.]stage[.sub].
// A zero-valued sequence name or sub-stage is left out.
func LatencyName(report FrameReportType, sequence string, stage StageType, sub string) string {
	var b strings.Builder
	b.WriteString(latencyPrefix)
	for _, part := range [...]string{report.String(), sequence, stage.String(), sub} {
		if part == "" {
			continue
		}
		b.WriteByte('.')
		b.WriteString(part)
	}
	return b.String()
}

// EventLatencyName is the end-to-end latency record of an input event type.
func EventLatencyName(e EventType) string {
	return eventPrefix + "." + e.String() + ".TotalLatency"
}

// EventLatencyToSwapBeginName is the latency record from a scroll event to the
// start of the buffer swap.
func EventLatencyToSwapBeginName(e EventType, input ScrollInputType) string {
	return eventPrefix + "." + e.String() + "." + input.String() + ".TotalLatencyToSwapBegin"
}

// sequenceNames returns the name segments of the sequence types reported
// alongside the unpartitioned records.
func sequenceNames(types []seqtype.Type) []string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		if t == seqtype.Custom || !t.IsValid() {
			continue
		}
		names = append(names, t.String())
	}
	return names
}
