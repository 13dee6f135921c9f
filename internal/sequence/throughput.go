package sequence

import (
	"fmt"

	"framemeter/internal/core"
)

// ThroughputData counts frames expected versus produced on one thread.
// FramesProduced never exceeds FramesExpected.
type ThroughputData struct {
	FramesExpected uint32 `json:"framesExpected"`
	FramesProduced uint32 `json:"framesProduced"`
}

// Merge adds other's counts.
func (d *ThroughputData) Merge(other ThroughputData) {
	d.FramesExpected += other.FramesExpected
	d.FramesProduced += other.FramesProduced
}

// DroppedPercent returns the percent of expected frames that were not produced.
func (d ThroughputData) DroppedPercent() float64 {
	if d.FramesExpected == 0 {
		return 0
	}
	produced := d.FramesProduced
	if !core.Checkf(produced <= d.FramesExpected, "frames produced %d exceed expected %d", produced, d.FramesExpected) {
		produced = d.FramesExpected
	}
	return 100 * float64(d.FramesExpected-produced) / float64(d.FramesExpected)
}

// IsEmpty reports whether nothing was expected.
func (d ThroughputData) IsEmpty() bool {
	return d.FramesExpected == 0 && d.FramesProduced == 0
}

func (d ThroughputData) String() string {
	return fmt.Sprintf("%d/%d", d.FramesProduced, d.FramesExpected)
}

// AddExpected adds n expected frames.
func (d *ThroughputData) AddExpected(n uint32) {
	d.FramesExpected += n
}

// RemoveExpected takes n expected frames back without going below produced
// plus reserved frames that are already owed a produced count. On failure the
// count is clamped to that floor.
func (d *ThroughputData) RemoveExpected(n, reserved uint32) bool {
	floor := d.FramesProduced + reserved
	if !core.Checkf(d.FramesExpected >= floor+n, "cannot remove %d expected frames from %v (reserved %d)", n, d, reserved) {
		if d.FramesExpected > floor {
			d.FramesExpected = floor
		}
		return false
	}
	d.FramesExpected -= n
	return true
}

// AddProduced counts one produced frame unless that would exceed expected.
func (d *ThroughputData) AddProduced() bool {
	if !core.Checkf(d.FramesProduced < d.FramesExpected, "produced frame would exceed expected (%v)", d) {
		return false
	}
	d.FramesProduced++
	return true
}
