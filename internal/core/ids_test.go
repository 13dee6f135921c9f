package core

import (
	"math"
	"testing"
	"time"
)

func TestFrameTokenGT(t *testing.T) {
	tests := []struct {
		name string
		a, b FrameToken
		want bool
	}{
		{"simple greater", 5, 3, true},
		{"simple less", 3, 5, false},
		{"equal", 7, 7, false},
		{"across wrap", 2, math.MaxUint32 - 1, true},
		{"behind wrap", math.MaxUint32 - 1, 2, false},
		{"half space apart", 1 << 31, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameTokenGT(tt.a, tt.b); got != tt.want {
				t.Errorf("FrameTokenGT(%d, %d) = %v, expected %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFrameTokenGT_Antisymmetric(t *testing.T) {
	bases := []FrameToken{0, 1, 1000, math.MaxUint32 - 10, 1 << 31}
	offsets := []uint32{1, 2, 100, 1<<31 - 1}
	for _, base := range bases {
		for _, off := range offsets {
			a := base + FrameToken(off)
			if FrameTokenGT(a, base) == FrameTokenGT(base, a) {
				t.Errorf("expected exactly one of GT(%d,%d) and GT(%d,%d)", a, base, base, a)
			}
		}
	}
}

func TestFrameTokenGT_TransitiveAcrossWrap(t *testing.T) {
	run := []FrameToken{math.MaxUint32 - 2, math.MaxUint32 - 1, math.MaxUint32, 0, 1, 2}
	for i := range run {
		for j := i + 1; j < len(run); j++ {
			if !FrameTokenGT(run[j], run[i]) {
				t.Errorf("expected %d after %d", run[j], run[i])
			}
		}
	}
}

func TestFrameTokenGE(t *testing.T) {
	if !FrameTokenGE(4, 4) || !FrameTokenGE(5, 4) || FrameTokenGE(3, 4) {
		t.Error("FrameTokenGE does not match GT-or-equal")
	}
}

func TestPresentationFeedback_EffectiveInterval(t *testing.T) {
	if got := (PresentationFeedback{}).EffectiveInterval(); got != DefaultInterval {
		t.Errorf("expected default interval, got %v", got)
	}
	if got := (PresentationFeedback{Interval: 8 * time.Millisecond}).EffectiveInterval(); got != 8*time.Millisecond {
		t.Errorf("expected 8ms, got %v", got)
	}
}

func TestBeginFrameID(t *testing.T) {
	id := BeginFrameID{SourceID: 3, SequenceNumber: 9}
	if !id.IsValid() {
		t.Error("expected id to be valid")
	}
	if (BeginFrameID{SourceID: 3}).IsValid() {
		t.Error("expected zero sequence to be invalid")
	}
	if id.String() != "3:9" {
		t.Errorf("expected 3:9, got %s", id.String())
	}
}
