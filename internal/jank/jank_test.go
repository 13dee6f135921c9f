package jank

import (
	"math"
	"testing"
	"time"

	"framemeter/internal/core"
	"framemeter/internal/seqtype"
)

const interval = 16670 * time.Microsecond

func ms(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Millisecond)))
}

func present(m *Metrics, gaps []float64) {
	t := time.Unix(100, 0)
	m.AddPresentedFrame(t, interval)
	for _, g := range gaps {
		t = t.Add(ms(g))
		m.AddPresentedFrame(t, interval)
	}
}

func TestMetrics_SteadyGapsHaveNoJank(t *testing.T) {
	m := New(seqtype.TouchScroll, seqtype.Compositor)
	present(m, []float64{16.67, 16.67, 15, 17, 14, 18})

	if m.JankCount() != 0 {
		t.Errorf("expected 0 jank, got %d", m.JankCount())
	}
}

func TestMetrics_OneLongGapIsJank(t *testing.T) {
	m := New(seqtype.TouchScroll, seqtype.Compositor)
	present(m, []float64{15, 24, 14})

	if m.JankCount() != 1 {
		t.Errorf("expected 1 jank, got %d", m.JankCount())
	}
}

func TestMetrics_FirstGapNeverJank(t *testing.T) {
	m := New(seqtype.TouchScroll, seqtype.Compositor)
	present(m, []float64{100})

	if m.JankCount() != 0 {
		t.Errorf("expected 0 jank without a previous gap, got %d", m.JankCount())
	}
	if m.MaxStale() != ms(100)-interval {
		t.Errorf("expected max stale %v, got %v", ms(100)-interval, m.MaxStale())
	}
}

func TestMetrics_OutOfOrderIgnored(t *testing.T) {
	m := New(seqtype.TouchScroll, seqtype.Compositor)
	base := time.Unix(100, 0)
	m.AddPresentedFrame(base, interval)
	m.AddPresentedFrame(base.Add(ms(16)), interval)
	m.AddPresentedFrame(base.Add(ms(10)), interval)
	m.AddPresentedFrame(base.Add(ms(32)), interval)

	if m.JankCount() != 0 {
		t.Errorf("expected 0 jank, got %d", m.JankCount())
	}
}

func TestMetrics_Report(t *testing.T) {
	m := New(seqtype.WheelScroll, seqtype.Main)
	present(m, []float64{15, 24, 14, 40})
	sink := &core.RecordingSink{}

	m.ReportJankMetrics(sink, 4)

	pct, ok := sink.Percentage("Graphics.Smoothness.Jank.MainThread.WheelScroll")
	if !ok {
		t.Fatal("expected jank percentage record")
	}
	if math.Abs(pct-50) > 1e-9 {
		t.Errorf("expected 50%%, got %.2f%%", pct)
	}
	if _, ok := sink.Duration("Graphics.Smoothness.MaxStale.MainThread.WheelScroll"); !ok {
		t.Error("expected max stale record")
	}
	if m.JankCount() != 0 {
		t.Error("expected counts cleared after report")
	}
}

func TestMetrics_ReportSuppressedForUniversalAndCustom(t *testing.T) {
	for _, ty := range []seqtype.Type{seqtype.Universal, seqtype.Custom} {
		m := New(ty, seqtype.Slower)
		present(m, []float64{15, 40})
		sink := &core.RecordingSink{}

		m.ReportJankMetrics(sink, 10)

		if len(sink.Percentages) != 0 || len(sink.Durations) != 0 {
			t.Errorf("%v: expected no records, got %+v", ty, sink)
		}
	}
}

func TestMetrics_Merge(t *testing.T) {
	a := New(seqtype.TouchScroll, seqtype.Compositor)
	b := New(seqtype.TouchScroll, seqtype.Compositor)
	present(a, []float64{15, 24})
	present(b, []float64{15, 30, 14, 60})

	a.Merge(b)

	if a.JankCount() != 3 {
		t.Errorf("expected 3 jank after merge, got %d", a.JankCount())
	}
	if a.MaxStale() != ms(60)-interval {
		t.Errorf("expected max stale from other, got %v", a.MaxStale())
	}
}
