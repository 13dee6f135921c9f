package collector

import (
	"sync"
	"testing"
	"time"

	"framemeter/internal/core"
)

func TestCollector_CollectsRecords(t *testing.T) {
	c := NewCollector()
	c.RecordDuration("CompositorLatency.TotalLatency", 10*time.Millisecond)
	c.RecordPercentage("Graphics.Smoothness.PercentDroppedFrames.AllSequences", 12.5)
	c.RecordTrace(core.TraceEvent{Name: "FrameSequenceTracker.Summary", Category: "RAF"})
	c.Close()

	records := c.Records()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Kind != KindDuration || records[0].Duration != 10*time.Millisecond {
		t.Errorf("expected duration record first, got %+v", records[0])
	}
	if records[1].Kind != KindPercentage || records[1].Percent != 12.5 {
		t.Errorf("expected percentage record second, got %+v", records[1])
	}
	if records[2].Trace == nil || records[2].Trace.Category != "RAF" {
		t.Errorf("expected trace record third, got %+v", records[2])
	}
}

func TestCollector_Compute(t *testing.T) {
	c := NewCollector()
	c.RecordDuration("a", 10*time.Millisecond)
	c.RecordDuration("a", 20*time.Millisecond)
	c.RecordDuration("b", 30*time.Millisecond)
	c.RecordPercentage("p", 50)
	c.Close()

	m := c.Compute()
	if m.TotalRecords != 4 {
		t.Errorf("expected 4 records, got %d", m.TotalRecords)
	}
	if m.Durations["a"].Count != 2 {
		t.Errorf("expected 2 samples for a, got %d", m.Durations["a"].Count)
	}
	if m.Durations["b"].Duration.Max != 30*time.Millisecond {
		t.Errorf("expected max 30ms for b, got %v", m.Durations["b"].Duration.Max)
	}
	if m.Percentages["p"].Avg != 50 {
		t.Errorf("expected avg 50 for p, got %v", m.Percentages["p"].Avg)
	}
}

func TestCollector_ThreadSafety(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	numGoroutines := 100
	recordsPerGoroutine := 50

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerGoroutine; j++ {
				c.RecordDuration("stage", time.Millisecond)
			}
		}()
	}

	wg.Wait()
	c.Close()

	expected := numGoroutines * recordsPerGoroutine
	if len(c.Records()) != expected {
		t.Errorf("expected %d records, got %d", expected, len(c.Records()))
	}
	if c.DroppedRecords() != 0 {
		t.Errorf("expected no dropped records, got %d", c.DroppedRecords())
	}
}

func TestCollector_KeepsRecordsBeyondBuffer(t *testing.T) {
	c := NewCollector()
	n := 3*recordBuffer + 7
	for i := 0; i < n; i++ {
		c.RecordDuration("stage", time.Duration(i)*time.Microsecond)
	}
	c.Close()

	m := c.Compute()
	if m.TotalRecords != n {
		t.Errorf("expected %d records, got %d", n, m.TotalRecords)
	}
	if m.DroppedRecords != 0 {
		t.Errorf("expected no dropped records, got %d", m.DroppedRecords)
	}
	if m.Durations["stage"].Count != n {
		t.Errorf("expected stage count %d, got %d", n, m.Durations["stage"].Count)
	}
}

func TestCollector_RecordAfterCloseIsDropped(t *testing.T) {
	c := NewCollector()
	c.Close()
	c.RecordDuration("late", time.Millisecond)
	c.Close()

	if len(c.Records()) != 0 {
		t.Errorf("expected no records, got %d", len(c.Records()))
	}
	if c.DroppedRecords() != 1 {
		t.Errorf("expected 1 dropped record, got %d", c.DroppedRecords())
	}
}

func TestCollector_DurationFrozenAfterClose(t *testing.T) {
	c := NewCollector()
	c.Close()
	d1 := c.Duration()
	time.Sleep(5 * time.Millisecond)
	d2 := c.Duration()
	if d1 != d2 {
		t.Errorf("expected duration to stay at %v after close, got %v", d1, d2)
	}
}

func TestCollector_UsableAsMultiSinkMember(t *testing.T) {
	c := NewCollector()
	rec := &core.RecordingSink{}
	sink := core.MultiSink{c, rec}
	sink.RecordDuration("x", time.Millisecond)
	c.Close()

	if len(c.Records()) != 1 {
		t.Errorf("expected 1 collected record, got %d", len(c.Records()))
	}
	if _, ok := rec.Duration("x"); !ok {
		t.Error("expected recording sink to see the duration")
	}
}
