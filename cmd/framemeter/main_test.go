package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"framemeter/internal/coordinator"
	"framemeter/internal/dropped"
	"framemeter/internal/sequence"
)

func TestPrintTraceResults_SortsCustomSequences(t *testing.T) {
	results := []coordinator.Result{{
		Trace:      "scroll.jsonl",
		Events:     1200,
		Smoothness: dropped.Smoothness{AverageSmoothness: 97.5, PercentDroppedFrames: 2.5, FramesTotal: 300},
		CustomResults: map[int]sequence.ThroughputData{
			9:  {FramesExpected: 10, FramesProduced: 10},
			2:  {FramesExpected: 4, FramesProduced: 3},
			41: {FramesExpected: 2, FramesProduced: 1},
			5:  {FramesExpected: 8, FramesProduced: 8},
		},
	}}

	for i := 0; i < 20; i++ {
		var buf bytes.Buffer
		printTraceResults(&buf, results)
		out := buf.String()

		last := -1
		for _, want := range []string{"custom 2:", "custom 5:", "custom 9:", "custom 41:"} {
			idx := strings.Index(out, want)
			if idx < 0 {
				t.Fatalf("expected output to contain %q, got:\n%s", want, out)
			}
			if idx < last {
				t.Fatalf("expected %q after the previous custom line, got:\n%s", want, out)
			}
			last = idx
		}
	}
}

func TestPrintTraceResults_MarksFailedTraces(t *testing.T) {
	var buf bytes.Buffer
	printTraceResults(&buf, []coordinator.Result{
		{Trace: "ok.jsonl", Events: 5},
		{Trace: "bad.jsonl", Events: 2, Err: errors.New("line 3: invalid JSON")},
	})
	out := buf.String()

	if !strings.Contains(out, "ok.jsonl") || !strings.Contains(out, "bad.jsonl") {
		t.Fatalf("expected both traces in output, got:\n%s", out)
	}
	lines := strings.Split(out, "\n")
	for _, line := range lines {
		if strings.Contains(line, "bad.jsonl") && !strings.Contains(line, "failed") {
			t.Errorf("expected failed status for bad.jsonl, got %q", line)
		}
		if strings.Contains(line, "ok.jsonl") && !strings.Contains(line, " ok ") {
			t.Errorf("expected ok status for ok.jsonl, got %q", line)
		}
	}
}

func TestPrintTraceResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	printTraceResults(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
