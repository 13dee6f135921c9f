package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"framemeter/internal/dropped"
)

type fixedSource struct {
	mu sync.Mutex
	s  Snapshot
}

func (f *fixedSource) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

// syncBuffer is a bytes.Buffer safe to read while the progress goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewProgress(t *testing.T) {
	src := &fixedSource{}
	progress := NewProgress(src, false)

	if progress.source != src {
		t.Error("source not assigned")
	}
	if progress.quiet {
		t.Error("quiet should be false")
	}
}

func TestProgress_QuietMode(t *testing.T) {
	progress := NewProgress(&fixedSource{}, true)

	// Start and stop should not panic in quiet mode
	progress.Start()
	time.Sleep(10 * time.Millisecond)
	progress.Stop()
}

func TestProgress_DoubleStop(t *testing.T) {
	progress := NewProgress(&fixedSource{}, true)
	progress.Start()

	progress.Stop()
	progress.Stop()
}

func TestProgress_StopWithoutStart(t *testing.T) {
	progress := NewProgress(&fixedSource{}, false)
	progress.SetOutput(&bytes.Buffer{})

	progress.Stop()
}

func TestProgress_PrintsStatusLines(t *testing.T) {
	src := &fixedSource{s: Snapshot{
		Events: 1500,
		Traces: 2,
		Done:   1,
		Smoothness: dropped.Smoothness{
			AverageSmoothness:    90,
			WorstSmoothness:      80,
			PercentDroppedFrames: 5,
			FramesTotal:          1200,
		},
	}}
	var out syncBuffer
	progress := NewProgress(src, false)
	progress.SetOutput(&out)
	progress.SetInterval(5 * time.Millisecond)

	progress.Start()
	time.Sleep(30 * time.Millisecond)
	progress.Stop()

	if !strings.Contains(out.String(), "Events: 1,500") {
		t.Errorf("expected a status line, got: %q", out.String())
	}
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(75*time.Second, Snapshot{
		Events: 42,
		Traces: 3,
		Done:   2,
		Smoothness: dropped.Smoothness{
			AverageSmoothness:    97.25,
			WorstSmoothness:      91,
			PercentDroppedFrames: 1.5,
			FramesTotal:          12345,
		},
	})

	expected := "[01:15] Traces: 2/3 | Events: 42 | Frames: 12,345 | Smoothness: 97.2% (worst 91.0%) | Dropped: 1.5%"
	if line != expected {
		t.Errorf("expected %q, got %q", expected, line)
	}
}

func TestProgress_Print(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress(&fixedSource{}, false)
	progress.SetOutput(&buf)

	progress.Print("Replaying scroll.jsonl")

	output := buf.String()

	if !strings.Contains(output, "\033[K") {
		t.Error("expected output to contain line clear escape sequence")
	}
	if !strings.Contains(output, "Replaying scroll.jsonl\n") {
		t.Errorf("expected message ending with newline, got: %q", output)
	}
}

func TestProgress_Print_QuietModeDoesNotPrint(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress(&fixedSource{}, true)
	progress.SetOutput(&buf)

	progress.Print("Replaying")

	if buf.String() != "" {
		t.Errorf("expected no output in quiet mode, got: %q", buf.String())
	}
}

func TestProgress_Printf(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress(&fixedSource{}, false)
	progress.SetOutput(&buf)

	progress.Printf("Replaying %d traces (pace: %v)", 2, "unpaced")

	if !strings.Contains(buf.String(), "Replaying 2 traces (pace: unpaced)\n") {
		t.Errorf("expected formatted message, got: %q", buf.String())
	}
}

func TestProgress_SetOutput(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	progress := NewProgress(&fixedSource{}, false)

	progress.SetOutput(&buf1)
	progress.Print("message1")

	progress.SetOutput(&buf2)
	progress.Print("message2")

	if !strings.Contains(buf1.String(), "message1") {
		t.Error("expected message1 in buf1")
	}
	if !strings.Contains(buf2.String(), "message2") {
		t.Error("expected message2 in buf2")
	}
	if strings.Contains(buf1.String(), "message2") {
		t.Error("buf1 should not contain message2")
	}
}
