// Package progress prints a periodic replay status line to stderr.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"framemeter/internal/dropped"
)

const defaultInterval = time.Second

// Snapshot is what the status line shows. Smoothness is the worst trace's.
type Snapshot struct {
	Events     uint64
	Traces     int
	Done       int
	Smoothness dropped.Smoothness
}

// Source supplies snapshots; it is read from the progress goroutine.
type Source interface {
	Snapshot() Snapshot
}

type Progress struct {
	startTime time.Time
	source    Source
	interval  time.Duration
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopped   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex
}

func NewProgress(src Source, quiet bool) *Progress {
	return &Progress{
		source:   src,
		quiet:    quiet,
		interval: defaultInterval,
		output:   os.Stderr,
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// SetInterval changes how often the status line is refreshed. It only takes
// effect before Start.
func (p *Progress) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

func (p *Progress) Start() {
	if p.quiet {
		return
	}
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.ticker = time.NewTicker(p.interval)
	go p.run()
}

func (p *Progress) run() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.printProgress()
		}
	}
}

func (p *Progress) printProgress() {
	s := p.source.Snapshot()
	elapsed := time.Since(p.startTime).Round(time.Second)
	p.mu.Lock()
	fmt.Fprint(p.output, "\033[K"+FormatLine(elapsed, s)+"\r")
	p.mu.Unlock()
}

// FormatLine renders one status line.
func FormatLine(elapsed time.Duration, s Snapshot) string {
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	sm := s.Smoothness
	return fmt.Sprintf("[%02d:%02d] Traces: %d/%d | Events: %s | Frames: %s | Smoothness: %.1f%% (worst %.1f%%) | Dropped: %.1f%%",
		mins, secs, s.Done, s.Traces,
		humanize.Comma(int64(s.Events)),
		humanize.Comma(int64(sm.FramesTotal)),
		sm.AverageSmoothness, sm.WorstSmoothness, sm.PercentDroppedFrames)
}

func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopCh != nil {
		close(p.stopCh)
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K")
	p.mu.Unlock()
}

func (p *Progress) Print(message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K%s\n", message)
	p.mu.Unlock()
}

func (p *Progress) Printf(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K"+format+"\n", args...)
	p.mu.Unlock()
}
