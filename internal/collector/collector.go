// Package collector aggregates sink records and computes summary metrics.
package collector

import (
	"sync"
	"sync/atomic"
	"time"

	"framemeter/internal/core"
)

const recordBuffer = 4096

// Kind tells which sink method produced a Record.
type Kind int

const (
	KindDuration Kind = iota
	KindPercentage
	KindTrace
)

// Record is one value received through the core.Sink interface.
type Record struct {
	Kind     Kind
	Name     string
	Duration time.Duration
	Percent  float64
	Trace    *core.TraceEvent
}

// Collector is a core.Sink that buffers records from any goroutine and
// produces a summary once closed.
type Collector struct {
	records   []Record
	ch        chan Record
	done      chan struct{}
	mu        sync.Mutex
	sendMu    sync.RWMutex
	dropped   atomic.Uint64
	closed    atomic.Bool
	startTime time.Time
	endTime   time.Time
}

var _ core.Sink = (*Collector)(nil)

// NewCollector creates a new Collector and starts its collection goroutine.
func NewCollector() *Collector {
	c := &Collector{
		records:   make([]Record, 0),
		ch:        make(chan Record, recordBuffer),
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	go c.collect()
	return c
}

func (c *Collector) collect() {
	for r := range c.ch {
		c.mu.Lock()
		c.records = append(c.records, r)
		c.mu.Unlock()
	}
	close(c.done)
}

// report hands r to the drain goroutine, waiting while the buffer is full so
// that every record sent before Close is kept.
func (c *Collector) report(r Record) {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed.Load() {
		c.dropped.Add(1)
		return
	}
	c.ch <- r
}

// RecordDuration implements core.Sink.
func (c *Collector) RecordDuration(name string, d time.Duration) {
	c.report(Record{Kind: KindDuration, Name: name, Duration: d})
}

// RecordPercentage implements core.Sink.
func (c *Collector) RecordPercentage(name string, pct float64) {
	c.report(Record{Kind: KindPercentage, Name: name, Percent: pct})
}

// RecordTrace implements core.Sink.
func (c *Collector) RecordTrace(ev core.TraceEvent) {
	c.report(Record{Kind: KindTrace, Name: ev.Name, Trace: &ev})
}

// Close stops accepting records and waits for the buffer to drain.
// Closing twice is a no-op.
func (c *Collector) Close() {
	c.sendMu.Lock()
	if c.closed.Swap(true) {
		c.sendMu.Unlock()
		return
	}
	close(c.ch)
	c.sendMu.Unlock()
	<-c.done
	c.mu.Lock()
	c.endTime = time.Now()
	c.mu.Unlock()
}

// Records returns a copy of collected records.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Record, len(c.records))
	copy(result, c.records)
	return result
}

// DroppedRecords returns how many records arrived after Close.
func (c *Collector) DroppedRecords() uint64 {
	return c.dropped.Load()
}

// Duration returns the collection duration.
// If the collector is closed, returns the duration from start to end.
// If still running, returns the duration from start to now.
func (c *Collector) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.endTime.IsZero() {
		return c.endTime.Sub(c.startTime)
	}
	return time.Since(c.startTime)
}

// Compute summarizes the records collected so far.
func (c *Collector) Compute() *Metrics {
	m := ComputeMetrics(c.Records(), c.Duration())
	m.DroppedRecords = c.DroppedRecords()
	return m
}
