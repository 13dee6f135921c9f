package core

import (
	"strings"
	"sync"
	"time"
)

// MockWriter is a thread-safe io.Writer for testing.
type MockWriter struct {
	mu   sync.Mutex
	data []byte
}

func (w *MockWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *MockWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.data)
}

// DurationRecord is one RecordDuration call seen by a RecordingSink.
type DurationRecord struct {
	Name  string
	Value time.Duration
}

// PercentageRecord is one RecordPercentage call seen by a RecordingSink.
type PercentageRecord struct {
	Name  string
	Value float64
}

// RecordingSink keeps every record in call order. Thread-safe.
type RecordingSink struct {
	mu          sync.Mutex
	Durations   []DurationRecord
	Percentages []PercentageRecord
	Traces      []TraceEvent
}

func (r *RecordingSink) RecordDuration(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Durations = append(r.Durations, DurationRecord{Name: name, Value: d})
}

func (r *RecordingSink) RecordPercentage(name string, pct float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Percentages = append(r.Percentages, PercentageRecord{Name: name, Value: pct})
}

func (r *RecordingSink) RecordTrace(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Traces = append(r.Traces, ev)
}

// DurationNames returns the names of all duration records, in order.
func (r *RecordingSink) DurationNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.Durations))
	for i, d := range r.Durations {
		names[i] = d.Name
	}
	return names
}

// Duration returns the first duration recorded under name.
func (r *RecordingSink) Duration(name string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.Durations {
		if d.Name == name {
			return d.Value, true
		}
	}
	return 0, false
}

// Percentage returns the last percentage recorded under name.
func (r *RecordingSink) Percentage(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Percentages) - 1; i >= 0; i-- {
		if r.Percentages[i].Name == name {
			return r.Percentages[i].Value, true
		}
	}
	return 0, false
}

// CountPrefix returns how many duration records start with prefix.
func (r *RecordingSink) CountPrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.Durations {
		if strings.HasPrefix(d.Name, prefix) {
			n++
		}
	}
	return n
}

// Reset drops all records.
func (r *RecordingSink) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Durations = nil
	r.Percentages = nil
	r.Traces = nil
}
