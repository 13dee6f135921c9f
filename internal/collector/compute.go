package collector

import (
	"sort"
	"time"

	"framemeter/internal/core"
)

// Metrics contains aggregated frame metrics.
type Metrics struct {
	Elapsed        time.Duration              `json:"elapsed"`
	TotalRecords   int                        `json:"totalRecords"`
	DroppedRecords uint64                     `json:"droppedRecords"`
	Durations      map[string]*DurationSeries `json:"durations"`
	Percentages    map[string]*PercentSeries  `json:"percentages"`
	Traces         []core.TraceEvent          `json:"traces"`
}

// DurationMetrics contains latency statistics.
type DurationMetrics struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
	Avg time.Duration `json:"avg"`
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// DurationSeries holds the statistics of one duration metric name.
type DurationSeries struct {
	Count    int             `json:"count"`
	Duration DurationMetrics `json:"durations"`
}

// PercentSeries holds the statistics of one percentage metric name.
type PercentSeries struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
}

// ComputeMetrics computes metrics from records. Pure function, no side effects.
func ComputeMetrics(records []Record, elapsed time.Duration) *Metrics {
	m := &Metrics{
		Elapsed:     elapsed,
		Durations:   make(map[string]*DurationSeries),
		Percentages: make(map[string]*PercentSeries),
	}

	if len(records) == 0 {
		return m
	}

	durations := make(map[string][]time.Duration)
	percents := make(map[string][]float64)

	for _, r := range records {
		m.TotalRecords++
		switch r.Kind {
		case KindDuration:
			durations[r.Name] = append(durations[r.Name], r.Duration)
		case KindPercentage:
			percents[r.Name] = append(percents[r.Name], r.Percent)
		case KindTrace:
			if r.Trace != nil {
				m.Traces = append(m.Traces, *r.Trace)
			}
		}
	}

	for name, ds := range durations {
		m.Durations[name] = &DurationSeries{
			Count:    len(ds),
			Duration: ComputeDurationMetrics(ds),
		}
	}
	for name, ps := range percents {
		m.Percentages[name] = computePercentSeries(ps)
	}

	return m
}

// ComputePercentile calculates the percentile value from a sorted slice of durations.
// The percentile p should be between 0 and 1 (e.g., 0.95 for p95).
// The slice must be sorted in ascending order.
func ComputePercentile(sorted []time.Duration, p float64) time.Duration {
	return nearestRank(sorted, p)
}

func nearestRank[T time.Duration | float64](sorted []T, p float64) T {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}

// ComputeDurationMetrics calculates all duration statistics from a slice of durations.
func ComputeDurationMetrics(durations []time.Duration) DurationMetrics {
	if len(durations) == 0 {
		return DurationMetrics{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return DurationMetrics{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: total / time.Duration(len(sorted)),
		P50: ComputePercentile(sorted, 0.50),
		P90: ComputePercentile(sorted, 0.90),
		P95: ComputePercentile(sorted, 0.95),
		P99: ComputePercentile(sorted, 0.99),
	}
}

func computePercentSeries(values []float64) *PercentSeries {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var total float64
	for _, v := range sorted {
		total += v
	}

	return &PercentSeries{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Avg:   total / float64(len(sorted)),
		P50:   nearestRank(sorted, 0.50),
		P95:   nearestRank(sorted, 0.95),
	}
}
