package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatText writes metrics in human-readable format.
func FormatText(w io.Writer, m *Metrics, thresholds *ThresholdResults) {
	if m.TotalRecords == 0 {
		fmt.Fprintln(w, "No records collected")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "framemeter - Frame Metrics Report")
	fmt.Fprintln(w, "=================================")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Elapsed:        %v\n", m.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Records:        %s\n", humanize.Comma(int64(m.TotalRecords)))
	if m.DroppedRecords > 0 {
		fmt.Fprintf(w, "Dropped:        %s\n", humanize.Comma(int64(m.DroppedRecords)))
	}
	fmt.Fprintf(w, "Summary traces: %s\n", humanize.Comma(int64(len(m.Traces))))

	if len(m.Durations) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Latencies:")
		for _, name := range sortedKeys(m.Durations) {
			ds := m.Durations[name]
			fmt.Fprintf(w, "  %-60s %8s   avg=%s  p50=%s  p95=%s  p99=%s  max=%s\n",
				name, humanize.Comma(int64(ds.Count)),
				FormatDuration(ds.Duration.Avg),
				FormatDuration(ds.Duration.P50),
				FormatDuration(ds.Duration.P95),
				FormatDuration(ds.Duration.P99),
				FormatDuration(ds.Duration.Max))
		}
	}

	if len(m.Percentages) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Percentages:")
		for _, name := range sortedKeys(m.Percentages) {
			ps := m.Percentages[name]
			fmt.Fprintf(w, "  %-60s %8s   avg=%s%%  p50=%s%%  max=%s%%\n",
				name, humanize.Comma(int64(ps.Count)),
				humanize.FtoaWithDigits(ps.Avg, 2),
				humanize.FtoaWithDigits(ps.P50, 2),
				humanize.FtoaWithDigits(ps.Max, 2))
		}
	}

	if thresholds != nil && len(thresholds.Results) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Thresholds:")
		for _, result := range thresholds.Results {
			symbol := "✓"
			if !result.Passed {
				symbol = "✗"
			}
			fmt.Fprintf(w, "  %s %s < %s (actual: %s)\n",
				symbol, result.Name, result.Threshold, result.Actual)
		}
	}
}

// FormatJSON writes metrics in JSON format.
func FormatJSON(w io.Writer, m *Metrics, thresholds *ThresholdResults) {
	output := struct {
		Elapsed        string                        `json:"elapsed"`
		TotalRecords   int                           `json:"totalRecords"`
		DroppedRecords uint64                        `json:"droppedRecords"`
		Durations      map[string]jsonDurationSeries `json:"durations"`
		Percentages    map[string]*PercentSeries     `json:"percentages"`
		Traces         []jsonTrace                   `json:"traces"`
		Thresholds     *ThresholdResults             `json:"thresholds,omitempty"`
	}{
		Elapsed:        m.Elapsed.Round(time.Millisecond).String(),
		TotalRecords:   m.TotalRecords,
		DroppedRecords: m.DroppedRecords,
		Durations:      make(map[string]jsonDurationSeries, len(m.Durations)),
		Percentages:    m.Percentages,
		Traces:         make([]jsonTrace, 0, len(m.Traces)),
		Thresholds:     thresholds,
	}

	for name, ds := range m.Durations {
		output.Durations[name] = jsonDurationSeries{
			Count:     ds.Count,
			Durations: toJSONDurationMetrics(ds.Duration),
		}
	}
	for _, ev := range m.Traces {
		output.Traces = append(output.Traces, jsonTrace{
			ID:        ev.ID,
			Name:      ev.Name,
			Category:  ev.Category,
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
			Args:      ev.Args,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}

type jsonDurationMetrics struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
	P50 string `json:"p50"`
	P90 string `json:"p90"`
	P95 string `json:"p95"`
	P99 string `json:"p99"`
}

type jsonDurationSeries struct {
	Count     int                 `json:"count"`
	Durations jsonDurationMetrics `json:"durations"`
}

type jsonTrace struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	Timestamp string         `json:"timestamp"`
	Args      map[string]any `json:"args,omitempty"`
}

func toJSONDurationMetrics(d DurationMetrics) jsonDurationMetrics {
	return jsonDurationMetrics{
		Min: FormatDuration(d.Min),
		Max: FormatDuration(d.Max),
		Avg: FormatDuration(d.Avg),
		P50: FormatDuration(d.P50),
		P90: FormatDuration(d.P90),
		P95: FormatDuration(d.P95),
		P99: FormatDuration(d.P99),
	}
}
