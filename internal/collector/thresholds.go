package collector

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Thresholds defines pass/fail criteria keyed by metric name.
type Thresholds struct {
	Durations   map[string]DurationThresholds `yaml:"durations"`
	Percentages map[string]PercentThresholds  `yaml:"percentages"`
}

// DurationThresholds defines latency limits for one duration metric.
type DurationThresholds struct {
	Avg time.Duration `yaml:"avg"`
	P50 time.Duration `yaml:"p50"`
	P90 time.Duration `yaml:"p90"`
	P95 time.Duration `yaml:"p95"`
	P99 time.Duration `yaml:"p99"`
}

// PercentThresholds defines limits for one percentage metric, written as "10%".
type PercentThresholds struct {
	Avg string `yaml:"avg"`
	Max string `yaml:"max"`
}

// ThresholdResult represents the outcome of a single threshold check.
type ThresholdResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
}

// ThresholdResults contains all threshold check results.
type ThresholdResults struct {
	Passed  bool              `json:"passed"`
	Results []ThresholdResult `json:"results"`
}

const noData = "no data"

// Validate reports every malformed percentage limit.
func (t *Thresholds) Validate() error {
	if t == nil {
		return nil
	}
	var errs []error
	for _, name := range sortedKeys(t.Percentages) {
		pt := t.Percentages[name]
		for _, s := range []string{pt.Avg, pt.Max} {
			if s == "" {
				continue
			}
			if _, err := parsePercentage(s); err != nil {
				errs = append(errs, fmt.Errorf("threshold %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Check evaluates all thresholds against computed metrics. A metric that
// received no records passes; its result shows "no data".
func (t *Thresholds) Check(m *Metrics) *ThresholdResults {
	if t == nil {
		return &ThresholdResults{Passed: true, Results: nil}
	}

	results := &ThresholdResults{
		Passed:  true,
		Results: make([]ThresholdResult, 0),
	}

	for _, name := range sortedKeys(t.Durations) {
		th := t.Durations[name]
		results.checkDurationThresholds(name, &th, m.Durations[name])
	}
	for _, name := range sortedKeys(t.Percentages) {
		th := t.Percentages[name]
		results.checkPercentThresholds(name, &th, m.Percentages[name])
	}

	return results
}

func (r *ThresholdResults) checkDurationThresholds(name string, thresholds *DurationThresholds, series *DurationSeries) {
	var actual DurationMetrics
	if series != nil {
		actual = series.Duration
	}
	checks := []struct {
		stat      string
		threshold time.Duration
		actual    time.Duration
	}{
		{"avg", thresholds.Avg, actual.Avg},
		{"p50", thresholds.P50, actual.P50},
		{"p90", thresholds.P90, actual.P90},
		{"p95", thresholds.P95, actual.P95},
		{"p99", thresholds.P99, actual.P99},
	}

	for _, check := range checks {
		if check.threshold == 0 {
			continue
		}

		result := ThresholdResult{
			Name:      name + "." + check.stat,
			Passed:    true,
			Threshold: FormatDuration(check.threshold),
			Actual:    noData,
		}
		if series != nil {
			result.Passed = check.actual < check.threshold
			result.Actual = FormatDuration(check.actual)
		}
		if !result.Passed {
			r.Passed = false
		}
		r.Results = append(r.Results, result)
	}
}

func (r *ThresholdResults) checkPercentThresholds(name string, thresholds *PercentThresholds, series *PercentSeries) {
	var avg, peak float64
	if series != nil {
		avg, peak = series.Avg, series.Max
	}
	checks := []struct {
		stat      string
		threshold string
		actual    float64
	}{
		{"avg", thresholds.Avg, avg},
		{"max", thresholds.Max, peak},
	}

	for _, check := range checks {
		if check.threshold == "" {
			continue
		}
		limit, err := parsePercentage(check.threshold)
		if err != nil {
			continue
		}

		result := ThresholdResult{
			Name:      name + "." + check.stat,
			Passed:    true,
			Threshold: check.threshold,
			Actual:    noData,
		}
		if series != nil {
			result.Passed = check.actual < limit
			result.Actual = fmt.Sprintf("%.2f%%", check.actual)
		}
		if !result.Passed {
			r.Passed = false
		}
		r.Results = append(r.Results, result)
	}
}

func parsePercentage(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("invalid percentage format: %s", s)
	}
	s = strings.TrimSuffix(s, "%")
	return strconv.ParseFloat(s, 64)
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// Violations returns only the failed threshold results.
func (r *ThresholdResults) Violations() []ThresholdResult {
	violations := make([]ThresholdResult, 0)
	for _, result := range r.Results {
		if !result.Passed {
			violations = append(violations, result)
		}
	}
	return violations
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
