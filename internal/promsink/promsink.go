// Package promsink exports frame metrics as Prometheus collectors.
package promsink

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"framemeter/internal/core"
	"framemeter/internal/dropped"
)

// Sink is a core.Sink that observes every record into Prometheus collectors
// registered on its own registerer. Safe for concurrent use.
type Sink struct {
	gatherer prometheus.Gatherer

	stageDuration *prometheus.HistogramVec
	percentage    *prometheus.HistogramVec
	summaryEvents *prometheus.CounterVec
	smoothness    *prometheus.GaugeVec
	framesTotal   *prometheus.GaugeVec
}

var _ core.Sink = (*Sink)(nil)

// New registers the frame metric collectors on reg.
func New(reg *prometheus.Registry) *Sink {
	factory := promauto.With(reg)
	return &Sink{
		gatherer: reg,
		// 0.5ms to ~8s.
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "framemeter_stage_duration_seconds",
				Help:    "Frame pipeline stage and event latencies, labelled by record name.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
			},
			[]string{"metric"},
		),
		percentage: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "framemeter_percentage",
				Help:    "Percent dropped and checkerboarded frames per reported sequence.",
				Buckets: prometheus.LinearBuckets(0, 5, 21),
			},
			[]string{"metric"},
		),
		summaryEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framemeter_summary_events_total",
				Help: "Sampled sequence summary events, by sequence type.",
			},
			[]string{"sequence"},
		),
		smoothness: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "framemeter_smoothness_percent",
				Help: "Last published smoothness of a replayed trace.",
			},
			[]string{"trace", "stat"},
		),
		framesTotal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "framemeter_frames_total",
				Help: "Frames whose outcome a replayed trace has recorded.",
			},
			[]string{"trace"},
		),
	}
}

func (s *Sink) RecordDuration(name string, d time.Duration) {
	s.stageDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (s *Sink) RecordPercentage(name string, pct float64) {
	s.percentage.WithLabelValues(name).Observe(pct)
}

func (s *Sink) RecordTrace(ev core.TraceEvent) {
	s.summaryEvents.WithLabelValues(ev.Category).Inc()
}

// SmoothnessPublisher returns a dropped.Publisher that mirrors the smoothness
// of trace into gauges.
func (s *Sink) SmoothnessPublisher(trace string) dropped.Publisher {
	return &smoothnessGauges{
		average: s.smoothness.WithLabelValues(trace, "average"),
		worst:   s.smoothness.WithLabelValues(trace, "worst"),
		dropped: s.smoothness.WithLabelValues(trace, "dropped"),
		frames:  s.framesTotal.WithLabelValues(trace),
	}
}

type smoothnessGauges struct {
	average, worst, dropped, frames prometheus.Gauge
}

func (g *smoothnessGauges) Publish(v dropped.Smoothness) {
	g.average.Set(v.AverageSmoothness)
	g.worst.Set(v.WorstSmoothness)
	g.dropped.Set(v.PercentDroppedFrames)
	g.frames.Set(float64(v.FramesTotal))
}

// WriteTextfile writes every collected metric to path in the text exposition
// format, for the node exporter textfile collector.
func (s *Sink) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, s.gatherer); err != nil {
		return fmt.Errorf("writing prometheus textfile: %w", err)
	}
	return nil
}
