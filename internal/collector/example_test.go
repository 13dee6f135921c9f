package collector_test

import (
	"fmt"
	"time"

	"framemeter/internal/collector"
)

func ExampleNewCollector() {
	c := collector.NewCollector()

	// Reporters and trackers write through the core.Sink methods.
	c.RecordDuration("CompositorLatency.TotalLatency", 16*time.Millisecond)
	c.RecordPercentage("Graphics.Smoothness.PercentDroppedFrames.AllSequences", 5)

	c.Close()

	fmt.Printf("Collected %d records\n", len(c.Records()))
	// Output: Collected 2 records
}

func ExampleComputeMetrics() {
	records := []collector.Record{
		{Kind: collector.KindDuration, Name: "total", Duration: 10 * time.Millisecond},
		{Kind: collector.KindDuration, Name: "total", Duration: 20 * time.Millisecond},
		{Kind: collector.KindDuration, Name: "total", Duration: 30 * time.Millisecond},
	}

	metrics := collector.ComputeMetrics(records, time.Second)

	fmt.Printf("Count: %d, Avg: %s, Max: %s\n",
		metrics.Durations["total"].Count,
		collector.FormatDuration(metrics.Durations["total"].Duration.Avg),
		collector.FormatDuration(metrics.Durations["total"].Duration.Max))
	// Output: Count: 3, Avg: 20.0ms, Max: 30.0ms
}

func ExampleCollector_DroppedRecords() {
	c := collector.NewCollector()
	c.Close()

	if dropped := c.DroppedRecords(); dropped > 0 {
		fmt.Printf("Warning: %d records dropped\n", dropped)
	} else {
		fmt.Println("No records dropped")
	}
	// Output: No records dropped
}
