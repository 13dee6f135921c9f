package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync/atomic"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"framemeter/internal/collector"
	"framemeter/internal/config"
	"framemeter/internal/coordinator"
	"framemeter/internal/core"
	"framemeter/internal/progress"
	"framemeter/internal/promsink"
	"framemeter/internal/ratelimit"
	"framemeter/internal/replay"
)

const (
	ExitSuccess         = 0
	ExitThresholdFailed = 1
	ExitError           = 2
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (defaults apply when omitted)")
	output := flag.String("output", "text", "output format: text, json")
	quiet := flag.Bool("quiet", false, "suppress progress output during replay")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	promOut := flag.String("prom-out", "", "write Prometheus text exposition to this file")
	pace := flag.Float64("pace", -1, "replayed events per second, 0 = unpaced (overrides config)")
	strict := flag.Bool("strict", false, "panic on internal contract violations (overrides config)")
	concurrency := flag.Int("concurrency", 0, "max traces replayed at once (0 = all)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] trace.jsonl...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	traces := flag.Args()
	if len(traces) == 0 {
		fmt.Fprintln(os.Stderr, "error: at least one trace file is required")
		flag.Usage()
		os.Exit(ExitError)
	}

	if *output != "text" && *output != "json" {
		fmt.Fprintf(os.Stderr, "error: --output must be 'text' or 'json', got %q\n", *output)
		os.Exit(ExitError)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(ExitError)
		}
	}

	log := core.Logger()
	log.SetLevel(cfg.LogLevel())
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if cfg.Log.File != "" {
		if err := core.SetLogOutputFile(cfg.Log.File); err != nil {
			fmt.Fprintf(os.Stderr, "error: opening log file: %v\n", err)
			os.Exit(ExitError)
		}
	}
	core.SetStrict(cfg.Contracts.Strict || *strict)

	if *pace >= 0 {
		cfg.Replay.Pace = *pace
	}

	runID := uuid.New()
	log.WithFields(logrus.Fields{"run": runID.String(), "traces": len(traces)}).Info("framemeter starting")

	coll := collector.NewCollector()
	var sink core.Sink = coll
	var prom *promsink.Sink
	if *promOut != "" {
		prom = promsink.New(prometheus.NewRegistry())
		sink = core.MultiSink{coll, prom}
	}

	opts := replay.Options{
		Sink:            sink,
		Sampler:         ratelimit.NewSummarySampler(cfg.Tracker.SummarySampleEvery),
		Settings:        cfg.TrackerSettings(),
		DefaultInterval: cfg.Replay.DefaultInterval,
	}
	if cfg.Replay.Pace > 0 {
		opts.Pacer = ratelimit.NewPacer(cfg.Replay.Pace)
	}

	coord := coordinator.NewCoordinator(opts)
	coord.SetConcurrency(*concurrency)
	if prom != nil {
		coord.SetPublisherFactory(prom.SmoothnessPublisher)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var interrupted atomic.Bool
	go func() {
		<-sigCh
		interrupted.Store(true)
		if !*quiet {
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		}
		cancel()
	}()

	prog := progress.NewProgress(coord, *quiet)
	prog.Printf("framemeter replaying %d trace(s), pace: %s", len(traces), paceString(cfg.Replay.Pace))
	prog.Start()
	replayErr := coord.Replay(ctx, traces)
	prog.Stop()
	coll.Close()

	metrics := coll.Compute()
	var thresholdResults *collector.ThresholdResults
	if cfg.Thresholds != nil {
		thresholdResults = cfg.Thresholds.Check(metrics)
	}

	if *output == "json" {
		collector.FormatJSON(os.Stdout, metrics, thresholdResults)
	} else {
		collector.FormatText(os.Stdout, metrics, thresholdResults)
		printTraceResults(os.Stdout, coord.Results())
	}

	if n := core.Violations(); n > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d internal contract violation(s) were clamped\n", n)
	}

	if prom != nil {
		if err := prom.WriteTextfile(*promOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(ExitError)
		}
	}

	if interrupted.Load() {
		os.Exit(ExitSuccess)
	}

	if replayErr != nil && !errors.Is(replayErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", replayErr)
		os.Exit(ExitError)
	}

	if thresholdResults != nil && !thresholdResults.Passed {
		if *output == "text" {
			fmt.Fprintln(os.Stderr, "\nThreshold check failed!")
		}
		os.Exit(ExitThresholdFailed)
	}

	os.Exit(ExitSuccess)
}

func paceString(pace float64) string {
	if pace <= 0 {
		return "unpaced"
	}
	return humanize.FtoaWithDigits(pace, 1) + " events/s"
}

func printTraceResults(w io.Writer, results []coordinator.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Traces:")
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = "failed"
		}
		fmt.Fprintf(w, "  %-30s %-6s events=%s  frames=%s  smoothness=%.1f%%  dropped=%.1f%%\n",
			r.Trace, status,
			humanize.Comma(int64(r.Events)),
			humanize.Comma(int64(r.Smoothness.FramesTotal)),
			r.Smoothness.AverageSmoothness,
			r.Smoothness.PercentDroppedFrames)
		ids := make([]int, 0, len(r.CustomResults))
		for id := range r.CustomResults {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			tp := r.CustomResults[id]
			fmt.Fprintf(w, "    custom %d: %s frames (%.1f%% dropped)\n", id, tp.String(), tp.DroppedPercent())
		}
	}
}
