// Package coordinator replays trace files concurrently into a shared sink.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"framemeter/internal/core"
	"framemeter/internal/dropped"
	"framemeter/internal/progress"
	"framemeter/internal/replay"
	"framemeter/internal/sequence"
)

// Result is the outcome of one replayed trace.
type Result struct {
	Trace         string
	Events        uint64
	Smoothness    dropped.Smoothness
	CustomResults map[int]sequence.ThroughputData
	Err           error
}

type run struct {
	name   string
	driver *replay.Driver
	shared *dropped.SharedSmoothness
	done   atomic.Bool
	err    error
}

// Coordinator runs one replay.Driver per trace. Every driver shares the
// options' sink, sampler and pacer, which must be safe for concurrent use.
type Coordinator struct {
	opts        replay.Options
	concurrency int
	publisherFn func(trace string) dropped.Publisher
	log         *logrus.Entry

	mu   sync.Mutex
	runs []*run
}

var _ progress.Source = (*Coordinator)(nil)

func NewCoordinator(opts replay.Options) *Coordinator {
	return &Coordinator{
		opts: opts,
		log:  core.Logger().WithField("component", "coordinator"),
	}
}

// SetConcurrency limits how many traces replay at once; n <= 0 means no limit.
func (c *Coordinator) SetConcurrency(n int) {
	c.concurrency = n
}

// SetPublisherFactory adds a per-trace smoothness publisher next to the one
// the coordinator reads its snapshots from.
func (c *Coordinator) SetPublisherFactory(fn func(trace string) dropped.Publisher) {
	c.publisherFn = fn
}

func (c *Coordinator) newRun(name string) *run {
	shared := dropped.NewSharedSmoothness()
	opts := c.opts
	opts.Name = name
	opts.Publisher = shared
	if c.publisherFn != nil {
		opts.Publisher = dropped.Publishers{shared, c.publisherFn(name)}
	}
	r := &run{name: name, driver: replay.NewDriver(opts), shared: shared}
	c.mu.Lock()
	c.runs = append(c.runs, r)
	c.mu.Unlock()
	return r
}

// Replay replays every file concurrently and waits for all of them. It
// returns every failed trace's error joined together.
func (c *Coordinator) Replay(ctx context.Context, paths []string) error {
	runs := make([]*run, len(paths))
	for i, path := range paths {
		runs[i] = c.newRun(filepath.Base(path))
	}

	var g errgroup.Group
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, path := range paths {
		r := runs[i]
		g.Go(func() error {
			r.err = c.replayFile(ctx, r, path)
			return r.err
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range runs {
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return errors.Join(errs...)
}

// ReplayReader replays a single trace read from rd on the calling goroutine.
func (c *Coordinator) ReplayReader(ctx context.Context, name string, rd io.Reader) error {
	r := c.newRun(name)
	r.err = c.execute(ctx, r, rd)
	return r.err
}

func (c *Coordinator) replayFile(ctx context.Context, r *run, path string) error {
	f, err := os.Open(path)
	if err != nil {
		r.done.Store(true)
		return fmt.Errorf("%s: opening trace: %w", r.name, err)
	}
	defer f.Close()
	return c.execute(ctx, r, f)
}

func (c *Coordinator) execute(ctx context.Context, r *run, rd io.Reader) (err error) {
	defer r.done.Store(true)
	defer recoverPanic(r.name, &err)

	log := c.log.WithField("trace", r.name)
	log.Debug("replay started")
	if err := r.driver.Run(ctx, rd); err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}
	log.WithFields(logrus.Fields{
		"events": r.driver.Processed(),
		"frames": r.shared.Snapshot().FramesTotal,
	}).Info("replay finished")
	return nil
}

// recoverPanic turns a panic in a replay goroutine into its error. Contract
// violations stay matchable with errors.As.
func recoverPanic(trace string, err *error) {
	rec := recover()
	if rec == nil {
		return
	}
	if cv, ok := rec.(*core.ContractViolation); ok {
		*err = fmt.Errorf("%s: %w", trace, cv)
		return
	}
	*err = fmt.Errorf("%s: panic: %v", trace, rec)
}

// Snapshot aggregates the progress of every trace. Frame counts and dropped
// frames are summed; smoothness is the lowest of any trace with frames.
func (c *Coordinator) Snapshot() progress.Snapshot {
	c.mu.Lock()
	runs := append([]*run(nil), c.runs...)
	c.mu.Unlock()

	s := progress.Snapshot{Traces: len(runs)}
	var droppedFrames float64
	first := true
	for _, r := range runs {
		s.Events += r.driver.Processed()
		if r.done.Load() {
			s.Done++
		}
		sm := r.shared.Snapshot()
		if sm.FramesTotal == 0 {
			continue
		}
		s.Smoothness.FramesTotal += sm.FramesTotal
		droppedFrames += sm.PercentDroppedFrames * float64(sm.FramesTotal) / 100
		if first || sm.AverageSmoothness < s.Smoothness.AverageSmoothness {
			s.Smoothness.AverageSmoothness = sm.AverageSmoothness
		}
		if first || sm.WorstSmoothness < s.Smoothness.WorstSmoothness {
			s.Smoothness.WorstSmoothness = sm.WorstSmoothness
		}
		first = false
	}
	if s.Smoothness.FramesTotal > 0 {
		s.Smoothness.PercentDroppedFrames = 100 * droppedFrames / float64(s.Smoothness.FramesTotal)
	}
	return s
}

// Results returns one Result per trace, in start order. Call it after Replay
// or ReplayReader returned.
func (c *Coordinator) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, 0, len(c.runs))
	for _, r := range c.runs {
		out = append(out, Result{
			Trace:         r.name,
			Events:        r.driver.Processed(),
			Smoothness:    r.shared.Snapshot(),
			CustomResults: r.driver.CustomResults(),
			Err:           r.err,
		})
	}
	return out
}
