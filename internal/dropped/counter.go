// Package dropped tracks the outcome of recently terminated frames and
// publishes a rolling smoothness value for readers on other goroutines.
package dropped

import (
	"math"

	"framemeter/internal/seqlock"
)

// Capacity is the number of frames in the rolling window.
const Capacity = 180

// FrameState is the outcome of one terminated frame.
type FrameState uint8

const (
	Dropped FrameState = iota
	Partial
	Complete
)

func (s FrameState) String() string {
	switch s {
	case Dropped:
		return "dropped"
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	}
	return "invalid"
}

// Smoothness is the value published after every frame.
type Smoothness struct {
	// AverageSmoothness is the rolling percent of complete frames.
	AverageSmoothness float64
	// WorstSmoothness is the lowest rolling value seen since the window first filled.
	WorstSmoothness      float64
	PercentDroppedFrames float64
	FramesTotal          uint64
}

// Publisher receives smoothness values. Implementations must not block.
type Publisher interface {
	Publish(Smoothness)
}

// Publishers fans every value out to all publishers, in order.
type Publishers []Publisher

func (ps Publishers) Publish(v Smoothness) {
	for _, p := range ps {
		p.Publish(v)
	}
}

// Counter is a fixed-capacity ring of frame outcomes plus running totals.
// It is not safe for concurrent use; readers on other goroutines go through
// the attached Publisher.
type Counter struct {
	ring [Capacity]FrameState
	next int
	size int

	totalFrames  uint64
	totalDropped uint64
	totalPartial uint64

	worst     float64
	haveWorst bool

	publisher Publisher
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{}
}

// SetPublisher attaches p; every AddFrame publishes to it.
func (c *Counter) SetPublisher(p Publisher) {
	c.publisher = p
}

// AddFrame records one frame outcome, evicting the oldest once full.
func (c *Counter) AddFrame(s FrameState) {
	c.ring[c.next] = s
	c.next = (c.next + 1) % Capacity
	if c.size < Capacity {
		c.size++
	}

	c.totalFrames++
	switch s {
	case Dropped:
		c.totalDropped++
	case Partial:
		c.totalPartial++
	}

	if c.size == Capacity {
		pct := c.RollingGoodPercent()
		if !c.haveWorst || pct < c.worst {
			c.worst = pct
			c.haveWorst = true
		}
	}
	if c.publisher != nil {
		c.publisher.Publish(c.Smoothness())
	}
}

func (c *Counter) AddGoodFrame()    { c.AddFrame(Complete) }
func (c *Counter) AddPartialFrame() { c.AddFrame(Partial) }
func (c *Counter) AddDroppedFrame() { c.AddFrame(Dropped) }

// RollingGoodPercent returns the percent of complete frames in the window.
// The denominator is always Capacity, so a partly filled window reads low.
func (c *Counter) RollingGoodPercent() float64 {
	good := 0
	idx := c.next
	for i := 0; i < c.size; i++ {
		idx = (idx - 1 + Capacity) % Capacity
		if c.ring[idx] == Complete {
			good++
		}
	}
	return 100 * float64(good) / Capacity
}

// Smoothness computes the current published value.
func (c *Counter) Smoothness() Smoothness {
	avg := c.RollingGoodPercent()
	s := Smoothness{
		AverageSmoothness: avg,
		WorstSmoothness:   avg,
		FramesTotal:       c.totalFrames,
	}
	if c.haveWorst {
		s.WorstSmoothness = c.worst
	}
	if c.totalFrames > 0 {
		s.PercentDroppedFrames = 100 * float64(c.totalDropped) / float64(c.totalFrames)
	}
	return s
}

// Publish pushes the current value to the attached publisher, if any.
func (c *Counter) Publish() {
	if c.publisher != nil {
		c.publisher.Publish(c.Smoothness())
	}
}

// Reset clears the window and the running totals.
func (c *Counter) Reset() {
	p := c.publisher
	*c = Counter{publisher: p}
}

func (c *Counter) Len() int             { return c.size }
func (c *Counter) TotalFrames() uint64  { return c.totalFrames }
func (c *Counter) TotalDropped() uint64 { return c.totalDropped }
func (c *Counter) TotalPartial() uint64 { return c.totalPartial }

// SharedSmoothness publishes Smoothness through a sequence lock so any number
// of goroutines can read it while the frame thread keeps writing.
type SharedSmoothness struct {
	p *seqlock.Published[Smoothness]
}

func NewSharedSmoothness() *SharedSmoothness {
	return &SharedSmoothness{p: seqlock.New[Smoothness](smoothnessCodec{})}
}

func (s *SharedSmoothness) Publish(v Smoothness) { s.p.Publish(v) }

// Snapshot returns the last published value, or the zero value.
func (s *SharedSmoothness) Snapshot() Smoothness { return s.p.Snapshot() }

// Version returns the number of values published so far.
func (s *SharedSmoothness) Version() uint64 { return s.p.Version() }

type smoothnessCodec struct{}

func (smoothnessCodec) Words() int { return 4 }

func (smoothnessCodec) Encode(v Smoothness, dst []uint64) {
	dst[0] = math.Float64bits(v.AverageSmoothness)
	dst[1] = math.Float64bits(v.WorstSmoothness)
	dst[2] = math.Float64bits(v.PercentDroppedFrames)
	dst[3] = v.FramesTotal
}

func (smoothnessCodec) Decode(src []uint64) Smoothness {
	return Smoothness{
		AverageSmoothness:    math.Float64frombits(src[0]),
		WorstSmoothness:      math.Float64frombits(src[1]),
		PercentDroppedFrames: math.Float64frombits(src[2]),
		FramesTotal:          src[3],
	}
}
