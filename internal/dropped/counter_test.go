package dropped

import (
	"math"
	"sync"
	"testing"
)

const epsilon = 1e-9

func TestCounter_EmptyWindow(t *testing.T) {
	c := NewCounter()
	if got := c.RollingGoodPercent(); got != 0 {
		t.Errorf("expected 0%%, got %.2f%%", got)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty window, got %d", c.Len())
	}
}

func TestCounter_HalfGood(t *testing.T) {
	c := NewCounter()
	for i := 0; i < 90; i++ {
		c.AddGoodFrame()
	}
	for i := 0; i < 90; i++ {
		c.AddDroppedFrame()
	}

	if got := c.RollingGoodPercent(); math.Abs(got-50) > epsilon {
		t.Fatalf("expected 50%%, got %.4f%%", got)
	}

	// The oldest entry is complete, so evicting it keeps the percent.
	c.AddGoodFrame()
	if got := c.RollingGoodPercent(); math.Abs(got-50) > epsilon {
		t.Errorf("expected 50%% after evicting a complete frame, got %.4f%%", got)
	}
}

func TestCounter_EvictingDroppedShiftsPercent(t *testing.T) {
	c := NewCounter()
	for i := 0; i < 90; i++ {
		c.AddDroppedFrame()
	}
	for i := 0; i < 90; i++ {
		c.AddGoodFrame()
	}

	before := c.RollingGoodPercent()
	c.AddGoodFrame()
	after := c.RollingGoodPercent()

	if math.Abs((after-before)-100.0/Capacity) > epsilon {
		t.Errorf("expected shift of %.4f, got %.4f", 100.0/Capacity, after-before)
	}
}

func TestCounter_PartialWindowDividesByCapacity(t *testing.T) {
	c := NewCounter()
	for i := 0; i < 18; i++ {
		c.AddGoodFrame()
	}
	if got := c.RollingGoodPercent(); math.Abs(got-10) > epsilon {
		t.Errorf("expected 10%% for 18 good frames in a 180 window, got %.4f%%", got)
	}
}

func TestCounter_Totals(t *testing.T) {
	c := NewCounter()
	for i := 0; i < 200; i++ {
		switch i % 4 {
		case 0:
			c.AddDroppedFrame()
		case 1:
			c.AddPartialFrame()
		default:
			c.AddGoodFrame()
		}
	}

	if c.TotalFrames() != 200 {
		t.Errorf("expected 200 frames, got %d", c.TotalFrames())
	}
	if c.TotalDropped() != 50 || c.TotalPartial() != 50 {
		t.Errorf("expected 50 dropped and 50 partial, got %d and %d", c.TotalDropped(), c.TotalPartial())
	}
	if c.Len() != Capacity {
		t.Errorf("expected full window, got %d", c.Len())
	}
	s := c.Smoothness()
	if math.Abs(s.PercentDroppedFrames-25) > epsilon {
		t.Errorf("expected 25%% dropped, got %.2f", s.PercentDroppedFrames)
	}
}

func TestCounter_WorstSmoothness(t *testing.T) {
	c := NewCounter()
	for i := 0; i < Capacity; i++ {
		c.AddGoodFrame()
	}
	for i := 0; i < 36; i++ {
		c.AddDroppedFrame()
	}
	for i := 0; i < Capacity; i++ {
		c.AddGoodFrame()
	}

	s := c.Smoothness()
	if math.Abs(s.AverageSmoothness-100) > epsilon {
		t.Errorf("expected 100%% average, got %.2f", s.AverageSmoothness)
	}
	if math.Abs(s.WorstSmoothness-80) > epsilon {
		t.Errorf("expected 80%% worst, got %.2f", s.WorstSmoothness)
	}
}

func TestCounter_ResetKeepsPublisher(t *testing.T) {
	shared := NewSharedSmoothness()
	c := NewCounter()
	c.SetPublisher(shared)
	c.AddGoodFrame()
	c.Reset()
	c.AddDroppedFrame()

	if got := shared.Snapshot().FramesTotal; got != 1 {
		t.Errorf("expected 1 frame after reset, got %d", got)
	}
}

func TestSharedSmoothness_ConcurrentReaders(t *testing.T) {
	shared := NewSharedSmoothness()
	c := NewCounter()
	c.SetPublisher(shared)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				s := shared.Snapshot()
				if s.AverageSmoothness < 0 || s.AverageSmoothness > 100 {
					t.Errorf("out of range smoothness %.2f", s.AverageSmoothness)
					return
				}
			}
		}()
	}

	for i := 0; i < 5000; i++ {
		if i%3 == 0 {
			c.AddDroppedFrame()
		} else {
			c.AddGoodFrame()
		}
	}
	close(done)
	wg.Wait()

	if shared.Version() != 5000 {
		t.Errorf("expected 5000 publishes, got %d", shared.Version())
	}
	if got := shared.Snapshot(); got != c.Smoothness() {
		t.Errorf("expected snapshot %+v, got %+v", c.Smoothness(), got)
	}
}

func TestPublishers_FanOut(t *testing.T) {
	a, b := NewSharedSmoothness(), NewSharedSmoothness()
	c := NewCounter()
	c.SetPublisher(Publishers{a, b})
	c.AddGoodFrame()
	c.AddDroppedFrame()

	for i, s := range []*SharedSmoothness{a, b} {
		if got := s.Snapshot().PercentDroppedFrames; math.Abs(got-50) > epsilon {
			t.Errorf("publisher %d: expected 50%% dropped, got %.2f%%", i, got)
		}
	}
}
