// Package ratelimit paces trace replay and samples summary trace events.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Pacer limits how many replayed events per second reach the pipeline.
// A rate of zero disables pacing.
type Pacer struct {
	limiter *rate.Limiter
	mu      sync.RWMutex
}

func NewPacer(eventsPerSecond float64) *Pacer {
	return &Pacer{
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burstFor(eventsPerSecond)),
	}
}

// Wait blocks until the next event may be delivered or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.RLock()
	limiter := p.limiter
	limit := limiter.Limit()
	p.mu.RUnlock()

	if limit == 0 {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}

func (p *Pacer) SetRate(eventsPerSecond float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiter.SetLimit(rate.Limit(eventsPerSecond))
	p.limiter.SetBurst(burstFor(eventsPerSecond))
}

func (p *Pacer) Rate() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return float64(p.limiter.Limit())
}

// burstFor allows one second worth of events, and at least one.
func burstFor(eventsPerSecond float64) int {
	if eventsPerSecond < 1 {
		return 1
	}
	return int(eventsPerSecond)
}
