// Package ratelimit provides request pacing for outbound calls and
// fixed-window admission limits keyed by caller.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces consecutive operations at least one interval apart, with optional jitter.
// It is safe for concurrent use by multiple goroutines.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
	next     time.Time
}

// NewPacer creates a pacer allowing rps operations per second. Jitter must be
// between 0.0 and 1.0 and adds up to jitter*interval of extra delay.
// If rps is <= 0, the pacer does not block.
func NewPacer(rps float64, jitter float64) *Pacer {
	if rps <= 0 {
		return &Pacer{}
	}
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Pacer{
		interval: time.Duration(float64(time.Second) / rps),
		jitter:   jitter,
	}
}

// Wait blocks until this caller's slot arrives, or until the context is canceled.
// The first call never blocks.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.interval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	gap := p.interval
	if p.jitter > 0 {
		gap += time.Duration(float64(p.interval) * p.jitter * rand.Float64())
	}
	p.next = slot.Add(gap)
	p.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
