// Package ratelimit wraps golang.org/x/time/rate with the reconfiguration
// semantics balter's controllers need: a goal TPS that changes every
// sampling window, a zero TPS that must suspend workers entirely rather
// than error out, and an infinite TPS that must short-circuit to a no-op.
package ratelimit

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter governs how fast workers may start new transactions. It is safe
// for concurrent use: any number of workers may call Acquire while a single
// goroutine reconfigures the target rate with SetTPS.
type Limiter struct {
	mu     sync.Mutex
	lim    *rate.Limiter // nil while tps <= 0
	tps    float64
	zeroCh chan struct{}
}

// New builds a Limiter starting at the given goal TPS. A non-positive tps
// starts the limiter fully suspended; math.Inf(1) starts it unbounded.
func New(tps float64) *Limiter {
	l := &Limiter{zeroCh: make(chan struct{})}
	l.SetTPS(tps)
	return l
}

// SetTPS reconfigures the goal throughput. It may be called concurrently
// with Acquire at any time.
func (l *Limiter) SetTPS(tps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.tps
	l.tps = tps

	switch {
	case tps <= 0:
		l.lim = nil
	case math.IsInf(tps, 1):
		l.lim = rate.NewLimiter(rate.Inf, 1)
	default:
		burst := int(math.Ceil(tps))
		if burst < 1 {
			burst = 1
		}
		if l.lim == nil || prev <= 0 {
			l.lim = rate.NewLimiter(rate.Limit(tps), burst)
		} else {
			l.lim.SetLimit(rate.Limit(tps))
			l.lim.SetBurst(burst)
		}
	}

	if prev <= 0 && tps > 0 {
		close(l.zeroCh)
		l.zeroCh = make(chan struct{})
	}
}

// TPS returns the currently configured goal throughput.
func (l *Limiter) TPS() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tps
}

// Acquire blocks until a worker is permitted to start its next
// transaction, the context is cancelled, or the goal TPS is raised above
// zero after having been suspended. A suspended limiter (tps <= 0) never
// grants permission on its own; it only wakes callers up so they can
// re-check the (possibly still zero) rate.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		lim := l.lim
		ch := l.zeroCh
		l.mu.Unlock()

		if lim == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
				continue
			}
		}
		return lim.Wait(ctx)
	}
}
