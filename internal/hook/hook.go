// Package hook implements the ambient per-scenario recorder that
// balter.Transaction reaches for through a context.Context. It replaces the
// task-local storage the original engine used: each running scenario stashes
// one *Hook in its context, and every transaction closure recovered from
// that context records into the same counters and latency reservoir.
package hook

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/BalterLoadTesting/balter/internal/core"
	"github.com/BalterLoadTesting/balter/internal/metrics"
)

// Hook accumulates transaction outcomes for a single running scenario.
// It is safe for concurrent use by any number of worker goroutines.
type Hook struct {
	name string
	sink metrics.Sink

	success atomic.Uint64
	errors  atomic.Uint64

	reservoir *Reservoir
	snapshot  atomic.Pointer[core.Snapshot]
}

// New creates a Hook for the named scenario. sink receives per-transaction
// metrics as they are recorded; pass metrics.NewNoopSink() if none is wired.
func New(name string, sink metrics.Sink) *Hook {
	return &Hook{
		name:      name,
		sink:      sink,
		reservoir: NewReservoir(2048),
	}
}

// Record is called once per completed transaction by balter.Transaction.
func (h *Hook) Record(ok bool, elapsed time.Duration) {
	if ok {
		h.success.Add(1)
		h.sink.IncSuccess(h.name)
	} else {
		h.errors.Add(1)
		h.sink.IncError(h.name)
	}
	h.reservoir.Add(elapsed)
	h.sink.ObserveLatency(h.name, elapsed.Seconds())
}

// Counts returns the running totals of successes and errors seen so far.
func (h *Hook) Counts() (success, errors uint64) {
	return h.success.Load(), h.errors.Load()
}

// Reservoir exposes the latency ring for quantile queries.
func (h *Hook) Reservoir() *Reservoir { return h.reservoir }

// PublishSnapshot stores the most recent converged measurement so that
// anything downstream (metrics endpoints, debugging tools) can read the
// engine's current view without racing the sampler.
func (h *Hook) PublishSnapshot(s core.Snapshot) {
	h.snapshot.Store(&s)
}

// LatestSnapshot returns the last snapshot published, or the zero value and
// false if the sampler hasn't converged yet.
func (h *Hook) LatestSnapshot() (core.Snapshot, bool) {
	p := h.snapshot.Load()
	if p == nil {
		return core.Snapshot{}, false
	}
	return *p, true
}

type ctxKey struct{}

// WithHook returns a context carrying h, recoverable with FromContext.
func WithHook(ctx context.Context, h *Hook) context.Context {
	return context.WithValue(ctx, ctxKey{}, h)
}

// FromContext recovers the Hook stashed by WithHook, if any. Transactions
// invoked outside of a running scenario (e.g. in a unit test that calls the
// transaction body directly) get ok == false and should run un-instrumented.
func FromContext(ctx context.Context) (*Hook, bool) {
	h, ok := ctx.Value(ctxKey{}).(*Hook)
	return h, ok
}
