package balter

import (
	"context"
	"time"

	"github.com/BalterLoadTesting/balter/internal/hook"
)

// Transaction wraps a single unit of work inside a running Scenario,
// recording its latency and success/failure into the ambient Hook stashed
// in ctx. Calling Transaction outside of a Scenario's body (for example
// directly in a unit test) runs fn un-instrumented and returns its result
// unchanged.
func Transaction[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	h, ok := hook.FromContext(ctx)
	if !ok {
		return fn(ctx)
	}
	start := time.Now()
	result, err := fn(ctx)
	h.Record(err == nil, time.Since(start))
	return result, err
}
