package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BalterLoadTesting/balter/internal/core"
	"github.com/BalterLoadTesting/balter/internal/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBody wraps fn so it looks like a real Transaction call to the
// driver: it records its outcome against whatever Hook Execute stashed in
// ctx, the same way balter.Transaction does for real callers.
func recordingBody(fn func(context.Context) error) Body {
	return func(ctx context.Context) error {
		started := time.Now()
		err := fn(ctx)
		if h, ok := hook.FromContext(ctx); ok {
			h.Record(err == nil, time.Since(started))
		}
		return err
	}
}

func TestExecuteRejectsInvalidConstraints(t *testing.T) {
	badRate := 1.5
	r := &Run{
		Name:        "bad",
		Body:        func(context.Context) error { return nil },
		Constraints: Constraints{ErrorRateTarget: &badRate},
	}
	_, err := r.Execute(context.Background())
	assert.ErrorIs(t, err, core.ErrInvalidConstraint)
}

func TestExecuteRunsAgainstFlatTPSCap(t *testing.T) {
	tps := 200.0
	d := 300 * time.Millisecond
	r := &Run{
		Name:        "flat",
		Body:        recordingBody(func(context.Context) error { return nil }),
		Constraints: Constraints{MaxTPS: &tps, Duration: &d},
		Hints:       Hints{ConcurrencyStart: 4},
	}

	stats, err := r.Execute(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.TotalSuccess, uint64(0))
	assert.Equal(t, uint64(0), stats.TotalError)
	assert.Equal(t, 0.0, stats.ErrorRate)
	assert.NotEmpty(t, stats.RunID)
}

func TestExecuteRecordsErrorsFromBody(t *testing.T) {
	tps := 200.0
	d := 300 * time.Millisecond
	r := &Run{
		Name:        "flaky",
		Body:        recordingBody(func(context.Context) error { return errors.New("boom") }),
		Constraints: Constraints{MaxTPS: &tps, Duration: &d},
		Hints:       Hints{ConcurrencyStart: 4},
	}

	stats, err := r.Execute(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.TotalError, uint64(0))
	assert.Equal(t, uint64(0), stats.TotalSuccess)
}

func TestExecuteRecoversPanickingWorkers(t *testing.T) {
	tps := 100.0
	d := 200 * time.Millisecond
	r := &Run{
		Name: "panicky",
		Body: func(context.Context) error {
			panic("simulated crash")
		},
		Constraints: Constraints{MaxTPS: &tps, Duration: &d},
		Hints:       Hints{ConcurrencyStart: 2},
	}

	done := make(chan struct{})
	go func() {
		_, err := r.Execute(context.Background())
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run with panicking workers never terminated")
	}
}

func TestExecuteSetsFailureBudgetExceeded(t *testing.T) {
	tps := 100.0
	d := 5 * time.Second // long enough that only the crash budget, not the duration, ends the run
	r := &Run{
		Name: "alwayspanics",
		Body: func(context.Context) error {
			panic("simulated crash")
		},
		Constraints: Constraints{MaxTPS: &tps, Duration: &d},
		Hints:       Hints{ConcurrencyStart: 2},
	}

	type result struct {
		stats core.RunStats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := r.Execute(context.Background())
		done <- result{stats, err}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.True(t, res.stats.FailureBudgetExceeded)
		assert.Less(t, res.stats.Elapsed, d)
	case <-time.After(5 * time.Second):
		t.Fatal("run never terminated on its own from the failure budget")
	}
}
