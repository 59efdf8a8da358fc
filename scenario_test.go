package balter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioRejectsInvalidErrorRate(t *testing.T) {
	s := New("bad", func(context.Context) error { return nil }).ErrorRate(1.5)
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConstraint)
}

func TestScenarioRejectsInvalidLatencyQuantile(t *testing.T) {
	s := New("bad", func(context.Context) error { return nil }).Latency(time.Second, 1.5)
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConstraint)
}

func TestScenarioRunsWithFlatTPS(t *testing.T) {
	var calls atomic.Int64
	s := New("flat", func(ctx context.Context) error {
		_, err := Transaction(ctx, func(context.Context) (int, error) {
			calls.Add(1)
			return 1, nil
		})
		return err
	}).TPS(200).Duration(200 * time.Millisecond)

	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.TotalSuccess, uint64(0))
	assert.Greater(t, calls.Load(), int64(0))
}

func TestScenarioSaturateSetsThreePercentTarget(t *testing.T) {
	s := New("sat", func(context.Context) error { return nil }).Saturate()
	assert.NotNil(t, s.constraints.ErrorRateTarget)
	assert.InDelta(t, 0.03, *s.constraints.ErrorRateTarget, 1e-9)
}

func TestScenarioHintConcurrencyOverridesDefault(t *testing.T) {
	s := New("hinted", func(context.Context) error { return nil }).Hint(HintConcurrency(42))
	assert.Equal(t, 42, s.hints.ConcurrencyStart)
}

func TestTransactionEndToEndThroughScenario(t *testing.T) {
	s := New("checkout", func(ctx context.Context) error {
		_, err := Transaction(ctx, func(context.Context) (int, error) {
			return 1, nil
		})
		return err
	}).TPS(100).Duration(150 * time.Millisecond)

	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.TotalSuccess, uint64(0))
}
