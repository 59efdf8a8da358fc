package ratelimit

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterZeroSuspendsAcquire(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterRaisedFromZeroUnblocks(t *testing.T) {
	l := New(0)
	done := make(chan error, 1)
	go func() {
		done <- l.Acquire(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	l.SetTPS(1000)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not unblock after SetTPS raised the rate above zero")
	}
}

func TestLimiterInfiniteNeverBlocks(t *testing.T) {
	l := New(math.Inf(1))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
}

func TestLimiterReconfigurePositive(t *testing.T) {
	l := New(10)
	assert.Equal(t, float64(10), l.TPS())
	l.SetTPS(500)
	assert.Equal(t, float64(500), l.TPS())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l.Acquire(ctx))
}
