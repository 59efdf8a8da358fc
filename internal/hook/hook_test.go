package hook

import (
	"context"
	"testing"
	"time"

	"github.com/BalterLoadTesting/balter/internal/metrics"
	"github.com/stretchr/testify/assert"
)

func TestHookRecordCounts(t *testing.T) {
	h := New("checkout", metrics.NewNoopSink())
	h.Record(true, 10*time.Millisecond)
	h.Record(true, 12*time.Millisecond)
	h.Record(false, 8*time.Millisecond)

	success, errors := h.Counts()
	assert.Equal(t, uint64(2), success)
	assert.Equal(t, uint64(1), errors)

	p50, ok := h.Reservoir().Quantile(0.5)
	assert.True(t, ok)
	assert.Greater(t, p50, time.Duration(0))
}

func TestWithHookRoundTrip(t *testing.T) {
	h := New("checkout", metrics.NewNoopSink())
	ctx := WithHook(context.Background(), h)

	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, h, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestHookLatestSnapshotEmptyBeforePublish(t *testing.T) {
	h := New("checkout", metrics.NewNoopSink())
	_, ok := h.LatestSnapshot()
	assert.False(t, ok)
}
