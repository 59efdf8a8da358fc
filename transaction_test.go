package balter

import (
	"context"
	"errors"
	"testing"

	"github.com/BalterLoadTesting/balter/internal/hook"
	"github.com/BalterLoadTesting/balter/internal/metrics"
	"github.com/stretchr/testify/assert"
)

func TestTransactionWithoutHookRunsUninstrumented(t *testing.T) {
	result, err := Transaction(context.Background(), func(context.Context) (int, error) {
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestTransactionRecordsIntoHook(t *testing.T) {
	h := hook.New("checkout", metrics.NewNoopSink())
	ctx := hook.WithHook(context.Background(), h)

	_, err := Transaction(ctx, func(context.Context) (string, error) {
		return "ok", nil
	})
	assert.NoError(t, err)

	_, err = Transaction(ctx, func(context.Context) (string, error) {
		return "", errors.New("failed")
	})
	assert.Error(t, err)

	success, errs := h.Counts()
	assert.Equal(t, uint64(1), success)
	assert.Equal(t, uint64(1), errs)
}
