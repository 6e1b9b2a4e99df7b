package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetrier_SucceedsWithoutRetry(t *testing.T) {
	r := NewRetrier(3, time.Millisecond, "test", nil, zap.NewNop())
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RetriesTransientThenSucceeds(t *testing.T) {
	r := NewRetrier(3, time.Millisecond, "test", nil, zap.NewNop())
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return MarkTransient(errors.New("boom"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_ExhaustsRetriesAndReturnsLastError(t *testing.T) {
	r := NewRetrier(2, time.Millisecond, "test", nil, zap.NewNop())
	calls := 0
	sentinel := MarkTransient(errors.New("still broken"))
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestRetrier_NonTransientFailsImmediately(t *testing.T) {
	r := NewRetrier(5, time.Millisecond, "test", nil, zap.NewNop())
	calls := 0
	err := r.Do(context.Background(), "op", func() error {
		calls++
		return errors.New("fatal, not transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ContextCancelledDuringBackoffStops(t *testing.T) {
	r := NewRetrier(5, 50*time.Millisecond, "test", nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, "op", func() error {
		calls++
		return MarkTransient(errors.New("boom"))
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}
