package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterTransientError(t *testing.T) {
	// Given: a function that fails twice then succeeds
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	}

	// When: retrying
	err := Retry(context.Background(), fastRetry(3), fn)

	// Then: succeeds after 3 attempts
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(2), func() error {
		attempts++
		return errors.New("persistent error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, attempts) // Initial + 2 retries
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	// Given: a predicate accepting only conflicts
	cfg := fastRetry(5)
	cfg.ShouldRetry = IsRetryable
	attempts := 0

	// When: the function fails with a configuration error
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return ErrSequenceNotConfigured
	})

	// Then: no retry happens and the error is returned as is
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, ErrSequenceNotConfigured)
	assert.NotContains(t, err.Error(), "retries")
}

func TestRetryWithResult_RetriesConflicts(t *testing.T) {
	cfg := TransactionRetryConfig(3)
	attempts := 0

	v, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, ConflictError("busy", nil)
		}
		return 7, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithResult_ExhaustedConflictKeepsCause(t *testing.T) {
	cfg := TransactionRetryConfig(3)
	attempts := 0

	_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		attempts++
		return 0, ConflictError("busy", nil)
	})

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, ErrSerializationConflict)
}

func TestRetry_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetry(3), func() error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}
