package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeHTTPStatuses(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{400, false}, {401, false}, {403, false}, {404, false},
		{413, false}, {429, true}, {500, true}, {503, true},
	}
	for _, c := range cases {
		ce := categorize(errors.New("boom"), c.status)
		assert.Equal(t, c.retryable, ce.Retryable, "status %d", c.status)
	}
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiple: 2}
	attempts := 0
	text, err := withRetry(context.Background(), cfg, func() (string, int, error) {
		attempts++
		if attempts < 2 {
			return "", 503, errors.New("server error")
		}
		return "ok", 200, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, attempts)
}

func TestWithRetryAbortsOnNonRetryable(t *testing.T) {
	cfg := DefaultRetryConfig
	attempts := 0
	_, err := withRetry(context.Background(), cfg, func() (string, int, error) {
		attempts++
		return "", 401, errors.New("unauthorized")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryRespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, BackoffMultiple: 2}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := withRetry(ctx, cfg, func() (string, int, error) {
		return "", 503, errors.New("server error")
	})
	assert.Error(t, err)
}
