package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry retries quickly and has no breaker
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		Timeout:    time.Second,
		Backoff:    BackoffPolicy{Initial: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2},
	}
}

// newTestSupervisor returns a supervisor whose API call is replaced by complete.
func newTestSupervisor(retry RetryConfig, complete completeFunc) *Supervisor {
	s := newSupervisor(&Config{Model: "test-model", Retry: retry})
	s.complete = complete
	return s
}

func TestBackoffPolicyNext(t *testing.T) {
	p := BackoffPolicy{Initial: time.Second, Max: 5 * time.Second, Factor: 2}
	assert.Equal(t, 2*time.Second, p.next(time.Second))
	assert.Equal(t, 4*time.Second, p.next(2*time.Second))
	assert.Equal(t, 5*time.Second, p.next(4*time.Second))

	flat := BackoffPolicy{Factor: 0}
	assert.Equal(t, time.Second, flat.next(time.Second))
}

func TestCallAIRetriesTransientErrors(t *testing.T) {
	calls := 0
	s := newTestSupervisor(fastRetry(), func(ctx context.Context, model string, maxTokens int, prompt string) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503 service unavailable")
		}
		assert.Equal(t, "test-model", model)
		assert.Equal(t, defaultMaxTokens, maxTokens)
		return "ok", nil
	})

	text, err := s.CallAI(context.Background(), "hello", "test", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, calls)
}

func TestCallAIStopsOnPermanentError(t *testing.T) {
	calls := 0
	s := newTestSupervisor(fastRetry(), func(ctx context.Context, model string, maxTokens int, prompt string) (string, error) {
		calls++
		return "", errors.New("invalid x-api-key")
	})

	_, err := s.CallAI(context.Background(), "hello", "test", "", 0)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallAIGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	s := newTestSupervisor(fastRetry(), func(ctx context.Context, model string, maxTokens int, prompt string) (string, error) {
		calls++
		return "", errors.New("rate limit exceeded")
	})

	_, err := s.CallAI(context.Background(), "hello", "test", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestCallAIBreakerFailsFast(t *testing.T) {
	retry := fastRetry()
	retry.MaxRetries = 0
	retry.Breaker = BreakerConfig{Trip: 1, Recover: 1, Cooldown: time.Hour}

	calls := 0
	s := newTestSupervisor(retry, func(ctx context.Context, model string, maxTokens int, prompt string) (string, error) {
		calls++
		return "", errors.New("overloaded")
	})

	_, err := s.CallAI(context.Background(), "a", "test", "", 0)
	require.Error(t, err)
	_, err = s.CallAI(context.Background(), "b", "test", "", 0)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, calls)
	assert.Equal(t, BreakerOpen, s.BreakerState())
}

func TestCallAIPermanentErrorsDoNotTrip(t *testing.T) {
	retry := fastRetry()
	retry.Breaker = BreakerConfig{Trip: 1, Cooldown: time.Hour}

	s := newTestSupervisor(retry, func(ctx context.Context, model string, maxTokens int, prompt string) (string, error) {
		return "", errors.New("400 bad request: prompt too long")
	})

	for i := 0; i < 3; i++ {
		_, err := s.CallAI(context.Background(), "p", "test", "", 0)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, BreakerClosed, s.BreakerState())
}

func TestCallAICanceledDuringBackoff(t *testing.T) {
	retry := fastRetry()
	retry.Backoff.Initial = time.Hour
	ctx, cancel := context.WithCancel(context.Background())

	s := newTestSupervisor(retry, func(context.Context, string, int, string) (string, error) {
		cancel()
		return "", errors.New("503 service unavailable")
	})

	_, err := s.CallAI(ctx, "p", "test", "", 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limit text", errors.New("429 Too Many Requests"), true},
		{"server error text", errors.New("502 bad gateway"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"auth failure", errors.New("401 unauthorized"), false},
		{"api 429", &anthropic.Error{StatusCode: 429}, true},
		{"api 503", &anthropic.Error{StatusCode: 503}, true},
		{"api 400", &anthropic.Error{StatusCode: 400}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}
