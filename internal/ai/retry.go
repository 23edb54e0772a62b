package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// RetryConfig holds the resilience settings of API calls
type RetryConfig struct {
	MaxRetries int           // Retries after the first attempt (default: 3)
	Timeout    time.Duration // Per-attempt timeout (default: 60s)
	Backoff    BackoffPolicy
	Breaker    BreakerConfig

	MaxConcurrentCalls int // Maximum concurrent API calls (default: 3, 0 = unlimited)
}

// BackoffPolicy is an exponential backoff between attempts
type BackoffPolicy struct {
	Initial time.Duration // default: 1s
	Max     time.Duration // default: 30s
	Factor  float64       // default: 2.0
}

// next returns the wait that follows d
func (p BackoffPolicy) next(d time.Duration) time.Duration {
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d = time.Duration(float64(d) * factor)
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		Timeout:    60 * time.Second,
		Backoff: BackoffPolicy{
			Initial: time.Second,
			Max:     30 * time.Second,
			Factor:  2.0,
		},
		Breaker: BreakerConfig{
			Trip:     5,
			Recover:  2,
			Cooldown: 30 * time.Second,
		},
		MaxConcurrentCalls: 3,
	}
}

// withRetry runs fn until it succeeds, fails permanently, or runs out of
// attempts. The whole sequence holds one concurrency slot.
func (s *Supervisor) withRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	if s.concurrencySem != nil {
		if err := s.concurrencySem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("%s: waiting for a call slot: %w", operation, err)
		}
		defer s.concurrencySem.Release(1)
	}

	attempts := s.retry.MaxRetries + 1
	wait := s.retry.Backoff.Initial
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		if s.breaker != nil {
			if openErr := s.breaker.Before(); openErr != nil {
				snap := s.breaker.Snapshot()
				s.logger.Warn("classifier call refused by breaker",
					"operation", operation, "opened_at", snap.OpenedAt, "failures", snap.ConsecutiveFailures)
				return fmt.Errorf("%s: %w", operation, openErr)
			}
		}

		err = s.attempt(ctx, fn)
		transient := err != nil && isTransient(err)
		if s.breaker != nil && (err == nil || transient) {
			s.breaker.After(transient)
		}

		switch {
		case err == nil:
			if attempt > 1 {
				s.logger.Info("classifier call recovered", "operation", operation, "attempt", attempt)
			}
			return nil
		case !transient:
			s.logger.Warn("classifier call rejected", "operation", operation, "error", err)
			return err
		case attempt == attempts:
			continue
		}

		s.logger.Info("classifier call failed, backing off",
			"operation", operation, "attempt", attempt, "of", attempts, "wait", wait, "error", err)
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return fmt.Errorf("%s: interrupted during backoff: %w", operation, sleepErr)
		}
		wait = s.retry.Backoff.next(wait)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, err)
}

// attempt runs fn under the per-attempt timeout
func (s *Supervisor) attempt(ctx context.Context, fn func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, s.retry.Timeout)
	defer cancel()
	return fn(attemptCtx)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transientMarkers are substrings of error text that indicate a temporary
// condition on the API side or the network between us.
var transientMarkers = []string{
	"429", "rate limit", "too many requests",
	"500", "502", "503", "504", "529",
	"internal server error", "bad gateway", "service unavailable", "gateway timeout", "overloaded",
	"connection refused", "connection reset", "timeout", "temporary failure", "network",
}

// isTransient reports whether err is worth retrying
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	text := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
