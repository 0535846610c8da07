package scrape

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy is a reusable retry value: bounded attempts with exponential,
// capped backoff. The same policy wraps the navigate/validate/extract cycle at
// the browser layer; the supervisor applies its own fixed-backoff policy at
// the job level.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the browser layer contract: three attempts,
// 4s doubling up to a 10s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   4 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// ShouldRetry decides whether the error is worth another attempt. Challenge
// timeouts, navigation timeouts, structural failures and network timeouts are
// all retryable; caller cancellation never is. The typed timeouts are checked
// before the context sentinels so a per-page deadline expiring is not mistaken
// for the job being abandoned.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, ErrChallengeTimeout) || errors.Is(err, ErrNavigationTimeout) || IsInvalidStructure(err) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Backoff returns the wait before attempt n+1. Delays are non-decreasing and
// capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs fn under the policy, sleeping the backoff between attempts. The
// last error is returned once attempts are exhausted.
func (p RetryPolicy) Do(ctx context.Context, logger *zap.Logger, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.ShouldRetry(lastErr, attempt+1) {
			return lastErr
		}
		wait := p.Backoff(attempt)
		if logger != nil {
			logger.Warn("operation failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
