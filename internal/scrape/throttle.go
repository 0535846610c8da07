package scrape

import (
	"context"
	"sync"
	"time"
)

const throttleHistorySize = 10

// AdaptiveThrottle paces navigation by the server's observed latency. It is
// shared by every concurrent extraction in a batch, so the aggregate request
// rate stays bounded, not just the per-worker rate.
type AdaptiveThrottle struct {
	mu     sync.Mutex
	min    time.Duration
	max    time.Duration
	delays []time.Duration
}

// NewAdaptiveThrottle builds a throttle clamped to [min, max].
func NewAdaptiveThrottle(min, max time.Duration) *AdaptiveThrottle {
	if min <= 0 {
		min = 500 * time.Millisecond
	}
	if max < min {
		max = min
	}
	return &AdaptiveThrottle{min: min, max: max}
}

// Delay computes the pause for the given response latency (1.5x, clamped) and
// records it in the bounded rolling history.
func (t *AdaptiveThrottle) Delay(latency time.Duration) time.Duration {
	target := time.Duration(float64(latency) * 1.5)
	if target < t.min {
		target = t.min
	}
	if target > t.max {
		target = t.max
	}
	t.mu.Lock()
	t.delays = append(t.delays, target)
	if len(t.delays) > throttleHistorySize {
		t.delays = t.delays[len(t.delays)-throttleHistorySize:]
	}
	t.mu.Unlock()
	return target
}

// Wait sleeps the computed delay, returning early if the context finishes.
func (t *AdaptiveThrottle) Wait(ctx context.Context, latency time.Duration) error {
	timer := time.NewTimer(t.Delay(latency))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AverageDelay returns the mean of the recent history, zero when empty.
func (t *AdaptiveThrottle) AverageDelay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.delays) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range t.delays {
		sum += d
	}
	return sum / time.Duration(len(t.delays))
}
