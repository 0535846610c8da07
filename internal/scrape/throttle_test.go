package scrape

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdaptiveThrottle_ClampsToBounds(t *testing.T) {
	t.Parallel()
	throttle := NewAdaptiveThrottle(time.Second, 5*time.Second)

	require.Equal(t, time.Second, throttle.Delay(100*time.Millisecond))
	require.Equal(t, 3*time.Second, throttle.Delay(2*time.Second))
	require.Equal(t, 5*time.Second, throttle.Delay(time.Minute))
}

func TestAdaptiveThrottle_HistoryBounded(t *testing.T) {
	t.Parallel()
	throttle := NewAdaptiveThrottle(time.Millisecond, time.Second)

	for i := 0; i < 50; i++ {
		throttle.Delay(10 * time.Millisecond)
	}
	require.Equal(t, 15*time.Millisecond, throttle.AverageDelay())
}

func TestAdaptiveThrottle_WaitHonorsContext(t *testing.T) {
	t.Parallel()
	throttle := NewAdaptiveThrottle(time.Minute, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := throttle.Wait(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAdaptiveThrottle_ConcurrentUse(t *testing.T) {
	t.Parallel()
	throttle := NewAdaptiveThrottle(time.Millisecond, 10*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				throttle.Delay(time.Duration(j) * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	avg := throttle.AverageDelay()
	require.GreaterOrEqual(t, avg, time.Millisecond)
	require.LessOrEqual(t, avg, 10*time.Millisecond)
}
