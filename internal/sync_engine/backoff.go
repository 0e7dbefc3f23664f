package sync_engine

import (
	"context"
	"time"
)

// Backoff returns the wait before an attempt on a record that already consumed
// retryCount attempts: base * 2^retryCount, capped at maxDelay when maxDelay > 0.
func Backoff(base time.Duration, retryCount int, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if retryCount < 0 {
		retryCount = 0
	}

	delay := base
	for i := 0; i < retryCount; i++ {
		if maxDelay > 0 && delay >= maxDelay {
			return maxDelay
		}
		if delay > time.Duration(1<<62)/2 {
			// doubling again would overflow
			break
		}
		delay *= 2
	}

	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
