package adapter

import (
	"context"
	"fmt"
	"time"
)

// Retry runs op up to attempts times, sleeping delay*n before the nth retry
// (linear backoff, no jitter). The final error is returned after the cap is
// exhausted; context cancellation interrupts the wait.
func Retry(ctx context.Context, attempts int, delay time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := delay * time.Duration(attempt-1)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if lastErr = op(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
