// Package retry provides the exponential-backoff executor used for outbound
// notification delivery. It deliberately never wraps the transfer pipeline
// itself; pipeline failures must surface immediately so they land in the
// per-account accounting.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Do invokes op up to attempts times, sleeping base * 2^(attempt-1) between
// failures. There is no sleep after the final attempt. It returns nil on the
// first success and the last observed error once attempts are exhausted.
// Cancelling ctx aborts the wait between attempts.
func Do(ctx context.Context, attempts int, base time.Duration, op func() error) error {
	if attempts < 1 {
		return fmt.Errorf("retry: attempts must be at least 1, got %d", attempts)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		delay := base << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}
