package util

import (
	"context"
	"time"
)

// Retry invokes fn up to maxAttempts times, doubling the delay between
// attempts starting from baseDelay. It returns nil on the first success and
// the final error otherwise. Cancellation is honored while sleeping between
// attempts.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
