// Package poll waits for external resources (containers, databases) with a bounded number of
// attempts and a linearly growing pause between them.
package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
)

// Linear returns a backoff that waits step, 2*step, 3*step, ... between attempts.
func Linear(step time.Duration) retry.Backoff {
	var attempt atomic.Int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		return time.Duration(attempt.Add(1)) * step, false
	})
}

// Do calls fn until it succeeds or attempts calls have failed, sleeping attempt*step after each
// failure. fn receives the 1-based attempt number. The last error from fn is returned.
func Do(ctx context.Context, attempts int, step time.Duration, fn func(ctx context.Context, attempt int) error) error {
	if attempts < 1 {
		return errors.New("attempts must be positive")
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), Linear(step))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := fn(ctx, attempt); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
