package resilience

import (
	"context"
	"time"
)

// Wait blocks for d or until ctx is done, returning the context error in
// that case. All backoff sleeps in the mirror go through here so shutdown is
// never stuck inside a bare time.Sleep.
func Wait(ctx context.Context, d time.Duration) error {
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

// Forever retries fn with a fixed delay until it succeeds or ctx is done.
// This is the fetch-boundary policy: the remote source's unavailability is
// expected to be temporary, so the retry is deliberately unbounded.
// onRetry, if non-nil, is invoked before each backoff sleep.
func Forever(ctx context.Context, delay time.Duration, fn func() error, onRetry func(attempt int, err error)) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if werr := Wait(ctx, delay); werr != nil {
			return werr
		}
	}
}
