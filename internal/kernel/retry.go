package kernel

import (
	"context"
	"errors"
	"time"
)

// MaxAttempts is the maximum number of attempts the retry policy makes for
// one operation, per spec.md §4.4.
const MaxAttempts = 3

// Retryable reports whether err represents a transient failure that is worth
// retrying. Cancellation is never retryable — it propagates immediately.
type Retryable func(err error) bool

// DefaultRetryable treats every non-cancellation error as transient. Venue
// adapters return typed errors (domain.VenueAPIError, domain.EmptyResultError)
// for the cases spec.md §7 marks retryable; callers that need narrower
// behavior can supply their own Retryable.
func DefaultRetryable(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn up to MaxAttempts times. On attempt k (1-indexed) after a
// failure, it sleeps k*1s before the next attempt. The final attempt's error
// is returned as-is. Cancellation propagates immediately without a retry
// sleep.
func Do(ctx context.Context, retryable Retryable, fn func(ctx context.Context) error) error {
	if retryable == nil {
		retryable = DefaultRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			return lastErr
		}

		if attempt == MaxAttempts {
			break
		}

		backoff := time.Duration(attempt) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}
