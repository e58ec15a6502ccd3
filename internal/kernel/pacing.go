package kernel

import (
	"context"
	"time"
)

// PacingFunc computes the delay to apply between two history batches, given
// the number of rows the batch just produced. It is optional per venue;
// a nil PacingFunc means no pacing.
type PacingFunc func(batchRows int) time.Duration

// DynamicPacing returns the teacher-style "rows / 10 ms" pacing rule, the
// same rule each of the four adapters' PacingDelay computes on its own (the
// adapters do not call this function; they add their own fixed inter-page
// delays inside ListHistory). It models the pipeline's coarse inter-batch
// pressure relief.
func DynamicPacing(batchRows int) time.Duration {
	return time.Duration(batchRows/10) * time.Millisecond
}

// Sleep pauses for d, returning early with ctx.Err() if ctx is cancelled
// first. A non-positive d is a no-op.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
