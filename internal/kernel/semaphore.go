package kernel

import "context"

// Semaphore bounds the number of concurrently in-flight units of work for a
// single pipeline instance. It is constructed once per pipeline instance
// (never lazily on first use) per spec.md §9's re-architecture guidance, and
// is shared across every call made during one job execution.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity. A capacity <= 0
// is treated as 1 (a venue adapter always allows at least sequential work).
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot is available or ctx is cancelled. On
// cancellation it returns ctx.Err() immediately without having acquired a
// slot.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously acquired slot.
func (s *Semaphore) Release() {
	<-s.slots
}
