package catalog

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the number of in-flight requests allowed per
// provider family when no capacity is configured.
const DefaultConcurrency = 5

// Limiter is a counting admission gate shared by every request of one
// provider family. It throttles outbound traffic; it is not a lock.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
}

// NewLimiter returns a Limiter admitting capacity concurrent requests.
// Non-positive values use DefaultConcurrency.
func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = DefaultConcurrency
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(capacity)), capacity: capacity}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// Capacity returns the configured number of slots.
func (l *Limiter) Capacity() int {
	return l.capacity
}
