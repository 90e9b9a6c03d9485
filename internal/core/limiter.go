package core

// limiter.go bounds how many cleanings run at once.
//
// Cleaning holds a whole dataset in memory and may wait on a model call, so
// the process admits at most maxConcurrent cleanings. When every slot is
// busy a request waits up to maxWait and then fails with
// ErrTooManyCleanings. WaitForDrain lets shutdown wait for running work.

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyCleanings is returned when no cleaning slot frees up within the
// wait time. Clients should retry after a short delay.
var ErrTooManyCleanings = errors.New("too many cleanings in progress, please try again later")

const (
	DefaultMaxConcurrentCleanings = 4
	DefaultMaxWaitTime            = 15 * time.Second
)

// CleaningLimiter is a counting semaphore with a bounded wait.
type CleaningLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewCleaningLimiter allows at most maxConcurrent simultaneous cleanings.
func NewCleaningLimiter(maxConcurrent int, maxWait time.Duration) *CleaningLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentCleanings
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &CleaningLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's max wait. The caller
// must call Release exactly once after a nil return.
func (l *CleaningLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrTooManyCleanings
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free now.
func (l *CleaningLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *CleaningLimiter) Release() {
	<-l.slots
}

// WaitForDrain blocks until running cleanings finish or ctx ends.
func (l *CleaningLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for len(l.slots) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is a point-in-time view of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status reports current slot usage.
func (l *CleaningLimiter) Status() LimiterStatus {
	active := len(l.slots)
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
