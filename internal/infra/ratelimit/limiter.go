// Package ratelimit caps concurrent in-flight requests and request starts per second.
package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter combines a permit pool of size N with a start spacing of 1/R.
// Permits are held for the whole network call; spacing applies to grants.
type Limiter struct {
	permits  *semaphore.Weighted
	spacing  *rate.Limiter
	inFlight atomic.Int64
}

// New creates a limiter allowing maxConcurrent requests in flight and
// perSecond request starts per second.
func New(maxConcurrent int, perSecond float64) (*Limiter, error) {
	if maxConcurrent < 1 {
		return nil, fmt.Errorf("max concurrent must be positive, got %d", maxConcurrent)
	}
	if perSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be positive, got %v", perSecond)
	}
	return &Limiter{
		permits: semaphore.NewWeighted(int64(maxConcurrent)),
		// Burst 1 keeps exactly one last-grant timestamp behind the limiter's lock
		spacing: rate.NewLimiter(rate.Limit(perSecond), 1),
	}, nil
}

// Acquire blocks until a permit is free and the spacing since the previous
// grant has elapsed. The returned release must be called once the request
// finishes. On ctx cancellation no permit is held.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.permits.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := l.spacing.Wait(ctx); err != nil {
		l.permits.Release(1)
		return nil, err
	}

	l.inFlight.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			l.inFlight.Add(-1)
			l.permits.Release(1)
		}
	}, nil
}

// InFlight returns the number of currently held permits.
func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}
