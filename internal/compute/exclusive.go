package compute

import (
	"context"
	"time"
)

// Exclusive grants scoped, one-at-a-time access to a resource of type R.
// Waiting for the resource honors context cancellation; once fn starts it
// runs to completion.
type Exclusive[R any] struct {
	sem       chan struct{}
	res       R
	onAcquire func(wait time.Duration)
}

func NewExclusive[R any](res R) *Exclusive[R] {
	return &Exclusive[R]{sem: make(chan struct{}, 1), res: res}
}

// OnAcquire registers a hook called with the time spent waiting for the
// resource. It must be set before the first call to Do.
func (e *Exclusive[R]) OnAcquire(fn func(wait time.Duration)) {
	e.onAcquire = fn
}

// Do waits for the resource, passes it to fn and releases it when fn
// returns or panics.
func (e *Exclusive[R]) Do(ctx context.Context, fn func(R) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()

	if e.onAcquire != nil {
		e.onAcquire(time.Since(start))
	}
	return fn(e.res)
}
