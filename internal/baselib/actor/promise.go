package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// promiseImpl backs both the Promise and Future interfaces with a single
// allocation: the actor's processing loop completes it, the asking caller
// awaits it. The result is written exactly once, before done is closed, so
// reads after <-done need no further synchronization.
type promiseImpl[T any] struct {
	// done is closed exactly once, after result has been set.
	done chan struct{}

	// once guards the single completion.
	once sync.Once

	// result holds the final outcome. Only valid after done is closed.
	result fn.Result[T]
}

// NewPromise creates an incomplete Promise. Hand its Future to the
// consumer; complete it from the producer.
func NewPromise[T any]() Promise[T] {
	return &promiseImpl[T]{
		done: make(chan struct{}),
	}
}

// Complete attempts to set the result. It returns true if this call was
// the one that completed the promise, false if it had already been
// completed.
func (p *promiseImpl[T]) Complete(result fn.Result[T]) bool {
	completed := false
	p.once.Do(func() {
		p.result = result
		close(p.done)
		completed = true
	})

	return completed
}

// Future returns the Future associated with this Promise.
func (p *promiseImpl[T]) Future() Future[T] {
	return p
}

// Await blocks until the result is available or ctx is cancelled. A
// cancelled wait yields the context's error as the result; the promise
// itself stays pending and may still complete for other waiters.
func (p *promiseImpl[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		return p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}
