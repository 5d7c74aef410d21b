package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// FunctionBehavior adapts a plain function into an ActorBehavior. This is the
// lightest way to define an actor: no struct, no state beyond what the
// closure captures.
type FunctionBehavior[M Message, R any] struct {
	// handler is the function invoked for each received message.
	handler func(ctx context.Context, msg M) fn.Result[R]
}

// NewFunctionBehavior wraps the given function as an ActorBehavior.
func NewFunctionBehavior[M Message, R any](
	handler func(ctx context.Context, msg M) fn.Result[R],
) *FunctionBehavior[M, R] {
	return &FunctionBehavior[M, R]{
		handler: handler,
	}
}

// Receive implements ActorBehavior by delegating to the wrapped function.
func (b *FunctionBehavior[M, R]) Receive(ctx context.Context,
	msg M,
) fn.Result[R] {
	return b.handler(ctx, msg)
}
