// Package actorutil provides small conveniences over the actor runtime in
// internal/baselib/actor.
package actorutil

import (
	"context"

	"github.com/novaquark/actor-framework/internal/baselib/actor"
)

// AskAwait sends an Ask and blocks until the response is available,
// unpacking the result into a plain value/error pair. Callers that just
// need one synchronous round trip (a drain barrier after a timer scenario,
// a health probe) use this instead of juggling the Future by hand.
func AskAwait[M actor.Message, R any](
	ctx context.Context,
	ref actor.ActorRef[M, R],
	msg M,
) (R, error) {

	return ref.Ask(ctx, msg).Await(ctx).Unpack()
}
