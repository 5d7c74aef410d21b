package actor

import (
	"context"
	"fmt"
	"iter"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrActorTerminated indicates that an operation failed because the target
// actor was terminated or in the process of shutting down. Timer-fired
// deliveries that race actor shutdown surface this through the dead letter
// office rather than through the sender.
var ErrActorTerminated = fmt.Errorf("actor terminated")

// ErrServiceKeyTypeMismatch indicates that a registration attempt failed
// because the service key name is already registered with a different
// message or response type.
var ErrServiceKeyTypeMismatch = fmt.Errorf("service key type mismatch")

// BaseMessage is embedded by message types defined outside this package to
// satisfy the Message interface's unexported messageMarker method.
type BaseMessage struct{}

// messageMarker implements the unexported method of the Message interface.
func (BaseMessage) messageMarker() {}

// Message is the sealed interface all mailbox payloads implement. Sealing
// (via the unexported messageMarker method, see BaseMessage) keeps the set
// of deliverable types explicit: a mailbox only ever carries values that
// opted in.
type Message interface {
	// messageMarker seals the interface.
	messageMarker()

	// MessageType returns the type name of the message for
	// routing/filtering.
	MessageType() string
}

// Future is the consumer half of an ask: it blocks until the actor's reply
// (or a failure) is available.
type Future[T any] interface {
	// Await blocks until the result is available or the context is
	// cancelled, then returns it.
	Await(ctx context.Context) fn.Result[T]
}

// Promise is the producer half of an ask. The actor's processing loop
// completes it exactly once with the behavior's result; the caller holds
// the associated Future.
type Promise[T any] interface {
	// Future returns the Future associated with this Promise.
	Future() Future[T]

	// Complete attempts to set the result. It returns true if this call
	// was the one that completed the promise, false if it had already
	// been completed.
	Complete(result fn.Result[T]) bool
}

// BaseActorRef is the non-generic core of every actor reference: a stable
// identity. Heterogeneous containers (the Receptionist's registration map,
// a timer service's per-actor index) key off this without caring about the
// message type behind it.
type BaseActorRef interface {
	// ID returns the unique identifier for this actor.
	ID() string
}

// TellOnlyRef is a reference restricted to fire-and-forget sends. Timer
// deliveries use exactly this capability: a fired timeout is told to the
// actor, never asked.
type TellOnlyRef[M Message] interface {
	BaseActorRef

	// Tell sends a message without waiting for a response. If the
	// context is cancelled before the message reaches the actor's
	// mailbox, the message may be dropped.
	Tell(ctx context.Context, msg M)
}

// ActorRef adds request-response on top of TellOnlyRef.
type ActorRef[M Message, R any] interface {
	TellOnlyRef[M]

	// Ask sends a message and returns a Future for the response. The
	// Future completes with the actor's reply, or with an error if the
	// send fails.
	Ask(ctx context.Context, msg M) Future[R]
}

// ActorBehavior is the strategy an actor runs for each received message.
type ActorBehavior[M Message, R any] interface {
	// Receive processes one message. For asks, the provided context
	// merges the actor's lifecycle context with the caller's, so the
	// behavior observes both system shutdown and the caller's deadline;
	// for tells it is the actor's lifecycle context alone.
	Receive(ctx context.Context, msg M) fn.Result[R]
}

// SystemContext is the slice of system capability the discovery-dependent
// helpers need: a way to reach the Receptionist. Narrowing to an interface
// keeps those helpers testable without a full ActorSystem.
type SystemContext interface {
	// Receptionist returns the system's receptionist for actor discovery.
	Receptionist() *Receptionist
}

// Mailbox is an actor's message queue.
//
// Thread safety: Send may be called concurrently from any goroutine;
// Receive and Drain are only called from the actor's own processing
// goroutine; Close is idempotent and may race Send (sends after Close
// return false).
type Mailbox[M Message, R any] interface {
	// Send delivers an envelope, blocking until it is accepted, the
	// caller's context is cancelled, or the actor shuts down. It reports
	// whether the envelope was accepted.
	Send(ctx context.Context, env envelope[M, R]) bool

	// Receive returns an iterator over incoming envelopes. It blocks
	// while the mailbox is empty and stops when the provided context is
	// cancelled or the mailbox is closed.
	Receive(ctx context.Context) iter.Seq[envelope[M, R]]

	// Close stops further sends. Already-accepted envelopes remain
	// available to Drain.
	Close()

	// Drain returns an iterator over the envelopes left after Close,
	// for dead-letter handling during shutdown.
	Drain() iter.Seq[envelope[M, R]]
}
