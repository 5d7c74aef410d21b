package timer

import (
	"context"
	"weak"

	"github.com/google/uuid"
	"github.com/novaquark/actor-framework/internal/baselib/actor"
)

// RawID is an actor's raw identity, as handed out by the host actor
// runtime (actor.BaseActorRef.ID()). This package does not track identity
// recycling: once an actor dies, its RawID may be handed to a new actor,
// so equality against a stored RawID is ambiguous across reuse. Callers
// must submit CancelTimeouts before an identity can be recycled.
type RawID = string

// Receiver is a strong reference to an actor, narrowed to exactly the
// operations the schedule needs to deliver a fired timer entry. Holding
// one keeps the target deliverable.
type Receiver interface {
	// ID returns the actor's raw identity.
	ID() RawID

	// Weak returns a weak reference to this receiver. The Dispatcher
	// downgrades to this form while a setter command is in transit, so a
	// backlogged command buffer never prolongs an actor's lifetime.
	Weak() WeakReceiver

	// DeliverOrdinaryTimeout delivers a fired ordinary timeout.
	DeliverOrdinaryTimeout(ctx context.Context, typeTag string, ordinalID uint64)

	// DeliverMultiTimeout delivers a fired multi-timeout.
	DeliverMultiTimeout(ctx context.Context, typeTag string, ordinalID uint64)

	// DeliverRequestTimeout delivers a fired request timeout under the
	// original request's response id.
	DeliverRequestTimeout(ctx context.Context, requestID uuid.UUID)

	// DeliverMessage delivers a pre-built, already-addressed message
	// (a delayed actor message). The message's static type must match
	// what the underlying actor was registered with; a mismatch is
	// logged and dropped rather than panicking.
	DeliverMessage(ctx context.Context, msg any)
}

// ActorReceiver adapts an actor.TellOnlyRef[M] into a Receiver. It keeps
// the Schedule Core itself free of generics: the conversion from a fired
// timeout into the actor's own message type M is captured once, as
// closures, at registration time.
type ActorReceiver[M actor.Message] struct {
	ref actor.TellOnlyRef[M]

	makeOrdinaryTimeout func(typeTag string, ordinalID uint64) M
	makeMultiTimeout    func(typeTag string, ordinalID uint64) M
	makeRequestTimeout  func(requestID uuid.UUID) M
}

// NewActorReceiver builds a Receiver around ref. makeOrdinaryTimeout and
// makeMultiTimeout build the actor's own timeout message type from a type
// tag and ordinal id; makeRequestTimeout builds the message delivered when
// a pending request goes unanswered. Any of the three may be nil if the
// actor never uses that timer kind; delivering an unsupported kind is then
// a logged no-op.
func NewActorReceiver[M actor.Message](
	ref actor.TellOnlyRef[M],
	makeOrdinaryTimeout, makeMultiTimeout func(typeTag string, ordinalID uint64) M,
	makeRequestTimeout func(requestID uuid.UUID) M,
) *ActorReceiver[M] {

	return &ActorReceiver[M]{
		ref:                 ref,
		makeOrdinaryTimeout: makeOrdinaryTimeout,
		makeMultiTimeout:    makeMultiTimeout,
		makeRequestTimeout:  makeRequestTimeout,
	}
}

// ID implements Receiver.
func (a *ActorReceiver[M]) ID() RawID {
	return a.ref.ID()
}

// Weak implements Receiver.
func (a *ActorReceiver[M]) Weak() WeakReceiver {
	return WeakRef(a)
}

// DeliverOrdinaryTimeout implements Receiver.
func (a *ActorReceiver[M]) DeliverOrdinaryTimeout(ctx context.Context,
	typeTag string, ordinalID uint64) {

	if a.makeOrdinaryTimeout == nil {
		log.DebugS(ctx, "Dropping ordinary timeout, receiver has no "+
			"ordinary-timeout constructor", "actor_id", a.ref.ID(),
			"type", typeTag)
		return
	}

	a.ref.Tell(ctx, a.makeOrdinaryTimeout(typeTag, ordinalID))
}

// DeliverMultiTimeout implements Receiver.
func (a *ActorReceiver[M]) DeliverMultiTimeout(ctx context.Context,
	typeTag string, ordinalID uint64) {

	if a.makeMultiTimeout == nil {
		log.DebugS(ctx, "Dropping multi-timeout, receiver has no "+
			"multi-timeout constructor", "actor_id", a.ref.ID(),
			"type", typeTag)
		return
	}

	a.ref.Tell(ctx, a.makeMultiTimeout(typeTag, ordinalID))
}

// DeliverRequestTimeout implements Receiver.
func (a *ActorReceiver[M]) DeliverRequestTimeout(ctx context.Context,
	requestID uuid.UUID) {

	if a.makeRequestTimeout == nil {
		log.DebugS(ctx, "Dropping request timeout, receiver has no "+
			"request-timeout constructor", "actor_id", a.ref.ID(),
			"request_id", requestID)
		return
	}

	a.ref.Tell(ctx, a.makeRequestTimeout(requestID))
}

// DeliverMessage implements Receiver.
func (a *ActorReceiver[M]) DeliverMessage(ctx context.Context, msg any) {
	typed, ok := msg.(M)
	if !ok {
		log.DebugS(ctx, "Dropping delayed message, type mismatch",
			"actor_id", a.ref.ID())
		return
	}

	a.ref.Tell(ctx, typed)
}

// WeakReceiver is a weak reference to an actor. It does not keep the
// underlying Receiver (and therefore the actor it targets) alive; once
// the last strong reference is gone, Upgrade reports the target as
// gone.
type WeakReceiver struct {
	id      RawID
	upgrade func() (Receiver, bool)
}

// receiverPointer constrains WeakRef to pointer-shaped Receiver
// implementations: weak.Make can only track a real heap allocation, so the
// weak reference has to be taken on the receiver value itself, not on a
// copy of the interface header.
type receiverPointer[T any] interface {
	*T
	Receiver
}

// WeakRef takes a weak reference to the receiver behind r. The reference
// tracks r's own allocation: as long as the caller (typically the
// component that registered the actor) holds r strongly, Upgrade succeeds;
// once r is collected, Upgrade reports the target gone.
func WeakRef[T any, P receiverPointer[T]](r P) WeakReceiver {
	ptr := weak.Make((*T)(r))

	return WeakReceiver{
		id: r.ID(),
		upgrade: func() (Receiver, bool) {
			v := ptr.Value()
			if v == nil {
				return nil, false
			}

			return P(v), true
		},
	}
}

// ID returns the cached raw identity of the weakly-referenced actor. This
// remains valid even after the target has been collected, so the Dispatcher
// can still report which actor a dropped command belonged to.
func (w WeakReceiver) ID() RawID {
	return w.id
}

// Upgrade attempts to promote the weak reference to a strong Receiver.
// It reports false if the target has already been garbage collected.
func (w WeakReceiver) Upgrade() (Receiver, bool) {
	if w.upgrade == nil {
		return nil, false
	}

	return w.upgrade()
}

// GroupReceiver is a strong reference to a group of actors. In practice
// this either wraps a single TellOnlyRef to a dedicated broadcast actor,
// or fans out over a service key's registrants via ServiceKeyGroup.
type GroupReceiver interface {
	// ID returns the group's identity.
	ID() RawID

	// DeliverGroupMessage delivers a fired delayed group message,
	// attributing it to the original sender.
	DeliverGroupMessage(ctx context.Context, sender Receiver, msg any)
}

// ActorGroupReceiver adapts an actor.TellOnlyRef[M] (a broadcast actor
// that forwards to its members) into a GroupReceiver.
type ActorGroupReceiver[M actor.Message] struct {
	id      RawID
	ref     actor.TellOnlyRef[M]
	convert func(sender Receiver, msg any) M
}

// NewActorGroupReceiver builds a GroupReceiver around ref. convert turns
// the original sender and the pre-built message payload into the group's
// own message type.
func NewActorGroupReceiver[M actor.Message](
	id RawID, ref actor.TellOnlyRef[M],
	convert func(sender Receiver, msg any) M,
) *ActorGroupReceiver[M] {

	return &ActorGroupReceiver[M]{id: id, ref: ref, convert: convert}
}

// ID implements GroupReceiver.
func (g *ActorGroupReceiver[M]) ID() RawID {
	return g.id
}

// DeliverGroupMessage implements GroupReceiver.
func (g *ActorGroupReceiver[M]) DeliverGroupMessage(ctx context.Context,
	sender Receiver, msg any) {

	g.ref.Tell(ctx, g.convert(sender, msg))
}

// ServiceKeyGroup is a GroupReceiver that fans a fired delayed group
// message out to every actor currently registered under a service key,
// using the Receptionist's broadcast. Unlike ActorGroupReceiver it holds
// no single forwarding target: membership is resolved at fire time, so
// actors registered after the message was scheduled still get it.
type ServiceKeyGroup[M actor.Message, R any] struct {
	id      RawID
	key     actor.ServiceKey[M, R]
	sys     actor.SystemContext
	convert func(sender Receiver, msg any) M
}

// NewServiceKeyGroup builds a GroupReceiver over key within sys. convert
// turns the original sender and the pre-built message payload into the
// group's own message type.
func NewServiceKeyGroup[M actor.Message, R any](
	id RawID, key actor.ServiceKey[M, R], sys actor.SystemContext,
	convert func(sender Receiver, msg any) M,
) *ServiceKeyGroup[M, R] {

	return &ServiceKeyGroup[M, R]{
		id: id, key: key, sys: sys, convert: convert,
	}
}

// ID implements GroupReceiver.
func (g *ServiceKeyGroup[M, R]) ID() RawID {
	return g.id
}

// DeliverGroupMessage implements GroupReceiver.
func (g *ServiceKeyGroup[M, R]) DeliverGroupMessage(ctx context.Context,
	sender Receiver, msg any) {

	delivered := g.key.Broadcast(g.sys, ctx, g.convert(sender, msg))
	if delivered == 0 {
		log.DebugS(ctx, "Delayed group message had no registered "+
			"receivers", "group_id", g.id)
	}
}
