package actor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// stoppable is the lifecycle handle the system keeps per actor; it only
// ever needs to tell one to stop.
type stoppable interface {
	Stop()
}

// SystemConfig holds configuration parameters for the ActorSystem.
type SystemConfig struct {
	// MailboxCapacity is the default capacity for actor mailboxes.
	MailboxCapacity int
}

// DefaultConfig returns a default configuration for the ActorSystem.
func DefaultConfig() SystemConfig {
	return SystemConfig{
		MailboxCapacity: 100,
	}
}

// ActorSystem owns the lifecycle of a set of actors: it starts them, makes
// them discoverable through a Receptionist, routes undeliverable messages
// to a dead letter office, and shuts everything down deterministically. A
// timer dispatcher runs alongside a system like this, delivering fired
// events into the mailboxes of actors the system hosts.
type ActorSystem struct {
	// receptionist is used for actor discovery.
	receptionist *Receptionist

	// managed holds every actor the system owns (the dead letter actor
	// included), keyed by ID.
	managed map[string]stoppable

	// deadLetters handles undeliverable messages.
	deadLetters ActorRef[Message, any]

	// config holds the system-wide configuration.
	config SystemConfig

	// mu protects the managed map.
	mu sync.RWMutex

	// ctx is the system's lifecycle context; cancel ends it.
	ctx    context.Context
	cancel context.CancelFunc

	// running tracks live actor goroutines for deterministic shutdown.
	running sync.WaitGroup
}

// NewActorSystem creates an actor system with the default configuration.
func NewActorSystem() *ActorSystem {
	return NewActorSystemWithConfig(DefaultConfig())
}

// NewActorSystemWithConfig creates an actor system with custom
// configuration.
func NewActorSystemWithConfig(config SystemConfig) *ActorSystem {
	ctx, cancel := context.WithCancel(context.Background())

	system := &ActorSystem{
		receptionist: newReceptionist(),
		config:       config,
		managed:      make(map[string]stoppable),
		ctx:          ctx,
		cancel:       cancel,
	}

	// The dead letter office is itself an actor; it answers every
	// message with an undeliverable error. Its own DLO reference is nil
	// so a failing dead letter can never loop back into it.
	dlo := NewActor(ActorConfig[Message, any]{
		ID: "dead-letters",
		Behavior: NewFunctionBehavior(
			func(ctx context.Context, msg Message) fn.Result[any] {
				return fn.Err[any](errors.New(
					"message undeliverable: " +
						msg.MessageType(),
				))
			},
		),
		MailboxSize: config.MailboxCapacity,
		Wg:          &system.running,
	})
	dlo.Start()
	system.deadLetters = dlo.Ref()

	// No lock needed: the system is not visible to other goroutines yet.
	system.managed[dlo.id] = dlo

	return system
}

// newStoppedActorRef builds a reference to an already-stopped actor. It is
// what registration returns when it cannot produce a live actor, so
// callers always get a usable (if always-failing) non-nil reference
// instead of a nil that would panic on first use.
func newStoppedActorRef[M Message, R any](id string) ActorRef[M, R] {
	cfg := ActorConfig[M, R]{ID: id}
	actor := NewActor(cfg)
	actor.Stop()
	return actor.Ref()
}

// RegisterWithSystem creates, starts, and registers an actor in one step:
// the behavior runs under the given ID, and the actor becomes discoverable
// through the receptionist under key. This is how the demo binaries stand
// up every timer target. The returned reference is always non-nil; if the
// system is already shutting down or the key's types conflict with an
// earlier registration, it refers to a stopped actor whose operations fail
// with ErrActorTerminated.
func RegisterWithSystem[M Message, R any](as *ActorSystem, id string,
	key ServiceKey[M, R], behavior ActorBehavior[M, R],
) ActorRef[M, R] {
	if as.ctx.Err() != nil {
		return newStoppedActorRef[M, R](id)
	}

	live := NewActor(ActorConfig[M, R]{
		ID:          id,
		Behavior:    behavior,
		DLO:         as.deadLetters,
		MailboxSize: as.config.MailboxCapacity,
		Wg:          &as.running,
	})
	live.Start()

	as.mu.Lock()
	as.managed[live.id] = live
	as.mu.Unlock()

	if err := RegisterWithReceptionist(
		as.receptionist, key, live.Ref(),
	); err != nil {
		// Type mismatch: undo the start and hand back a safe stopped
		// reference.
		live.Stop()
		as.mu.Lock()
		delete(as.managed, live.id)
		as.mu.Unlock()

		return newStoppedActorRef[M, R](id)
	}

	log.DebugS(as.ctx, "Actor registered",
		"actor_id", id, "service_key", key.name)

	return live.Ref()
}

// Receptionist returns the system's receptionist for actor discovery.
func (as *ActorSystem) Receptionist() *Receptionist {
	return as.receptionist
}

// Shutdown stops every managed actor and blocks until all of their
// goroutines have exited or ctx expires. Cancelling the system context
// first is what makes this race-free: any RegisterWithSystem call landing
// after that point sees the cancelled context and returns a stopped
// reference instead of adding to the WaitGroup behind our back.
func (as *ActorSystem) Shutdown(ctx context.Context) error {
	as.cancel()

	// Snapshot outside the Stop calls so the lock is not held while
	// actors wind down.
	as.mu.RLock()
	stopping := make([]stoppable, 0, len(as.managed))
	for _, live := range as.managed {
		stopping = append(stopping, live)
	}
	as.mu.RUnlock()

	log.InfoS(ctx, "Stopping actor system",
		"num_actors", len(stopping))

	for _, live := range stopping {
		live.Stop()
	}

	as.mu.Lock()
	as.managed = nil
	as.mu.Unlock()

	// Wait on the WaitGroup in a goroutine so the context deadline can
	// cut the wait short. If the deadline fires first, some actor
	// goroutines may still be running; that is reported, not hidden.
	done := make(chan struct{})
	go func() {
		as.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.InfoS(ctx, "Actor system stopped")

		return nil

	case <-ctx.Done():
		log.ErrorS(ctx, "Actor system stop incomplete, some actors "+
			"may have leaked", ctx.Err())

		return ctx.Err()
	}
}

// ServiceKey is a typed name under which actors register and are
// discovered. The type parameters pin the message and response types, so a
// lookup can never hand back a reference of the wrong shape.
type ServiceKey[M Message, R any] struct {
	name string
}

// NewServiceKey creates a service key with the given name.
func NewServiceKey[M Message, R any](name string) ServiceKey[M, R] {
	return ServiceKey[M, R]{name: name}
}

// Broadcast tells msg to every actor currently registered under this key
// and returns how many were reached. Fire-and-forget: delivery into each
// mailbox is attempted once, with no per-recipient acknowledgement. Timer
// group deliveries fan out through exactly this.
func (sk ServiceKey[M, R]) Broadcast(sys SystemContext, ctx context.Context,
	msg M,
) int {
	refs := FindInReceptionist(sys.Receptionist(), sk)

	for _, ref := range refs {
		ref.Tell(ctx, msg)
	}

	return len(refs)
}

// serviceTypeInfo captures a service's type signature for validation.
type serviceTypeInfo struct {
	msgTypeName  string
	respTypeName string
}

// Receptionist maps service names to registered actors. Registrations are
// stored as BaseActorRef; the typed accessors below re-establish the
// concrete types on the way out, guarded by the type registry.
type Receptionist struct {
	// entries holds registered references keyed by service name.
	entries map[string][]BaseActorRef

	// types records the message/response types first registered under
	// each name, to reject conflicting re-registrations.
	types map[string]serviceTypeInfo

	// mu protects both maps.
	mu sync.RWMutex
}

// newReceptionist creates an empty Receptionist.
func newReceptionist() *Receptionist {
	return &Receptionist{
		entries: make(map[string][]BaseActorRef),
		types:   make(map[string]serviceTypeInfo),
	}
}

// RegisterWithReceptionist registers ref under key. It is a package-level
// generic function because Go methods cannot introduce type parameters. A
// name already claimed with different message/response types is rejected
// with ErrServiceKeyTypeMismatch.
func RegisterWithReceptionist[M Message, R any](
	r *Receptionist, key ServiceKey[M, R], ref ActorRef[M, R],
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Type names via reflect on the pointer types, so no zero values of
	// M and R need to be materialized.
	want := serviceTypeInfo{
		msgTypeName:  reflect.TypeOf((*M)(nil)).Elem().String(),
		respTypeName: reflect.TypeOf((*R)(nil)).Elem().String(),
	}

	if have, exists := r.types[key.name]; exists {
		if have != want {
			return fmt.Errorf("%w: service %q is bound to "+
				"(%s, %s), cannot bind (%s, %s)",
				ErrServiceKeyTypeMismatch, key.name,
				have.msgTypeName, have.respTypeName,
				want.msgTypeName, want.respTypeName)
		}
	} else {
		r.types[key.name] = want
	}

	r.entries[key.name] = append(r.entries[key.name], ref)

	return nil
}

// FindInReceptionist returns every actor registered under key, re-typed to
// the key's concrete reference type. Registrations that fail the type
// assertion (possible only if the registry was bypassed) are skipped.
func FindInReceptionist[M Message, R any](
	r *Receptionist, key ServiceKey[M, R],
) []ActorRef[M, R] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs, exists := r.entries[key.name]
	if !exists {
		return nil
	}

	out := make([]ActorRef[M, R], 0, len(regs))
	for _, reg := range regs {
		if typed, ok := reg.(ActorRef[M, R]); ok {
			out = append(out, typed)
		}
	}

	return out
}
