package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// mergeContexts derives a context that cancels when either parent cancels,
// keeping the earlier of the two deadlines. Ask processing runs under such
// a merge so a behavior notices both system shutdown and the caller giving
// up.
//
// A short-lived goroutine watches both parents and cancels the merged
// context as soon as either fires; it exits on any cancellation, so no
// goroutine outlives the message it was spawned for. Callers must invoke
// the returned cancel function once processing finishes.
func mergeContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	// Base the merged context on whichever parent carries the earlier
	// deadline, defaulting to a.
	base := a
	if bDeadline, ok := b.Deadline(); ok {
		aDeadline, ok := a.Deadline()
		if !ok || bDeadline.Before(aDeadline) {
			base = b
		}
	}

	merged, cancel := context.WithCancel(base)

	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		case <-merged.Done():
		}
	}()

	return merged, cancel
}

// ActorConfig holds the parameters for creating an Actor.
type ActorConfig[M Message, R any] struct {
	// ID names the actor; it doubles as the raw identity timer indexes
	// key off.
	ID string

	// Behavior is the message-handling strategy the actor runs.
	Behavior ActorBehavior[M, R]

	// DLO receives messages that could not be delivered (actor stopped,
	// mailbox closed). Nil disables dead-letter routing for this actor.
	DLO ActorRef[Message, any]

	// MailboxSize is the buffer capacity of the actor's mailbox.
	MailboxSize int

	// Wg, when non-nil, tracks the actor's goroutine: Add(1) on Start,
	// Done() when the process loop exits. The system blocks on it for
	// deterministic shutdown.
	Wg *sync.WaitGroup
}

// envelope pairs a message with the promise awaiting its reply (nil for
// tells) and the sender's context, so ask processing can respect the
// sender's deadline.
type envelope[M Message, R any] struct {
	msg       M
	reply     Promise[R]
	senderCtx context.Context
}

// Actor runs one behavior over one mailbox in one goroutine. Messages are
// processed strictly sequentially, which is what lets behaviors hold state
// without locks.
type Actor[M Message, R any] struct {
	// id names the actor.
	id string

	// behavior is the message-handling strategy.
	behavior ActorBehavior[M, R]

	// mailbox is the incoming message queue.
	mailbox Mailbox[M, R]

	// ctx governs the actor's lifecycle; cancel ends it.
	ctx    context.Context
	cancel context.CancelFunc

	// dlo receives undeliverable messages, if configured.
	dlo ActorRef[Message, any]

	// wg, when non-nil, is decremented when the process loop exits.
	wg *sync.WaitGroup

	// startOnce and stopOnce make Start and Stop idempotent.
	startOnce sync.Once
	stopOnce  sync.Once

	// ref is the cached reference handed to clients.
	ref ActorRef[M, R]
}

// NewActor creates an actor without starting it; call Start to begin
// processing.
func NewActor[M Message, R any](cfg ActorConfig[M, R]) *Actor[M, R] {
	ctx, cancel := context.WithCancel(context.Background())

	capacity := cfg.MailboxSize
	if capacity <= 0 {
		capacity = 1
	}

	actor := &Actor[M, R]{
		id:       cfg.ID,
		behavior: cfg.Behavior,
		mailbox:  NewChannelMailbox[M, R](ctx, capacity),
		ctx:      ctx,
		cancel:   cancel,
		dlo:      cfg.DLO,
		wg:       cfg.Wg,
	}

	actor.ref = &liveActorRef[M, R]{owner: actor}

	return actor
}

// Start launches the actor's processing goroutine. Repeated calls are
// no-ops. The WaitGroup (when configured) is incremented here so the
// system can block until every started actor has fully exited.
func (a *Actor[M, R]) Start() {
	a.startOnce.Do(func() {
		log.DebugS(a.ctx, "Actor starting", "actor_id", a.id)

		if a.wg != nil {
			a.wg.Add(1)
		}
		go a.process()
	})
}

// process is the actor's event loop: receive, run the behavior, complete
// the promise if the message was an ask. On shutdown it closes the mailbox
// and drains leftovers to the DLO. The deferred Done() runs even if the
// behavior panics, so system shutdown cannot hang on this actor.
func (a *Actor[M, R]) process() {
	if a.wg != nil {
		defer a.wg.Done()
	}

	for env := range a.mailbox.Receive(a.ctx) {
		// Asks run under a merge of the actor's and the caller's
		// contexts. Tells run under the actor's context alone: once a
		// tell is enqueued, the sender cancelling must not retract it.
		var runCtx context.Context
		var cancel context.CancelFunc
		if env.reply != nil {
			runCtx, cancel = mergeContexts(a.ctx, env.senderCtx)
		} else {
			runCtx = a.ctx
			cancel = func() {}
		}

		log.TraceS(runCtx, "Processing message",
			"actor_id", a.id,
			"msg_type", env.msg.MessageType(),
			"is_ask", env.reply != nil)

		result := a.behavior.Receive(runCtx, env.msg)

		cancel()

		if env.reply != nil {
			env.reply.Complete(result)
		}
	}

	// Lifecycle context cancelled: refuse new sends, then hand whatever
	// is still queued to the dead letter office.
	a.mailbox.Close()

	dropped := 0
	for env := range a.mailbox.Drain() {
		dropped++

		log.TraceS(a.ctx, "Draining undelivered message",
			"actor_id", a.id,
			"msg_type", env.msg.MessageType(),
			"has_dlo", a.dlo != nil)

		if a.dlo != nil {
			a.dlo.Tell(context.Background(), env.msg)
		}

		if env.reply != nil {
			env.reply.Complete(fn.Err[R](ErrActorTerminated))
		}
	}

	log.DebugS(a.ctx, "Actor terminated",
		"actor_id", a.id,
		"drained_messages", dropped)
}

// Stop cancels the actor's lifecycle context; the processing goroutine
// exits after it notices, closes the mailbox, and drains to the DLO.
//
// No message is lost between Receive exiting and Close: Send checks the
// actor context first, so anything that got past that check either lands
// before Close or observes the cancellation and reports failure.
func (a *Actor[M, R]) Stop() {
	a.stopOnce.Do(func() {
		a.cancel()
	})
}

// liveActorRef is the concrete ActorRef, pointing back at its Actor.
type liveActorRef[M Message, R any] struct {
	owner *Actor[M, R]
}

// Tell sends a message without waiting for a response. Failed sends are
// routed to the DLO when the failure is the actor's (terminated, mailbox
// closed); sends aborted by the caller's own context are dropped.
func (ref *liveActorRef[M, R]) Tell(ctx context.Context, msg M) {
	log.TraceS(ctx, "Tell",
		"actor_id", ref.owner.id, "msg_type", msg.MessageType())

	env := envelope[M, R]{
		msg:       msg,
		senderCtx: ctx,
	}
	if !ref.owner.mailbox.Send(ctx, env) {
		if ctx.Err() == nil || ref.owner.ctx.Err() != nil {
			log.DebugS(ctx, "Tell undeliverable, routing to DLO",
				"actor_id", ref.owner.id,
				"msg_type", msg.MessageType())

			ref.trySendToDLO(msg)
		} else {
			log.TraceS(ctx, "Tell abandoned by caller",
				"actor_id", ref.owner.id,
				"msg_type", msg.MessageType())
		}
	}
}

// Ask sends a message and returns a Future for the response. A send that
// cannot reach the mailbox completes the future immediately with the most
// specific error available (actor termination wins over caller
// cancellation).
func (ref *liveActorRef[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	log.TraceS(ctx, "Ask",
		"actor_id", ref.owner.id, "msg_type", msg.MessageType())

	reply := NewPromise[R]()

	// Fast-path rejection when the actor is already gone.
	if ref.owner.ctx.Err() != nil {
		log.DebugS(ctx, "Ask rejected, actor already terminated",
			"actor_id", ref.owner.id,
			"msg_type", msg.MessageType())

		reply.Complete(fn.Err[R](ErrActorTerminated))
		return reply.Future()
	}

	env := envelope[M, R]{
		msg:       msg,
		reply:     reply,
		senderCtx: ctx,
	}
	if !ref.owner.mailbox.Send(ctx, env) {
		if ref.owner.ctx.Err() != nil {
			reply.Complete(fn.Err[R](ErrActorTerminated))
		} else {
			err := ctx.Err()
			if err == nil {
				// Neither side cancelled: the mailbox was
				// closed out from under us.
				err = ErrActorTerminated
			}

			reply.Complete(fn.Err[R](err))
		}
	}

	return reply.Future()
}

// trySendToDLO forwards msg to the dead letter office, if one is
// configured. Background context: the original send's context may already
// be done, and DLO delivery should not inherit its cancellation.
func (ref *liveActorRef[M, R]) trySendToDLO(msg M) {
	if ref.owner.dlo != nil {
		ref.owner.dlo.Tell(context.Background(), msg)
	}
}

// ID returns the actor's raw identity.
func (ref *liveActorRef[M, R]) ID() string {
	return ref.owner.id
}

// Ref returns the actor's reference for clients to send through. The
// reference satisfies TellOnlyRef as well, which is the narrowed form
// timer receivers are built over.
func (a *Actor[M, R]) Ref() ActorRef[M, R] {
	return a.ref
}
