package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Dispatcher is the thread-safe façade over a ScheduleCore. Every public
// method here just appends a command to a mutex-protected buffer and
// returns immediately; a single goroutine running RunDispatchLoop owns the
// ScheduleCore exclusively and is the only thing that ever calls its
// methods, so the core itself needs no internal locking. The wait on the
// next deadline uses a notify channel plus a clock timer, since sync.Cond
// has no deadline-aware wait.
type Dispatcher struct {
	clock Clock
	core  *ScheduleCore

	mu     sync.Mutex
	buffer []command
	done   bool

	notify chan struct{}
}

// NewDispatcher returns a Dispatcher driven by clock. Call RunDispatchLoop
// in its own goroutine to start processing commands.
func NewDispatcher(clock Clock) *Dispatcher {
	return &Dispatcher{
		clock:  clock,
		core:   NewScheduleCore(),
		notify: make(chan struct{}, 1),
	}
}

// enqueue appends cmd to the buffer and wakes the dispatch loop. It is a
// no-op once Shutdown has been called: the command is silently dropped
// rather than returning an error, since there is no longer a loop that
// could ever apply it.
func (d *Dispatcher) enqueue(cmd command) {
	d.mu.Lock()
	if d.done {
		d.mu.Unlock()
		log.DebugS(context.Background(), "Dropping command, dispatcher "+
			"is shutting down", "kind", cmd.kind)
		return
	}

	d.buffer = append(d.buffer, cmd)
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// SetOrdinaryTimeout schedules a named, per-actor timeout.
func (d *Dispatcher) SetOrdinaryTimeout(deadline time.Time, actorID RawID,
	receiver Receiver, typeTag string, ordinalID uint64) {

	d.enqueue(command{
		kind:      cmdSetOrdinaryTimeout,
		deadline:  deadline,
		actorID:   actorID,
		receiver:  receiver.Weak(),
		typeTag:   typeTag,
		ordinalID: ordinalID,
	})
}

// SetMultiTimeout schedules a one-shot, ordinal-discriminated timeout.
func (d *Dispatcher) SetMultiTimeout(deadline time.Time, actorID RawID,
	receiver Receiver, typeTag string, ordinalID uint64) {

	d.enqueue(command{
		kind:      cmdSetMultiTimeout,
		deadline:  deadline,
		actorID:   actorID,
		receiver:  receiver.Weak(),
		typeTag:   typeTag,
		ordinalID: ordinalID,
	})
}

// SetRequestTimeout schedules an error delivery for an unanswered request.
func (d *Dispatcher) SetRequestTimeout(deadline time.Time, actorID RawID,
	receiver Receiver, requestID uuid.UUID) {

	d.enqueue(command{
		kind:      cmdSetRequestTimeout,
		deadline:  deadline,
		actorID:   actorID,
		receiver:  receiver.Weak(),
		requestID: requestID,
	})
}

// ScheduleActorMessage schedules delivery of a pre-built message to a
// single actor.
func (d *Dispatcher) ScheduleActorMessage(deadline time.Time,
	receiver Receiver, msg any) {

	d.enqueue(command{
		kind:     cmdScheduleActorMessage,
		deadline: deadline,
		receiver: receiver.Weak(),
		msg:      msg,
	})
}

// ScheduleGroupMessage schedules delivery of a pre-built message to a
// group of actors, attributed to sender.
func (d *Dispatcher) ScheduleGroupMessage(deadline time.Time,
	group GroupReceiver, sender Receiver, msg any) {

	d.enqueue(command{
		kind:     cmdScheduleGroupMessage,
		deadline: deadline,
		group:    group,
		sender:   sender.Weak(),
		msg:      msg,
	})
}

// CancelOrdinaryTimeout requests removal of one (actorID, typeTag) entry.
// As with ScheduleCore.CancelOrdinaryTimeout, cancelling a timer that has
// already fired or was never set is a silent no-op.
func (d *Dispatcher) CancelOrdinaryTimeout(actorID RawID, typeTag string) {
	d.enqueue(command{
		kind:    cmdCancelOrdinaryTimeout,
		actorID: actorID,
		typeTag: typeTag,
	})
}

// CancelRequestTimeout requests removal of a pending request timeout.
func (d *Dispatcher) CancelRequestTimeout(actorID RawID, requestID uuid.UUID) {
	d.enqueue(command{
		kind:      cmdCancelRequestTimeout,
		actorID:   actorID,
		requestID: requestID,
	})
}

// CancelTimeouts requests removal of every ordinary, multi, and request
// timeout tracked for actorID. Callers must submit this before reusing a
// raw identity for a different actor; the single-goroutine,
// FIFO-per-producer ordering of the dispatch loop is what makes "cancel,
// then reuse" from the same caller reliable.
func (d *Dispatcher) CancelTimeouts(actorID RawID) {
	d.enqueue(command{kind: cmdCancelTimeouts, actorID: actorID})
}

// CancelAll requests removal of every pending entry.
func (d *Dispatcher) CancelAll() {
	d.enqueue(command{kind: cmdCancelAll})
}

// Shutdown stops the dispatch loop after it finishes applying any commands
// already buffered. The loop clears the schedule on its way out, so
// entries still pending at that point never fire.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	d.done = true
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// drain detaches the current command buffer and installs a fresh one. The
// lock is held only long enough to hand off the slice, not while applying
// the commands it holds.
func (d *Dispatcher) drain() []command {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.buffer) == 0 {
		return nil
	}

	cmds := d.buffer
	d.buffer = nil

	return cmds
}

func (d *Dispatcher) isDone() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.done
}

// apply installs a single drained command into the ScheduleCore. Setter
// commands promote their in-transit weak reference back to a strong one
// here; if the target actor has been collected in the meantime, the
// command is dropped silently. The installed schedule entry holds the
// strong reference until it fires or is cancelled.
func (d *Dispatcher) apply(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdSetOrdinaryTimeout:
		r, ok := cmd.receiver.Upgrade()
		if !ok {
			log.DebugS(ctx, "Dropping ordinary timeout, target gone",
				"actor_id", cmd.actorID, "type", cmd.typeTag)
			return
		}

		d.core.SetOrdinaryTimeout(
			cmd.deadline, cmd.actorID, r, cmd.typeTag, cmd.ordinalID,
		)

	case cmdSetMultiTimeout:
		r, ok := cmd.receiver.Upgrade()
		if !ok {
			log.DebugS(ctx, "Dropping multi-timeout, target gone",
				"actor_id", cmd.actorID, "type", cmd.typeTag)
			return
		}

		d.core.SetMultiTimeout(
			cmd.deadline, cmd.actorID, r, cmd.typeTag, cmd.ordinalID,
		)

	case cmdSetRequestTimeout:
		r, ok := cmd.receiver.Upgrade()
		if !ok {
			log.DebugS(ctx, "Dropping request timeout, target gone",
				"actor_id", cmd.actorID,
				"request_id", cmd.requestID)
			return
		}

		d.core.SetRequestTimeout(
			cmd.deadline, cmd.actorID, r, cmd.requestID,
		)

	case cmdScheduleActorMessage:
		r, ok := cmd.receiver.Upgrade()
		if !ok {
			log.DebugS(ctx, "Dropping delayed message, target gone",
				"actor_id", cmd.receiver.ID())
			return
		}

		d.core.ScheduleActorMessage(cmd.deadline, r, cmd.msg)

	case cmdScheduleGroupMessage:
		sender, ok := cmd.sender.Upgrade()
		if !ok {
			log.DebugS(ctx, "Dropping delayed group message, "+
				"sender gone", "group_id", cmd.group.ID())
			return
		}

		d.core.ScheduleGroupMessage(
			cmd.deadline, cmd.group, sender, cmd.msg,
		)

	case cmdCancelOrdinaryTimeout:
		_ = d.core.CancelOrdinaryTimeout(cmd.actorID, cmd.typeTag)

	case cmdCancelRequestTimeout:
		_ = d.core.CancelRequestTimeout(cmd.actorID, cmd.requestID)

	case cmdCancelTimeouts:
		d.core.CancelTimeouts(cmd.actorID)

	case cmdCancelAll:
		d.core.CancelAll()
	}
}

// RunDispatchLoop runs the dispatch loop until Shutdown is called or ctx is
// cancelled. It should be run in its own goroutine. Each iteration: drains
// and applies buffered commands, fires every entry whose deadline has
// elapsed, computes the next deadline, then waits for either a new command,
// that deadline, or cancellation. Draining strictly before ticking is what
// makes a cancel enqueued before time T win against a firing due at T.
func (d *Dispatcher) RunDispatchLoop(ctx context.Context) {
	for {
		for _, cmd := range d.drain() {
			d.apply(ctx, cmd)
		}

		if d.isDone() {
			d.core.CancelAll()
			return
		}

		d.core.Tick(ctx, d.clock.Now())

		var waitCh <-chan time.Time
		var pending clockwork.Timer

		if deadline, ok := d.core.NextDeadline(); ok {
			wait := deadline.Sub(d.clock.Now())
			if wait < 0 {
				wait = 0
			}

			pending = d.clock.NewTimer(wait)
			waitCh = pending.Chan()
		}

		select {
		case <-d.notify:
		case <-waitCh:
		case <-ctx.Done():
		}

		if pending != nil {
			pending.Stop()
		}

		if ctx.Err() != nil {
			d.core.CancelAll()
			return
		}
	}
}
