package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// ChannelMailbox is the channel-backed Mailbox every actor in this runtime
// uses. Producers (including the timer dispatch goroutine delivering fired
// timeouts) send concurrently; the actor's own goroutine is the only
// receiver.
type ChannelMailbox[M Message, R any] struct {
	// queue buffers accepted envelopes.
	queue chan envelope[M, R]

	// shut is set once Close runs; read lock-free on the send path.
	shut atomic.Bool

	// sendMu orders sends against Close: senders hold it shared, Close
	// holds it exclusive, so the channel is never closed mid-send.
	sendMu sync.RWMutex

	// shutOnce makes Close idempotent.
	shutOnce sync.Once

	// ownerCtx is the owning actor's lifecycle context; its cancellation
	// invalidates the mailbox for senders.
	ownerCtx context.Context
}

// NewChannelMailbox creates a mailbox bound to actorCtx. A non-positive
// capacity is raised to 1 so the mailbox is always buffered.
func NewChannelMailbox[M Message, R any](
	actorCtx context.Context, capacity int,
) *ChannelMailbox[M, R] {
	if capacity <= 0 {
		capacity = 1
	}

	return &ChannelMailbox[M, R]{
		queue:    make(chan envelope[M, R], capacity),
		ownerCtx: actorCtx,
	}
}

// Send delivers an envelope, blocking until it is accepted, the caller's
// context is cancelled, or the actor shuts down. It reports whether the
// envelope was accepted.
func (mb *ChannelMailbox[M, R]) Send(ctx context.Context,
	env envelope[M, R],
) bool {
	// Cheap rejection before touching the lock; the select below still
	// covers cancellation that lands after these checks.
	if ctx.Err() != nil {
		return false
	}
	if mb.ownerCtx.Err() != nil {
		return false
	}

	// The shared lock spans the whole send. Close takes the exclusive
	// lock before closing the channel, so a send in flight can never
	// panic on a closed channel.
	mb.sendMu.RLock()
	defer mb.sendMu.RUnlock()

	if mb.shut.Load() {
		return false
	}

	select {
	case mb.queue <- env:
		log.TraceS(ctx, "Mailbox send succeeded",
			"msg_type", env.msg.MessageType(),
			"queue_len", len(mb.queue))

		return true

	case <-ctx.Done():
		log.TraceS(ctx, "Mailbox send failed, caller context cancelled",
			"msg_type", env.msg.MessageType())

		return false

	case <-mb.ownerCtx.Done():
		log.TraceS(ctx, "Mailbox send failed, actor context cancelled",
			"msg_type", env.msg.MessageType())

		return false
	}
}

// Receive returns an iterator over incoming envelopes. It stops when the
// provided context is cancelled or the mailbox is closed and empty.
//
// The context is re-checked before every receive attempt: a ready channel
// must not win the select against an already-cancelled context, or
// shutdown would be nondeterministic.
func (mb *ChannelMailbox[M, R]) Receive(
	ctx context.Context,
) iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case env, ok := <-mb.queue:
				if !ok {
					return
				}

				if !yield(env) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// Close stops further sends. Idempotent; the exclusive lock waits out any
// send in flight before the channel is closed.
func (mb *ChannelMailbox[M, R]) Close() {
	mb.shutOnce.Do(func() {
		mb.sendMu.Lock()
		defer mb.sendMu.Unlock()

		remainingMsgs := len(mb.queue)
		log.DebugS(mb.ownerCtx, "Mailbox closing",
			"remaining_messages", remainingMsgs)

		mb.shut.Store(true)
		close(mb.queue)
	})
}

// Drain returns an iterator over the envelopes left after Close, without
// blocking. Called on an open mailbox it yields nothing.
func (mb *ChannelMailbox[M, R]) Drain() iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		if !mb.shut.Load() {
			return
		}

		for {
			select {
			case env, ok := <-mb.queue:
				if !ok {
					return
				}

				if !yield(env) {
					return
				}

			default:
				return
			}
		}
	}
}
