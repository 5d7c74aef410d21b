package timer

import "github.com/google/uuid"

// timerEntry is the sealed set of things the Schedule Core can hold at a
// deadline: an ordinary timeout, a multi-timeout, a request timeout, a
// delayed actor message, or a delayed group message. Installed entries hold
// strong receiver references; the weak form only exists while a setter
// command is in transit through the Dispatcher's buffer.
type timerEntry interface {
	timerEntryMarker()
}

// ordinaryTimeoutEntry fires a single, named, per-actor timeout. Multiple
// entries may share the same (actor, type) key; all of them stay live
// until each fires or is cancelled.
type ordinaryTimeoutEntry struct {
	actorID   RawID
	receiver  Receiver
	typeTag   string
	ordinalID uint64
}

func (ordinaryTimeoutEntry) timerEntryMarker() {}

// multiTimeoutEntry is like ordinaryTimeoutEntry but discriminated by an
// ordinal id rather than a type tag, and has no dedicated cancel operation
// (it is removed only by firing, or in bulk via CancelTimeouts or
// CancelAll).
type multiTimeoutEntry struct {
	actorID   RawID
	receiver  Receiver
	typeTag   string
	ordinalID uint64
}

func (multiTimeoutEntry) timerEntryMarker() {}

// requestTimeoutEntry fires an error value under the original request's
// response id when a pending ask is not answered in time.
type requestTimeoutEntry struct {
	actorID   RawID
	receiver  Receiver
	requestID uuid.UUID
}

func (requestTimeoutEntry) timerEntryMarker() {}

// delayedActorMessageEntry delivers a pre-built message to a single actor's
// mailbox once its deadline elapses. It carries no actor-bucket identity:
// it cannot be selectively cancelled, only fired or dropped by CancelAll.
type delayedActorMessageEntry struct {
	receiver Receiver
	msg      any
}

func (delayedActorMessageEntry) timerEntryMarker() {}

// delayedGroupMessageEntry broadcasts a pre-built message to a group once
// its deadline elapses, carrying the original sender along for attribution.
type delayedGroupMessageEntry struct {
	group  GroupReceiver
	sender Receiver
	msg    any
}

func (delayedGroupMessageEntry) timerEntryMarker() {}
