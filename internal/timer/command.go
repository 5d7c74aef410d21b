package timer

import (
	"time"

	"github.com/google/uuid"
)

// commandKind tags a command the Dispatcher buffers before it reaches the
// single goroutine that owns the ScheduleCore. Each public operation just
// appends one tagged value to the buffer under a short-held lock.
type commandKind uint8

const (
	cmdSetOrdinaryTimeout commandKind = iota
	cmdSetMultiTimeout
	cmdSetRequestTimeout
	cmdScheduleActorMessage
	cmdScheduleGroupMessage
	cmdCancelOrdinaryTimeout
	cmdCancelRequestTimeout
	cmdCancelTimeouts
	cmdCancelAll
)

// command is the tagged union the Dispatcher's public methods build and
// enqueue. Only the fields relevant to kind are populated; the rest are
// left zero.
type command struct {
	kind commandKind

	deadline  time.Time
	actorID   RawID
	receiver  WeakReceiver
	typeTag   string
	ordinalID uint64
	requestID uuid.UUID
	msg       any
	group     GroupReceiver
	sender    WeakReceiver
}
