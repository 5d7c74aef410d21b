package timer

import (
	"github.com/google/uuid"
	"github.com/novaquark/actor-framework/internal/baselib/actor"
)

// OrdinaryTimeoutMsg is a ready-made actor.Message for an ordinary
// timeout. Consumers may Tell this directly from a makeOrdinaryTimeout
// closure passed to NewActorReceiver, or define their own message type and
// translate from (Type, OrdinalID) instead.
type OrdinaryTimeoutMsg struct {
	actor.BaseMessage

	Type      string
	OrdinalID uint64
}

// MessageType implements actor.Message.
func (OrdinaryTimeoutMsg) MessageType() string { return "timer.ordinary_timeout" }

// MultiTimeoutMsg is the multi-timeout counterpart of
// OrdinaryTimeoutMsg.
type MultiTimeoutMsg struct {
	actor.BaseMessage

	Type      string
	OrdinalID uint64
}

// MessageType implements actor.Message.
func (MultiTimeoutMsg) MessageType() string { return "timer.multi_timeout" }

// RequestTimeoutErr is the error delivered under a pending request's
// response id when it is not answered before its deadline. It satisfies
// the standard error interface so it can be unpacked directly from an
// fn.Result[R] the way other actor-reported failures are in this codebase.
type RequestTimeoutErr struct {
	RequestID uuid.UUID
}

// Error implements error.
func (e RequestTimeoutErr) Error() string {
	return "request timed out: " + e.RequestID.String()
}
