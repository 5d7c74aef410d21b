package build

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// HandlerSet fans every log record out to several btclog handlers at once.
// The timer daemon uses one to drive its console stream and its rotating
// log file from a single subsystem logger.
type HandlerSet struct {
	level    btclog.Level
	handlers []btclogv2.Handler
}

// NewHandlerSet combines the given handlers into one, starting at the Info
// level.
func NewHandlerSet(handlers ...btclogv2.Handler) *HandlerSet {
	h := &HandlerSet{
		handlers: handlers,
		level:    btclog.LevelInfo,
	}
	h.SetLevel(h.level)

	return h
}

// Enabled reports whether every member handles records at the given level.
//
// Part of the slog.Handler interface.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sub := range h.handlers {
		if !sub.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle dispatches the record to every member, stopping at the first
// failure.
//
// Part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, sub := range h.handlers {
		if err := sub.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a fan-out over every member extended with attrs. The
// result is a plain slog fan-out, since WithAttrs narrows each member to a
// slog.Handler.
//
// Part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &slogFanout{handlers: make([]slog.Handler, len(h.handlers))}
	for i, sub := range h.handlers {
		out.handlers[i] = sub.WithAttrs(attrs)
	}

	return out
}

// WithGroup returns a fan-out over every member with the group appended.
//
// Part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	out := &slogFanout{handlers: make([]slog.Handler, len(h.handlers))}
	for i, sub := range h.handlers {
		out.handlers[i] = sub.WithGroup(name)
	}

	return out
}

// SubSystem returns a fan-out over every member tagged with the given
// subsystem.
//
// Part of the btclog.Handler interface.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	out := &HandlerSet{handlers: make([]btclogv2.Handler, len(h.handlers))}
	for i, sub := range h.handlers {
		out.handlers[i] = sub.SubSystem(tag)
	}

	return out
}

// SetLevel changes the logging level on every member.
//
// Part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, sub := range h.handlers {
		sub.SetLevel(level)
	}
	h.level = level
}

// Level returns the current logging level.
//
// Part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclog.Level {
	return h.level
}

// WithPrefix returns a fan-out over every member with the prefix applied
// to each message.
//
// Part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	out := &HandlerSet{handlers: make([]btclogv2.Handler, len(h.handlers))}
	for i, sub := range h.handlers {
		out.handlers[i] = sub.WithPrefix(prefix)
	}

	return out
}

var _ btclogv2.Handler = (*HandlerSet)(nil)

// slogFanout is the slog-only sibling of HandlerSet, produced by WithAttrs
// and WithGroup once the members have been narrowed to slog.Handler.
type slogFanout struct {
	handlers []slog.Handler
}

// Enabled reports whether every member handles records at the given level.
func (s *slogFanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sub := range s.handlers {
		if !sub.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle dispatches the record to every member, stopping at the first
// failure.
func (s *slogFanout) Handle(ctx context.Context, record slog.Record) error {
	for _, sub := range s.handlers {
		if err := sub.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a fan-out over every member extended with attrs.
func (s *slogFanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &slogFanout{handlers: make([]slog.Handler, len(s.handlers))}
	for i, sub := range s.handlers {
		out.handlers[i] = sub.WithAttrs(attrs)
	}

	return out
}

// WithGroup returns a fan-out over every member with the group appended.
func (s *slogFanout) WithGroup(name string) slog.Handler {
	out := &slogFanout{handlers: make([]slog.Handler, len(s.handlers))}
	for i, sub := range s.handlers {
		out.handlers[i] = sub.WithGroup(name)
	}

	return out
}

var _ slog.Handler = (*slogFanout)(nil)
