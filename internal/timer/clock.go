package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MeasurementTag identifies what a Duration returned by Clock.Difference
// represents. Real clocks ignore it; simulated clocks key scripted
// durations by it so a test can make one kind of elapsed-time measurement
// behave differently from another without touching wall-clock time at all.
type MeasurementTag string

// Clock is the Time Source abstraction. It is deliberately narrow: the
// Schedule Core and Dispatcher only ever need "what time is it" and "how
// much time passed between these two instants, for this kind of
// measurement". Everything else (timers, tickers) is delegated to the
// embedded clockwork.Clock.
type Clock interface {
	clockwork.Clock

	// Difference returns the elapsed duration between t0 and t1 for the
	// given measurement tag. A real clock always returns t1.Sub(t0); a
	// simulated clock may return an arbitrary scripted value instead.
	Difference(tag MeasurementTag, t0, t1 time.Time) time.Duration
}

// realClock is the production Clock: wall-clock time throughout, with
// Difference always computing the real elapsed duration.
type realClock struct {
	clockwork.Clock
}

// NewRealClock returns a Clock backed by the real wall clock.
func NewRealClock() Clock {
	return &realClock{Clock: clockwork.NewRealClock()}
}

func (realClock) Difference(_ MeasurementTag, t0, t1 time.Time) time.Duration {
	return t1.Sub(t0)
}

// SimClock is a Clock for deterministic tests. Its notion of "now" is
// driven entirely by Advance; its Difference can be scripted per tag so a
// test can assert on measurement semantics without racing real time.
type SimClock struct {
	clockwork.FakeClock

	mu      sync.Mutex
	scripts map[MeasurementTag]time.Duration
}

// NewSimClock returns a SimClock starting at the given instant.
func NewSimClock(start time.Time) *SimClock {
	return &SimClock{
		FakeClock: clockwork.NewFakeClockAt(start),
		scripts:   make(map[MeasurementTag]time.Duration),
	}
}

// ScriptDifference configures Difference to return dur whenever it is
// called with the given tag, regardless of t0/t1. Clearing the script (by
// never calling this for a tag) falls back to the real elapsed duration.
func (c *SimClock) ScriptDifference(tag MeasurementTag, dur time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scripts[tag] = dur
}

// Difference returns the scripted duration for tag if one was configured
// via ScriptDifference, otherwise the real elapsed time between t0 and t1.
func (c *SimClock) Difference(tag MeasurementTag, t0, t1 time.Time) time.Duration {
	c.mu.Lock()
	dur, ok := c.scripts[tag]
	c.mu.Unlock()

	if ok {
		return dur
	}

	return t1.Sub(t0)
}
