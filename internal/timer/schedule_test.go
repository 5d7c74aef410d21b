package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// recordedDelivery is one delivery observed by a recordingReceiver.
type recordedDelivery struct {
	kind      string
	typeTag   string
	ordinalID uint64
	requestID uuid.UUID
	msg       any
}

// recordingReceiver is a Receiver that records everything delivered to it.
// The mutex matters for the dispatcher tests, where deliveries happen on the
// dispatch goroutine while the test goroutine polls.
type recordingReceiver struct {
	id RawID

	mu  sync.Mutex
	got []recordedDelivery
}

func newRecordingReceiver(id RawID) *recordingReceiver {
	return &recordingReceiver{id: id}
}

func (r *recordingReceiver) ID() RawID {
	return r.id
}

func (r *recordingReceiver) Weak() WeakReceiver {
	return WeakRef(r)
}

func (r *recordingReceiver) record(d recordedDelivery) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.got = append(r.got, d)
}

func (r *recordingReceiver) DeliverOrdinaryTimeout(_ context.Context,
	typeTag string, ordinalID uint64) {

	r.record(recordedDelivery{
		kind: "ordinary", typeTag: typeTag, ordinalID: ordinalID,
	})
}

func (r *recordingReceiver) DeliverMultiTimeout(_ context.Context,
	typeTag string, ordinalID uint64) {

	r.record(recordedDelivery{
		kind: "multi", typeTag: typeTag, ordinalID: ordinalID,
	})
}

func (r *recordingReceiver) DeliverRequestTimeout(_ context.Context,
	requestID uuid.UUID) {

	r.record(recordedDelivery{kind: "request", requestID: requestID})
}

func (r *recordingReceiver) DeliverMessage(_ context.Context, msg any) {
	r.record(recordedDelivery{kind: "message", msg: msg})
}

func (r *recordingReceiver) deliveries() []recordedDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]recordedDelivery, len(r.got))
	copy(out, r.got)

	return out
}

func (r *recordingReceiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.got)
}

// goneReceiver behaves like a receiver whose actor has already been
// collected: its weak form never upgrades.
type goneReceiver struct {
	recordingReceiver
}

func newGoneReceiver(id RawID) *goneReceiver {
	return &goneReceiver{recordingReceiver{id: id}}
}

func (g *goneReceiver) Weak() WeakReceiver {
	return WeakReceiver{id: g.id}
}

// groupDelivery is one broadcast observed by a recordingGroup.
type groupDelivery struct {
	senderID RawID
	msg      any
}

// recordingGroup is a GroupReceiver that records broadcasts.
type recordingGroup struct {
	id RawID

	mu  sync.Mutex
	got []groupDelivery
}

func newRecordingGroup(id RawID) *recordingGroup {
	return &recordingGroup{id: id}
}

func (g *recordingGroup) ID() RawID {
	return g.id
}

func (g *recordingGroup) DeliverGroupMessage(_ context.Context,
	sender Receiver, msg any) {

	g.mu.Lock()
	defer g.mu.Unlock()

	g.got = append(g.got, groupDelivery{senderID: sender.ID(), msg: msg})
}

func (g *recordingGroup) deliveries() []groupDelivery {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]groupDelivery, len(g.got))
	copy(out, g.got)

	return out
}

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(offset time.Duration) time.Time {
	return testBase.Add(offset)
}

// TestOrdinaryTimeoutFiresAtDeadline schedules a single ordinary timeout
// and verifies it fires exactly at its deadline, not before.
func TestOrdinaryTimeoutFiresAtDeadline(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	ctx := context.Background()
	rec := newRecordingReceiver("actor-a")

	core.SetOrdinaryTimeout(
		at(100*time.Millisecond), rec.ID(), rec, "tick", 1,
	)

	require.Equal(t, 0, core.Tick(ctx, at(50*time.Millisecond)))

	deadline, ok := core.NextDeadline()
	require.True(t, ok)
	require.Equal(t, at(100*time.Millisecond), deadline)

	require.Equal(t, 1, core.Tick(ctx, at(100*time.Millisecond)))
	require.Equal(t, []recordedDelivery{{
		kind: "ordinary", typeTag: "tick", ordinalID: 1,
	}}, rec.deliveries())

	_, ok = core.NextDeadline()
	require.False(t, ok)
}

// TestMultiTimeoutsCoexist schedules three multi-timeouts of the same type
// for one actor and verifies exactly the due ones fire (in any order) and
// the remaining one is the next deadline.
func TestMultiTimeoutsCoexist(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	ctx := context.Background()
	rec := newRecordingReceiver("actor-a")

	core.SetMultiTimeout(at(10*time.Millisecond), rec.ID(), rec, "poll", 1)
	core.SetMultiTimeout(at(20*time.Millisecond), rec.ID(), rec, "poll", 2)
	core.SetMultiTimeout(at(30*time.Millisecond), rec.ID(), rec, "poll", 3)

	require.Equal(t, 2, core.Tick(ctx, at(25*time.Millisecond)))

	fired := make(map[uint64]bool)
	for _, d := range rec.deliveries() {
		require.Equal(t, "multi", d.kind)
		require.Equal(t, "poll", d.typeTag)
		fired[d.ordinalID] = true
	}
	require.Equal(t, map[uint64]bool{1: true, 2: true}, fired)

	deadline, ok := core.NextDeadline()
	require.True(t, ok)
	require.Equal(t, at(30*time.Millisecond), deadline)
}

// TestCancelTimeoutsRemovesActorBucket verifies that a bulk cancel removes
// every indexed entry for the actor and the bucket itself.
func TestCancelTimeoutsRemovesActorBucket(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	ctx := context.Background()
	rec := newRecordingReceiver("actor-a")
	other := newRecordingReceiver("actor-b")

	core.SetOrdinaryTimeout(at(10*time.Millisecond), rec.ID(), rec, "tick", 1)
	core.SetMultiTimeout(at(20*time.Millisecond), rec.ID(), rec, "poll", 2)
	core.SetRequestTimeout(at(30*time.Millisecond), rec.ID(), rec, uuid.New())
	core.SetOrdinaryTimeout(
		at(40*time.Millisecond), other.ID(), other, "tick", 3,
	)

	require.Equal(t, 3, core.CancelTimeouts(rec.ID()))
	require.NotContains(t, core.buckets, rec.ID())
	require.Contains(t, core.buckets, other.ID())

	require.Equal(t, 1, core.Tick(ctx, at(time.Hour)))
	require.Empty(t, rec.deliveries())
	require.Len(t, other.deliveries(), 1)
}

// TestCancelTimeoutsUnknownActor verifies that bulk-cancelling an actor with
// no tracked entries is a no-op.
func TestCancelTimeoutsUnknownActor(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	require.Equal(t, 0, core.CancelTimeouts("nobody"))
}

// TestDelayedGroupMessageDelivery schedules a group broadcast and verifies
// the group sees the original sender and payload exactly once.
func TestDelayedGroupMessageDelivery(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	ctx := context.Background()
	sender := newRecordingReceiver("sender-s")
	group := newRecordingGroup("group-g")

	core.ScheduleGroupMessage(
		at(10*time.Millisecond), group, sender, "announcement",
	)

	require.Equal(t, 1, core.Tick(ctx, at(10*time.Millisecond)))
	require.Equal(t, []groupDelivery{{
		senderID: "sender-s", msg: "announcement",
	}}, group.deliveries())
}

// TestDelayedActorMessageDelivery schedules a pre-built message and verifies
// it reaches the receiver untouched.
func TestDelayedActorMessageDelivery(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	ctx := context.Background()
	rec := newRecordingReceiver("actor-a")

	core.ScheduleActorMessage(at(5*time.Millisecond), rec, "payload")

	require.Equal(t, 1, core.Tick(ctx, at(5*time.Millisecond)))
	require.Equal(t, []recordedDelivery{{
		kind: "message", msg: "payload",
	}}, rec.deliveries())
}

// TestCancelOrdinaryTimeoutRemovesOne verifies the accumulate policy: two
// timeouts under the same key coexist, and a selective cancel removes
// exactly one of them.
func TestCancelOrdinaryTimeoutRemovesOne(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	ctx := context.Background()
	rec := newRecordingReceiver("actor-a")

	core.SetOrdinaryTimeout(at(10*time.Millisecond), rec.ID(), rec, "tick", 1)
	core.SetOrdinaryTimeout(at(20*time.Millisecond), rec.ID(), rec, "tick", 2)

	require.NoError(t, core.CancelOrdinaryTimeout(rec.ID(), "tick"))

	require.Equal(t, 1, core.Tick(ctx, at(time.Hour)))
	require.Len(t, rec.deliveries(), 1)
}

// TestCancelMissesAreSilent verifies that cancels with no matching entry
// leave the schedule untouched and only report the miss internally.
func TestCancelMissesAreSilent(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	rec := newRecordingReceiver("actor-a")

	core.SetOrdinaryTimeout(at(10*time.Millisecond), rec.ID(), rec, "tick", 1)

	require.ErrorIs(t,
		core.CancelOrdinaryTimeout(rec.ID(), "other"), errNoSuchTimer,
	)
	require.ErrorIs(t,
		core.CancelOrdinaryTimeout("actor-b", "tick"), errNoSuchTimer,
	)
	require.ErrorIs(t,
		core.CancelRequestTimeout(rec.ID(), uuid.New()), errNoSuchTimer,
	)

	require.Len(t, core.heap, 1)
	require.Contains(t, core.buckets, rec.ID())
}

// TestSetThenCancelNeverFires verifies the basic round trip: a timer that is
// cancelled before its deadline fires nothing, and the actor's bucket is
// gone afterwards.
func TestSetThenCancelNeverFires(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	ctx := context.Background()
	rec := newRecordingReceiver("actor-a")

	core.SetOrdinaryTimeout(at(10*time.Millisecond), rec.ID(), rec, "tick", 1)
	require.NoError(t, core.CancelOrdinaryTimeout(rec.ID(), "tick"))

	require.Equal(t, 0, core.Tick(ctx, at(time.Hour)))
	require.Empty(t, rec.deliveries())
	require.NotContains(t, core.buckets, rec.ID())
}

// TestRequestTimeoutRoundTrip covers both sides of the request-timeout
// variant: a cancelled one never fires, an uncancelled one delivers the
// original request id.
func TestRequestTimeoutRoundTrip(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	ctx := context.Background()
	rec := newRecordingReceiver("actor-a")
	cancelled := uuid.New()
	kept := uuid.New()

	core.SetRequestTimeout(at(10*time.Millisecond), rec.ID(), rec, cancelled)
	core.SetRequestTimeout(at(20*time.Millisecond), rec.ID(), rec, kept)

	require.NoError(t, core.CancelRequestTimeout(rec.ID(), cancelled))

	require.Equal(t, 1, core.Tick(ctx, at(time.Hour)))
	require.Equal(t, []recordedDelivery{{
		kind: "request", requestID: kept,
	}}, rec.deliveries())
}

// TestCancelAllIsIdempotent verifies that clearing the schedule twice is the
// same as clearing it once.
func TestCancelAllIsIdempotent(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	ctx := context.Background()
	rec := newRecordingReceiver("actor-a")
	group := newRecordingGroup("group-g")

	core.SetOrdinaryTimeout(at(10*time.Millisecond), rec.ID(), rec, "tick", 1)
	core.ScheduleActorMessage(at(20*time.Millisecond), rec, "payload")
	core.ScheduleGroupMessage(at(30*time.Millisecond), group, rec, "m")

	require.Equal(t, 3, core.CancelAll())
	require.Equal(t, 0, core.CancelAll())

	require.Equal(t, 0, core.Tick(ctx, at(time.Hour)))
	require.Empty(t, core.buckets)
	require.Empty(t, rec.deliveries())
	require.Empty(t, group.deliveries())
}

// TestNextDeadlineTracksEarliestEntry verifies the peek operation across
// inserts and fires.
func TestNextDeadlineTracksEarliestEntry(t *testing.T) {
	t.Parallel()

	core := NewScheduleCore()
	ctx := context.Background()
	rec := newRecordingReceiver("actor-a")

	_, ok := core.NextDeadline()
	require.False(t, ok)

	core.SetOrdinaryTimeout(at(50*time.Millisecond), rec.ID(), rec, "b", 1)
	core.SetOrdinaryTimeout(at(10*time.Millisecond), rec.ID(), rec, "a", 2)

	deadline, ok := core.NextDeadline()
	require.True(t, ok)
	require.Equal(t, at(10*time.Millisecond), deadline)

	require.Equal(t, 1, core.Tick(ctx, at(10*time.Millisecond)))

	deadline, ok = core.NextDeadline()
	require.True(t, ok)
	require.Equal(t, at(50*time.Millisecond), deadline)
}
