package timer

import (
	"container/heap"
	"context"
	"time"

	"github.com/google/uuid"
)

// discKind distinguishes the three actor-indexed timer-entry kinds that
// share the bucket/discriminator machinery below. Multi-timeouts are
// indexed the same way as ordinary and request timeouts, even though no
// selective cancel exists for them: CancelTimeouts still has to find and
// remove them in one bucket sweep.
type discKind uint8

const (
	discOrdinary discKind = iota
	discMulti
	discRequest
)

// discKey is the per-actor bucket lookup key: the discriminator a timer
// entry is indexed under. Different kinds never collide because kind is
// part of the key even when the underlying value spaces overlap.
type discKey struct {
	kind discKind
	str  string
	num  uint64
	id   uuid.UUID
}

// scheduleItem is one slot in the deadline-ordered heap. index is
// maintained by scheduleHeap.Swap so a cancel can call heap.Remove in
// O(log n) without a linear scan.
type scheduleItem struct {
	deadline time.Time
	entry    timerEntry
	index    int

	indexed bool
	actorID RawID
	key     discKey
}

// scheduleHeap is a container/heap.Interface over *scheduleItem ordered by
// deadline: a priority queue with O(log n) insert, peek-min, and indexed
// removal. Entries sharing a deadline have no defined relative order.
type scheduleHeap []*scheduleItem

func (h scheduleHeap) Len() int { return len(h) }

func (h scheduleHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}

func (h scheduleHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *scheduleHeap) Push(x any) {
	item := x.(*scheduleItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *scheduleHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]

	return item
}

// actorBucket is the per-actor index: every indexed schedule entry owned
// by one actor, keyed by discriminator.
type actorBucket struct {
	byDiscriminator map[discKey][]*scheduleItem
}

func newActorBucket() *actorBucket {
	return &actorBucket{byDiscriminator: make(map[discKey][]*scheduleItem)}
}

func (b *actorBucket) empty() bool {
	return len(b.byDiscriminator) == 0
}

func (b *actorBucket) add(item *scheduleItem) {
	b.byDiscriminator[item.key] = append(b.byDiscriminator[item.key], item)
}

// remove drops item from its discriminator slot. It relies on the caller
// already knowing item.key (every indexed item carries it), so this never
// needs a linear scan across keys.
func (b *actorBucket) remove(item *scheduleItem) {
	slot := b.byDiscriminator[item.key]
	for i, candidate := range slot {
		if candidate == item {
			slot[i] = slot[len(slot)-1]
			slot = slot[:len(slot)-1]
			break
		}
	}

	if len(slot) == 0 {
		delete(b.byDiscriminator, item.key)
	} else {
		b.byDiscriminator[item.key] = slot
	}
}

// ScheduleCore is the deadline-ordered store of pending timer entries plus
// the per-actor index over them. It is not safe for concurrent use on its
// own; Dispatcher is what serializes access to it from a single
// goroutine.
type ScheduleCore struct {
	heap    scheduleHeap
	buckets map[RawID]*actorBucket
}

// NewScheduleCore returns an empty ScheduleCore.
func NewScheduleCore() *ScheduleCore {
	return &ScheduleCore{
		buckets: make(map[RawID]*actorBucket),
	}
}

func (s *ScheduleCore) bucketFor(actorID RawID) *actorBucket {
	b, ok := s.buckets[actorID]
	if !ok {
		b = newActorBucket()
		s.buckets[actorID] = b
	}

	return b
}

func (s *ScheduleCore) index(item *scheduleItem) {
	item.indexed = true
	s.bucketFor(item.actorID).add(item)
}

func (s *ScheduleCore) unindex(item *scheduleItem) {
	if !item.indexed {
		return
	}

	b, ok := s.buckets[item.actorID]
	if !ok {
		return
	}

	b.remove(item)
	if b.empty() {
		delete(s.buckets, item.actorID)
	}
}

// SetOrdinaryTimeout schedules a named, per-actor timeout. Multiple
// entries may accumulate under the same (actorID, typeTag) key; a
// selective cancel removes one of them, not all.
func (s *ScheduleCore) SetOrdinaryTimeout(deadline time.Time, actorID RawID,
	receiver Receiver, typeTag string, ordinalID uint64) {

	item := &scheduleItem{
		deadline: deadline,
		entry: ordinaryTimeoutEntry{
			actorID:   actorID,
			receiver:  receiver,
			typeTag:   typeTag,
			ordinalID: ordinalID,
		},
		actorID: actorID,
		key:     discKey{kind: discOrdinary, str: typeTag},
	}

	heap.Push(&s.heap, item)
	s.index(item)
}

// SetMultiTimeout schedules a one-shot timeout discriminated by ordinal id
// rather than type tag, so several of the same type can coexist for one
// actor. There is no selective cancel for this variant.
func (s *ScheduleCore) SetMultiTimeout(deadline time.Time, actorID RawID,
	receiver Receiver, typeTag string, ordinalID uint64) {

	item := &scheduleItem{
		deadline: deadline,
		entry: multiTimeoutEntry{
			actorID:   actorID,
			receiver:  receiver,
			typeTag:   typeTag,
			ordinalID: ordinalID,
		},
		actorID: actorID,
		key:     discKey{kind: discMulti, num: ordinalID},
	}

	heap.Push(&s.heap, item)
	s.index(item)
}

// SetRequestTimeout schedules an error delivery for a pending ask that has
// not been answered by deadline.
func (s *ScheduleCore) SetRequestTimeout(deadline time.Time, actorID RawID,
	receiver Receiver, requestID uuid.UUID) {

	item := &scheduleItem{
		deadline: deadline,
		entry: requestTimeoutEntry{
			actorID:   actorID,
			receiver:  receiver,
			requestID: requestID,
		},
		actorID: actorID,
		key:     discKey{kind: discRequest, id: requestID},
	}

	heap.Push(&s.heap, item)
	s.index(item)
}

// ScheduleActorMessage schedules delivery of a pre-built message to a
// single actor. It carries no actor-bucket identity and so cannot be
// selectively cancelled.
func (s *ScheduleCore) ScheduleActorMessage(deadline time.Time,
	receiver Receiver, msg any) {

	item := &scheduleItem{
		deadline: deadline,
		entry:    delayedActorMessageEntry{receiver: receiver, msg: msg},
	}

	heap.Push(&s.heap, item)
}

// ScheduleGroupMessage schedules delivery of a pre-built message to a
// group of actors.
func (s *ScheduleCore) ScheduleGroupMessage(deadline time.Time,
	group GroupReceiver, sender Receiver, msg any) {

	item := &scheduleItem{
		deadline: deadline,
		entry: delayedGroupMessageEntry{
			group: group, sender: sender, msg: msg,
		},
	}

	heap.Push(&s.heap, item)
}

// CancelOrdinaryTimeout removes one entry matching (actorID, typeTag), if
// any exist. It reports errNoSuchTimer if none matched. When more than one
// entry accumulated under the same key, which one is removed is
// unspecified.
func (s *ScheduleCore) CancelOrdinaryTimeout(actorID RawID,
	typeTag string) error {

	return s.cancelOne(actorID, discKey{kind: discOrdinary, str: typeTag})
}

// CancelRequestTimeout removes the entry matching (actorID, requestID), if
// it exists.
func (s *ScheduleCore) CancelRequestTimeout(actorID RawID,
	requestID uuid.UUID) error {

	return s.cancelOne(actorID, discKey{kind: discRequest, id: requestID})
}

// lookupResult is the outcome of a bucket search. The bucket handle is
// populated even when the discriminator itself missed, so a caller that
// goes on to mutate the bucket can reuse it without paying the actor-map
// hash a second time.
type lookupResult struct {
	bucket *actorBucket
	items  []*scheduleItem
}

// miss reports whether the search found no matching entry.
func (r lookupResult) miss() bool {
	return len(r.items) == 0
}

// lookup finds the bucket for actorID and the entries indexed under key
// within it.
func (s *ScheduleCore) lookup(actorID RawID, key discKey) lookupResult {
	b, ok := s.buckets[actorID]
	if !ok {
		return lookupResult{}
	}

	return lookupResult{bucket: b, items: b.byDiscriminator[key]}
}

func (s *ScheduleCore) cancelOne(actorID RawID, key discKey) error {
	res := s.lookup(actorID, key)
	if res.miss() {
		return errNoSuchTimer
	}

	// Remove through the bucket handle the lookup already produced
	// rather than re-resolving the actor id.
	item := res.items[0]
	item.indexed = false
	res.bucket.remove(item)
	if res.bucket.empty() {
		delete(s.buckets, actorID)
	}

	heap.Remove(&s.heap, item.index)

	return nil
}

// CancelTimeouts removes every ordinary, multi, and request timeout
// tracked for actorID (delayed actor/group messages are untouched, since
// they carry no actor-bucket identity). It returns the number removed.
// This must be applied before any reuse of a raw identity for a different
// actor, since nothing else guards against stale entries firing against
// the new occupant.
func (s *ScheduleCore) CancelTimeouts(actorID RawID) int {
	b, ok := s.buckets[actorID]
	if !ok {
		return 0
	}

	removed := 0
	for _, slot := range b.byDiscriminator {
		for _, item := range slot {
			item.indexed = false
			heap.Remove(&s.heap, item.index)
			removed++
		}
	}

	delete(s.buckets, actorID)

	return removed
}

// CancelAll drops every pending entry, indexed or not. It returns the
// number removed.
func (s *ScheduleCore) CancelAll() int {
	removed := len(s.heap)
	s.heap = nil
	s.buckets = make(map[RawID]*actorBucket)

	return removed
}

// NextDeadline returns the deadline of the earliest pending entry, if any.
func (s *ScheduleCore) NextDeadline() (time.Time, bool) {
	if len(s.heap) == 0 {
		return time.Time{}, false
	}

	return s.heap[0].deadline, true
}

// Tick fires every entry whose deadline is at or before now, delivering
// each one and removing it from both the heap and the per-actor index. It
// returns the number of entries fired. Installed entries always hold
// strong receiver references (the weak upgrade happened when the setter
// command was applied), so firing never has a target-gone case of its own;
// delivery failures downstream are the runtime's to log.
func (s *ScheduleCore) Tick(ctx context.Context, now time.Time) int {
	fired := 0

	for len(s.heap) > 0 && !s.heap[0].deadline.After(now) {
		item := heap.Pop(&s.heap).(*scheduleItem)
		s.unindex(item)
		s.fire(ctx, item.entry)
		fired++
	}

	return fired
}

// fire dispatches a single fired entry to its target, one case per
// variant.
func (s *ScheduleCore) fire(ctx context.Context, entry timerEntry) {
	switch e := entry.(type) {
	case ordinaryTimeoutEntry:
		log.TraceS(ctx, "Firing ordinary timeout",
			"actor_id", e.actorID, "type", e.typeTag)
		e.receiver.DeliverOrdinaryTimeout(ctx, e.typeTag, e.ordinalID)

	case multiTimeoutEntry:
		log.TraceS(ctx, "Firing multi-timeout",
			"actor_id", e.actorID, "type", e.typeTag,
			"ordinal_id", e.ordinalID)
		e.receiver.DeliverMultiTimeout(ctx, e.typeTag, e.ordinalID)

	case requestTimeoutEntry:
		log.TraceS(ctx, "Firing request timeout",
			"actor_id", e.actorID, "request_id", e.requestID)
		e.receiver.DeliverRequestTimeout(ctx, e.requestID)

	case delayedActorMessageEntry:
		log.TraceS(ctx, "Firing delayed message",
			"actor_id", e.receiver.ID())
		e.receiver.DeliverMessage(ctx, e.msg)

	case delayedGroupMessageEntry:
		log.TraceS(ctx, "Firing delayed group message",
			"group_id", e.group.ID())
		e.group.DeliverGroupMessage(ctx, e.sender, e.msg)
	}
}
