package timer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

// deliveryCounts reduces a receiver's recorded deliveries to a multiset, so
// two receivers can be compared without depending on the unspecified firing
// order among equal deadlines.
func deliveryCounts(rec *recordingReceiver) map[string]int {
	counts := make(map[string]int)
	for _, d := range rec.deliveries() {
		key := fmt.Sprintf("%s/%s/%d/%s/%v",
			d.kind, d.typeTag, d.ordinalID, d.requestID, d.msg)
		counts[key]++
	}

	return counts
}

// TestDispatcherMatchesSerialApplication feeds a random single-producer
// command sequence through the Dispatcher's public surface, drains and
// applies it, and verifies the fired outcome is identical to applying the
// same operations directly to a ScheduleCore in submission order. This is
// the per-producer FIFO guarantee made observable: any reordering in the
// buffer would desynchronize the two runs.
func TestDispatcherMatchesSerialApplication(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		d := NewDispatcher(NewSimClock(testBase))
		direct := NewScheduleCore()

		actors := []RawID{"alpha", "beta"}
		types := []string{"tick", "poll"}
		reqPool := []uuid.UUID{uuid.New(), uuid.New()}

		// One receiver pair per actor: buffered sees deliveries from
		// the dispatcher's core, serial from the directly-driven one.
		buffered := make(map[RawID]*recordingReceiver)
		serial := make(map[RawID]*recordingReceiver)
		for _, a := range actors {
			buffered[a] = newRecordingReceiver(a)
			serial[a] = newRecordingReceiver(a)
		}

		numOps := rapid.IntRange(1, 50).Draw(t, "numOps")
		for i := 0; i < numOps; i++ {
			op := rapid.IntRange(0, 6).Draw(t, "op")
			a := rapid.SampledFrom(actors).Draw(t, "actor")
			typ := rapid.SampledFrom(types).Draw(t, "type")
			ord := uint64(rapid.IntRange(1, 4).Draw(t, "ord"))
			req := rapid.SampledFrom(reqPool).Draw(t, "req")
			deadline := at(time.Duration(
				rapid.Int64Range(1, 500).Draw(t, "offsetMs"),
			) * time.Millisecond)

			switch op {
			case 0:
				d.SetOrdinaryTimeout(
					deadline, a, buffered[a], typ, ord,
				)
				direct.SetOrdinaryTimeout(
					deadline, a, serial[a], typ, ord,
				)

			case 1:
				d.SetMultiTimeout(
					deadline, a, buffered[a], typ, ord,
				)
				direct.SetMultiTimeout(
					deadline, a, serial[a], typ, ord,
				)

			case 2:
				d.SetRequestTimeout(deadline, a, buffered[a], req)
				direct.SetRequestTimeout(deadline, a, serial[a], req)

			case 3:
				d.ScheduleActorMessage(deadline, buffered[a], i)
				direct.ScheduleActorMessage(deadline, serial[a], i)

			case 4:
				d.CancelOrdinaryTimeout(a, typ)
				_ = direct.CancelOrdinaryTimeout(a, typ)

			case 5:
				d.CancelRequestTimeout(a, req)
				_ = direct.CancelRequestTimeout(a, req)

			case 6:
				d.CancelTimeouts(a)
				direct.CancelTimeouts(a)
			}
		}

		for _, cmd := range d.drain() {
			d.apply(ctx, cmd)
		}

		firedBuffered := d.core.Tick(ctx, at(time.Hour))
		firedSerial := direct.Tick(ctx, at(time.Hour))
		if firedBuffered != firedSerial {
			t.Fatalf("buffered run fired %d, serial run fired %d",
				firedBuffered, firedSerial)
		}

		for _, a := range actors {
			got := deliveryCounts(buffered[a])
			want := deliveryCounts(serial[a])

			if len(got) != len(want) {
				t.Fatalf("%s delivery multisets differ: "+
					"%v vs %v", a, got, want)
			}
			for key, n := range want {
				if got[key] != n {
					t.Fatalf("%s delivery %q: buffered %d, "+
						"serial %d", a, key, got[key], n)
				}
			}
		}
	})
}

// TestShutdownIsIdempotent verifies that repeated Shutdown calls and
// post-shutdown command submissions are harmless.
func TestShutdownIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := NewDispatcher(NewSimClock(testBase))
		rec := newRecordingReceiver("actor-a")

		n := rapid.IntRange(1, 5).Draw(t, "shutdowns")
		for i := 0; i < n; i++ {
			d.Shutdown()
		}

		d.SetOrdinaryTimeout(at(time.Minute), rec.ID(), rec, "tick", 1)
		d.CancelAll()

		if cmds := d.drain(); len(cmds) != 0 {
			t.Fatalf("buffer accepted %d commands after shutdown",
				len(cmds))
		}
	})
}
