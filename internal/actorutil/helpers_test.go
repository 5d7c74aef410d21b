package actorutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/novaquark/actor-framework/internal/baselib/actor"
	"github.com/stretchr/testify/require"
)

// probeMsg is the message type the helper tests ask with.
type probeMsg struct {
	actor.BaseMessage

	payload string
	fail    bool
}

// MessageType implements actor.Message.
func (probeMsg) MessageType() string { return "actorutil.probe" }

var errProbeFailed = errors.New("probe failed")

func startProbeActor(t *testing.T) actor.ActorRef[probeMsg, string] {
	t.Helper()

	behavior := actor.NewFunctionBehavior(
		func(ctx context.Context, msg probeMsg) fn.Result[string] {
			if msg.fail {
				return fn.Err[string](errProbeFailed)
			}

			return fn.Ok("echo:" + msg.payload)
		},
	)

	a := actor.NewActor(actor.ActorConfig[probeMsg, string]{
		ID:          "probe",
		Behavior:    behavior,
		MailboxSize: 4,
	})
	a.Start()
	t.Cleanup(a.Stop)

	return a.Ref()
}

// TestAskAwaitReturnsResponse verifies the success path unpacks the
// behavior's value directly.
func TestAskAwaitReturnsResponse(t *testing.T) {
	t.Parallel()

	ref := startProbeActor(t)

	got, err := AskAwait(context.Background(), ref, probeMsg{payload: "hi"})
	require.NoError(t, err)
	require.Equal(t, "echo:hi", got)
}

// TestAskAwaitSurfacesBehaviorError verifies a failing behavior comes back
// as the unpacked error.
func TestAskAwaitSurfacesBehaviorError(t *testing.T) {
	t.Parallel()

	ref := startProbeActor(t)

	_, err := AskAwait(context.Background(), ref, probeMsg{fail: true})
	require.ErrorIs(t, err, errProbeFailed)
}

// TestAskAwaitHonorsContext verifies the wait gives up when the caller's
// context expires before the actor answers.
func TestAskAwaitHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	behavior := actor.NewFunctionBehavior(
		func(ctx context.Context, msg probeMsg) fn.Result[string] {
			<-release
			return fn.Ok("late")
		},
	)
	a := actor.NewActor(actor.ActorConfig[probeMsg, string]{
		ID:          "slow-probe",
		Behavior:    behavior,
		MailboxSize: 4,
	})
	a.Start()
	t.Cleanup(func() {
		close(release)
		a.Stop()
	})

	ctx, cancel := context.WithTimeout(
		context.Background(), 50*time.Millisecond,
	)
	defer cancel()

	_, err := AskAwait(ctx, a.Ref(), probeMsg{payload: "x"})
	require.Error(t, err)
}
