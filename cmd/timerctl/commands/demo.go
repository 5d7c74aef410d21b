package commands

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/novaquark/actor-framework/internal/actorutil"
	"github.com/novaquark/actor-framework/internal/baselib/actor"
	"github.com/novaquark/actor-framework/internal/timer"
	"github.com/spf13/cobra"
)

var (
	// demoDuration is how long the demo runs before shutting down.
	demoDuration time.Duration

	// demoCancel demonstrates selective cancellation when set.
	demoCancel bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted timer scenario in-process",
	Long: `Demo spins up an actor system and a timer dispatcher, schedules one of
each timer variant, optionally cancels some of them, and prints every event
that fires. Use it to watch the command surface in action.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().DurationVar(
		&demoDuration, "duration", 500*time.Millisecond,
		"How long to let the scenario run before shutting down",
	)
	demoCmd.Flags().BoolVar(
		&demoCancel, "cancel", false,
		"Cancel the ordinary timeout and the request timeout before "+
			"they fire",
	)
}

// flushProbe is the sentinel description asked of the collector to confirm
// its mailbox has drained.
const flushProbe = "flush-probe"

// demoEventMsg is the message the collector actor receives for every fired
// timer event.
type demoEventMsg struct {
	actor.BaseMessage

	// Desc is a human-readable description of the event.
	Desc string
}

// MessageType implements actor.Message.
func (demoEventMsg) MessageType() string { return "timerctl.demo_event" }

// runDemo executes the scripted scenario.
func runDemo(cmd *cobra.Command, args []string) error {
	system := actor.NewActorSystem()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 10*time.Second,
		)
		defer cancel()

		_ = system.Shutdown(shutdownCtx)
	}()

	clock := timer.NewRealClock()
	timers := timer.NewDispatcher(clock)

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		timers.RunDispatchLoop(context.Background())
	}()

	// The collector prints every event it receives.
	var fired atomic.Int64
	collectorKey := actor.NewServiceKey[demoEventMsg, string](
		"demo-collector",
	)
	collectorRef := actor.RegisterWithSystem(
		system, "collector", collectorKey,
		actor.NewFunctionBehavior(
			func(ctx context.Context,
				msg demoEventMsg,
			) fn.Result[string] {
				// The trailing flush probe is not a timer
				// event, just a mailbox barrier.
				if msg.Desc == flushProbe {
					return fn.Ok("flushed")
				}

				fired.Add(1)
				fmt.Printf("fired: %s\n", msg.Desc)

				return fn.Ok("seen")
			},
		),
	)

	collector := timer.NewActorReceiver[demoEventMsg](
		collectorRef,
		func(typeTag string, ordinalID uint64) demoEventMsg {
			return demoEventMsg{Desc: fmt.Sprintf(
				"ordinary timeout type=%s ord=%d",
				typeTag, ordinalID,
			)}
		},
		func(typeTag string, ordinalID uint64) demoEventMsg {
			return demoEventMsg{Desc: fmt.Sprintf(
				"multi-timeout type=%s ord=%d",
				typeTag, ordinalID,
			)}
		},
		func(requestID uuid.UUID) demoEventMsg {
			return demoEventMsg{Desc: fmt.Sprintf(
				"request timeout id=%s", requestID,
			)}
		},
	)

	// A two-actor worker pool receives the delayed group broadcast.
	workerKey := actor.NewServiceKey[demoEventMsg, string]("demo-workers")
	for i := 0; i < 2; i++ {
		workerID := fmt.Sprintf("demo-worker-%d", i)
		_ = actor.RegisterWithSystem(
			system, workerID, workerKey,
			actor.NewFunctionBehavior(
				func(ctx context.Context,
					msg demoEventMsg,
				) fn.Result[string] {
					fired.Add(1)
					fmt.Printf("fired: %s received %s\n",
						workerID, msg.Desc)

					return fn.Ok("seen")
				},
			),
		)
	}
	workerGroup := timer.NewServiceKeyGroup(
		"demo-workers", workerKey, system,
		func(sender timer.Receiver, msg any) demoEventMsg {
			return demoEventMsg{Desc: fmt.Sprintf(
				"group broadcast from %s: %v", sender.ID(), msg,
			)}
		},
	)

	// Schedule one of each variant inside the demo window.
	now := clock.Now()
	step := demoDuration / 5
	requestID := uuid.New()

	timers.SetOrdinaryTimeout(
		now.Add(2*step), collector.ID(), collector, "demo-tick", 1,
	)
	timers.SetMultiTimeout(
		now.Add(step), collector.ID(), collector, "demo-poll", 1,
	)
	timers.SetMultiTimeout(
		now.Add(2*step), collector.ID(), collector, "demo-poll", 2,
	)
	timers.SetMultiTimeout(
		now.Add(3*step), collector.ID(), collector, "demo-poll", 3,
	)
	timers.SetRequestTimeout(
		now.Add(3*step), collector.ID(), collector, requestID,
	)
	timers.ScheduleActorMessage(
		now.Add(2*step), collector,
		demoEventMsg{Desc: "delayed actor message"},
	)
	timers.ScheduleGroupMessage(
		now.Add(4*step), workerGroup, collector, "delayed group message",
	)

	if demoCancel {
		fmt.Println("cancelling the ordinary and request timeouts")
		timers.CancelOrdinaryTimeout(collector.ID(), "demo-tick")
		timers.CancelRequestTimeout(collector.ID(), requestID)
	}

	time.Sleep(demoDuration + step)

	// The setter commands hold the collector only weakly while in
	// transit; keep it reachable until the scenario has played out.
	runtime.KeepAlive(collector)

	timers.Shutdown()
	select {
	case <-dispatchDone:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("dispatch loop did not stop")
	}

	// Everything already fired sits in the collector's mailbox; ask it a
	// flush probe so the count below reflects every delivery.
	flushCtx, flushCancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer flushCancel()

	if _, err := actorutil.AskAwait(
		flushCtx, collectorRef, demoEventMsg{Desc: flushProbe},
	); err != nil {
		return fmt.Errorf("flushing collector mailbox: %w", err)
	}

	fmt.Printf("demo complete: %d deliveries\n", fired.Load())

	return nil
}
