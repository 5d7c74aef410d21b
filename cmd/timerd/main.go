package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/novaquark/actor-framework/internal/baselib/actor"
	"github.com/novaquark/actor-framework/internal/build"
	"github.com/novaquark/actor-framework/internal/timer"
)

// workerNoticeMsg is the message the worker pool receives when a delayed
// group broadcast fires.
type workerNoticeMsg struct {
	actor.BaseMessage

	// Sender identifies the actor the broadcast was attributed to.
	Sender string

	// Note is the broadcast payload.
	Note string
}

// MessageType implements actor.Message.
func (workerNoticeMsg) MessageType() string { return "timerd.worker_notice" }

// heartbeatBehavior drives the demo heartbeat actor: each fired timeout logs
// a beat, re-arms the next one, and every few beats schedules a delayed
// broadcast to the worker pool. It exercises the whole setter surface of the
// timer dispatcher with real traffic.
type heartbeatBehavior struct {
	clock    timer.Clock
	timers   *timer.Dispatcher
	interval time.Duration

	// self is the heartbeat actor's own timer receiver, assigned after
	// registration and before the first timeout is armed.
	self *timer.ActorReceiver[timer.OrdinaryTimeoutMsg]

	// workers receives the periodic broadcast.
	workers timer.GroupReceiver

	beats uint64
}

// Receive handles one fired heartbeat timeout.
func (h *heartbeatBehavior) Receive(ctx context.Context,
	msg timer.OrdinaryTimeoutMsg,
) fn.Result[string] {
	h.beats++
	log.Printf("Heartbeat %d (ordinal %d)", h.beats, msg.OrdinalID)

	// Every fifth beat, fan a delayed notice out to the workers half an
	// interval later.
	if h.beats%5 == 0 {
		h.timers.ScheduleGroupMessage(
			h.clock.Now().Add(h.interval/2), h.workers, h.self,
			fmt.Sprintf("completed %d beats", h.beats),
		)
	}

	// Re-arm the next beat.
	h.timers.SetOrdinaryTimeout(
		h.clock.Now().Add(h.interval), h.self.ID(), h.self,
		"heartbeat", msg.OrdinalID+1,
	)

	return fn.Ok("beat")
}

func main() {
	var (
		logDir         = flag.String("log-dir", "~/.timerd/logs", "Directory for log files (empty to disable file logging)")
		maxLogFiles    = flag.Int("max-log-files", build.DefaultMaxLogFiles, "Maximum number of rotated log files to keep")
		maxLogFileSize = flag.Int("max-log-file-size", build.DefaultMaxLogFileSize, "Maximum log file size in MB before rotation")
		heartbeat      = flag.Duration("heartbeat", 5*time.Second, "Interval between demo heartbeat timeouts")
		numWorkers     = flag.Int("workers", 3, "Number of worker actors receiving delayed broadcasts")
	)
	flag.Parse()

	// Expand home directory in paths.
	expandHome := func(path string) string {
		expanded := os.ExpandEnv(path)
		if expanded == path && len(path) > 0 && path[0] == '~' {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatalf(
					"Failed to get home directory: %v",
					err,
				)
			}
			expanded = home + path[1:]
		}
		return expanded
	}

	logDirExpanded := expandHome(*logDir)

	// Initialize the rotating log file writer if a log directory is
	// configured. This creates ~/.timerd/logs/timerd.log with automatic
	// rotation and gzip compression of old files.
	var logRotator *build.RotatingLogWriter
	if logDirExpanded != "" {
		logRotator = build.NewRotatingLogWriter()
		err := logRotator.InitLogRotator(
			&build.LogRotatorConfig{
				LogDir:         logDirExpanded,
				MaxLogFiles:    *maxLogFiles,
				MaxLogFileSize: *maxLogFileSize,
			},
		)
		if err != nil {
			log.Printf(
				"Failed to init log rotator: %v "+
					"(continuing without file logging)",
				err,
			)
			logRotator = nil
		} else {
			defer logRotator.Close()

			// Redirect the standard log package to write to both
			// stderr and the log file.
			multiWriter := io.MultiWriter(os.Stderr, logRotator)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags)
		}
	}

	// Log version and build information at startup.
	log.Printf("timerd version %s commit=%s go=%s",
		build.Version(), commitInfo(), build.GoVersion,
	)

	// Create btclog handlers for structured subsystem logging. When file
	// logging is enabled, logs go to both the console and the rotating
	// log file.
	var btclogHandlers []btclog.Handler
	consoleHandler := btclog.NewDefaultHandler(os.Stderr)
	btclogHandlers = append(btclogHandlers, consoleHandler)

	if logRotator != nil {
		fileHandler := btclog.NewDefaultHandler(logRotator)
		btclogHandlers = append(btclogHandlers, fileHandler)

		log.Printf(
			"Log file rotation enabled: dir=%s, max_files=%d, "+
				"max_size=%dMB",
			logDirExpanded, *maxLogFiles, *maxLogFileSize,
		)
	}

	// Combine handlers into a single btclog.Handler via HandlerSet and
	// wire up the actor and timer subsystem loggers.
	combinedHandler := build.NewHandlerSet(btclogHandlers...)
	subsystemLogger := btclog.NewSLogger(combinedHandler)
	actor.UseLogger(subsystemLogger)
	timer.UseLogger(subsystemLogger.WithPrefix("TIMR"))

	// Create the actor system.
	actorSystem := actor.NewActorSystem()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(
			context.Background(), 30*time.Second,
		)
		defer shutdownCancel()

		if err := actorSystem.Shutdown(shutdownCtx); err != nil {
			log.Printf(
				"Actor system shutdown incomplete: %v "+
					"(some goroutines may have leaked)",
				err,
			)
		}
	}()

	// Create the timer dispatcher and start its dispatch loop. The loop
	// owns the schedule exclusively; everything below only enqueues
	// commands.
	clock := timer.NewRealClock()
	timers := timer.NewDispatcher(clock)

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		timers.RunDispatchLoop(context.Background())
	}()
	log.Println("Timer dispatch loop started")

	// Register the worker pool that receives delayed group broadcasts.
	workerKey := actor.NewServiceKey[workerNoticeMsg, string]("timerd-workers")
	for i := 0; i < *numWorkers; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		_ = actor.RegisterWithSystem(
			actorSystem, workerID, workerKey,
			actor.NewFunctionBehavior(
				func(ctx context.Context,
					msg workerNoticeMsg,
				) fn.Result[string] {
					log.Printf("%s: notice from %s: %s",
						workerID, msg.Sender, msg.Note)

					return fn.Ok("ack")
				},
			),
		)
	}
	log.Printf("%d worker actors registered", *numWorkers)

	workerGroup := timer.NewServiceKeyGroup(
		"timerd-workers", workerKey, actorSystem,
		func(sender timer.Receiver, msg any) workerNoticeMsg {
			return workerNoticeMsg{
				Sender: sender.ID(),
				Note:   fmt.Sprint(msg),
			}
		},
	)

	// Register the heartbeat actor and arm its first timeout.
	hb := &heartbeatBehavior{
		clock:    clock,
		timers:   timers,
		interval: *heartbeat,
		workers:  workerGroup,
	}
	hbKey := actor.NewServiceKey[timer.OrdinaryTimeoutMsg, string](
		"timerd-heartbeat",
	)
	hbRef := actor.RegisterWithSystem(actorSystem, "heartbeat", hbKey, hb)

	hb.self = timer.NewActorReceiver[timer.OrdinaryTimeoutMsg](
		hbRef,
		func(typeTag string, ordinalID uint64) timer.OrdinaryTimeoutMsg {
			return timer.OrdinaryTimeoutMsg{
				Type:      typeTag,
				OrdinalID: ordinalID,
			}
		},
		nil, nil,
	)

	timers.SetOrdinaryTimeout(
		clock.Now().Add(*heartbeat), hb.self.ID(), hb.self,
		"heartbeat", 1,
	)
	log.Printf("Heartbeat actor started (interval %v)", *heartbeat)

	// Set up signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf(
			"Received %v, initiating graceful shutdown "+
				"(send again to force exit)...", sig,
		)
		cancel()

		// Wait for a second signal to force-exit. The goroutine
		// stays alive so subsequent Ctrl+C signals are consumed
		// rather than silently dropped by the buffered channel.
		sig = <-sigCh
		log.Printf(
			"Received %v again, forcing immediate exit",
			sig,
		)
		os.Exit(1)
	}()

	// Block until signal received.
	<-ctx.Done()

	// Stop the dispatch loop before the actor system goes down, so no
	// timer fires into a terminating mailbox.
	timers.Shutdown()
	select {
	case <-dispatchDone:
		log.Println("Timer dispatch loop stopped")
	case <-time.After(10 * time.Second):
		log.Println("Timer dispatch loop did not stop in time")
	}
}

// commitInfo returns the best available commit identifier. It prefers the
// Commit string set via ldflags (which includes tag info), falling back to
// the VCS commit hash from runtime/debug.
func commitInfo() string {
	if build.Commit != "" {
		return build.Commit
	}
	if build.CommitHash != "" {
		return build.CommitHash
	}

	return "dev"
}
