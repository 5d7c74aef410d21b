package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestPromiseCompletesOnce verifies that only the first completion wins,
// even under concurrent attempts.
func TestPromiseCompletesOnce(t *testing.T) {
	t.Parallel()

	p := NewPromise[int]()

	var wg sync.WaitGroup
	wins := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(value int) {
			defer wg.Done()
			if p.Complete(fn.Ok(value)) {
				wins <- value
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []int
	for v := range wins {
		winners = append(winners, v)
	}
	require.Len(t, winners, 1)

	got, err := p.Future().Await(context.Background()).Unpack()
	require.NoError(t, err)
	require.Equal(t, winners[0], got)
}

// TestAwaitUnblocksOnCompletion verifies a waiter parked before completion
// observes the result.
func TestAwaitUnblocksOnCompletion(t *testing.T) {
	t.Parallel()

	p := NewPromise[string]()

	done := make(chan string, 1)
	go func() {
		result := p.Future().Await(context.Background())
		value, _ := result.Unpack()
		done <- value
	}()

	p.Complete(fn.Ok("ready"))

	select {
	case got := <-done:
		require.Equal(t, "ready", got)
	case <-time.After(5 * time.Second):
		t.Fatal("await never unblocked")
	}
}

// TestAwaitHonorsContext verifies a cancelled wait returns the context
// error while leaving the promise completable for other waiters.
func TestAwaitHonorsContext(t *testing.T) {
	t.Parallel()

	p := NewPromise[string]()

	ctx, cancel := context.WithTimeout(
		context.Background(), 50*time.Millisecond,
	)
	defer cancel()

	_, err := p.Future().Await(ctx).Unpack()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The promise is still live: a later completion reaches a fresh
	// waiter.
	require.True(t, p.Complete(fn.Ok("eventually")))
	got, err := p.Future().Await(context.Background()).Unpack()
	require.NoError(t, err)
	require.Equal(t, "eventually", got)
}
