package dispatch

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/require"
)

// startLoop runs l until the returned stop function is called.
func startLoop(t *testing.T, l *Loop) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		_ = l.Run(ctx) //nolint:errcheck // Run only returns nil.
	}()

	return func() {
		cancel()
		<-l.Done()
	}
}

// onLoop reads a value on the loop goroutine.
func onLoop[T any](t *testing.T, l *Loop, read func() T) T {
	t.Helper()

	var v T

	require.NoError(t, l.Do(context.Background(), func() { v = read() }))

	return v
}

// TestLoop_DoRunsInOrder verifies that posted functions run one at a time in arrival order.
func TestLoop_DoRunsInOrder(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		l := NewLoop()
		stop := startLoop(t, l)
		defer stop()

		var got []int

		for i := range 5 {
			require.True(t, l.Post(func() { got = append(got, i) }))
		}

		require.NoError(t, l.Do(context.Background(), func() { got = append(got, 5) }))
		require.Equal(t, []int{0, 1, 2, 3, 4, 5}, got)
	})
}

// TestLoop_SerializesConcurrentPosters ensures concurrent posters never run callbacks in parallel.
func TestLoop_SerializesConcurrentPosters(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		l := NewLoop(WithQueueSize(4))
		stop := startLoop(t, l)
		defer stop()

		var (
			counter int
			wg      sync.WaitGroup
		)

		for range 8 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				for range 100 {
					l.Post(func() { counter++ })
				}
			}()
		}

		wg.Wait()

		var got int

		require.NoError(t, l.Do(context.Background(), func() { got = counter }))
		require.Equal(t, 800, got)
	})
}

// TestLoop_RecoversPanics checks that a panicking command does not stop the loop.
func TestLoop_RecoversPanics(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		l := NewLoop()
		stop := startLoop(t, l)
		defer stop()

		require.NoError(t, l.Do(context.Background(), func() { panic("listener bug") }))

		ran := false

		require.NoError(t, l.Do(context.Background(), func() { ran = true }))
		require.True(t, ran)
	})
}

// TestLoop_Stopped asserts that a stopped loop rejects new work.
func TestLoop_Stopped(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		l := NewLoop()
		stop := startLoop(t, l)
		stop()

		require.False(t, l.Post(func() {}))
		require.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)
	})
}

// TestLoop_DoHonorsContext verifies that Do gives up when its context is canceled.
func TestLoop_DoHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The loop is never started, so the command can only be abandoned.
	l := NewLoop(WithQueueSize(1))
	l.commands <- func() {}

	require.ErrorIs(t, l.Do(ctx, func() {}), context.Canceled)
}
