package dispatch

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a cancellable, reschedulable one-shot timer.
// Its callback runs on the loop, and every method must be called on the loop.
// Once Cancel returns the callback does not run, even when the underlying
// clock already fired and the expiry is waiting in the loop queue.
type Timer struct {
	// loop receives expiries.
	loop *Loop
	// clock schedules the underlying timer.
	clock clockwork.Clock
	// fire is called on expiry.
	fire func()
	// pending is the scheduled clock timer, nil when idle.
	pending clockwork.Timer
	// generation identifies the current schedule; stale expiries carry an older value.
	generation uint64
	// deadline is when the pending timer expires.
	deadline time.Time
}

// NewTimer creates an idle timer that calls fire on loop when it expires.
func NewTimer(loop *Loop, clock clockwork.Clock, fire func()) *Timer {
	return &Timer{
		loop:  loop,
		clock: clock,
		fire:  fire,
	}
}

// Schedule replaces any pending schedule with a new one expiring after d.
func (t *Timer) Schedule(d time.Duration) {
	t.Cancel()

	generation := t.generation
	t.deadline = t.clock.Now().Add(d)
	t.pending = t.clock.AfterFunc(d, func() {
		t.loop.Post(func() { t.expire(generation) })
	})
}

// Cancel stops the pending schedule. Calling it on an idle timer is a no-op.
func (t *Timer) Cancel() {
	if t.pending == nil {
		return
	}

	t.pending.Stop()
	t.pending = nil
	t.deadline = time.Time{}
	t.generation++
}

// Pending reports whether the timer is scheduled.
func (t *Timer) Pending() bool {
	return t.pending != nil
}

// Deadline returns when the pending timer expires, zero when idle.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

func (t *Timer) expire(generation uint64) {
	if t.pending == nil || generation != t.generation {
		return
	}

	t.pending = nil
	t.deadline = time.Time{}
	t.generation++

	t.fire()
}
