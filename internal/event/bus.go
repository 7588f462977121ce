package event

import (
	"slices"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
)

// Propagation is returned by listeners to continue or stop delivery.
type Propagation int

const (
	// Bubble lets the event reach the next listener.
	Bubble Propagation = iota
	// Capture stops delivery of the event to lower-priority listeners.
	Capture
)

// Listener priorities used by the daemon. Lower values run first.
const (
	// PriorityCancel is for listeners that must observe events before translation or emission.
	PriorityCancel = -100
	// PriorityDefault is the priority of ordinary listeners.
	PriorityDefault = 0
	// PriorityEmit is for the output report, which must see keycodes before use-once cancels.
	PriorityEmit = -200
	// PriorityObserve is for listeners that must run after everything else.
	PriorityObserve = 100
)

// PositionListener observes physical key events.
type PositionListener interface {
	OnPositionChanged(ev keyboard.PositionChanged) Propagation
}

// KeycodeListener observes translated keycode events.
type KeycodeListener interface {
	OnKeycodeChanged(ev keyboard.KeycodeChanged) Propagation
}

// PositionListenerFunc adapts a function to PositionListener.
type PositionListenerFunc func(ev keyboard.PositionChanged) Propagation

// OnPositionChanged calls f(ev).
func (f PositionListenerFunc) OnPositionChanged(ev keyboard.PositionChanged) Propagation {
	return f(ev)
}

// KeycodeListenerFunc adapts a function to KeycodeListener.
type KeycodeListenerFunc func(ev keyboard.KeycodeChanged) Propagation

// OnKeycodeChanged calls f(ev).
func (f KeycodeListenerFunc) OnKeycodeChanged(ev keyboard.KeycodeChanged) Propagation {
	return f(ev)
}

// subscription is one registered listener.
type subscription[L any] struct {
	// name identifies the listener in logs.
	name string
	// priority orders delivery, lower first.
	priority int
	// seq keeps registration order among equal priorities.
	seq int
	// listener receives the events.
	listener L
}

// queued is one pending unit of work.
type queued struct {
	// run delivers the event or runs the deferred work.
	run func()
	// deferred marks work queued through Defer.
	deferred bool
}

// Bus delivers position and keycode events in the order they were raised.
type Bus struct {
	// position holds position listeners sorted by priority.
	position []subscription[PositionListener]
	// keycode holds keycode listeners sorted by priority.
	keycode []subscription[KeycodeListener]
	// queue holds pending deliveries and deferred work.
	queue []queued
	// draining is true while the queue is being processed.
	draining bool
	// seq is the registration counter.
	seq int
}

// New creates an empty bus.
func New() *Bus {
	return new(Bus)
}

// SubscribePosition registers a position listener.
func (b *Bus) SubscribePosition(name string, priority int, l PositionListener) {
	b.position = insert(b.position, subscription[PositionListener]{
		name:     name,
		priority: priority,
		seq:      b.nextSeq(),
		listener: l,
	})
}

// SubscribeKeycode registers a keycode listener.
func (b *Bus) SubscribeKeycode(name string, priority int, l KeycodeListener) {
	b.keycode = insert(b.keycode, subscription[KeycodeListener]{
		name:     name,
		priority: priority,
		seq:      b.nextSeq(),
		listener: l,
	})
}

// PositionListeners returns listener names in delivery order.
func (b *Bus) PositionListeners() []string {
	return names(b.position)
}

// KeycodeListeners returns listener names in delivery order.
func (b *Bus) KeycodeListeners() []string {
	return names(b.keycode)
}

// RaisePosition queues a position event.
func (b *Bus) RaisePosition(ev keyboard.PositionChanged) {
	b.enqueue(func() {
		for _, sub := range b.position {
			if sub.listener.OnPositionChanged(ev) == Capture {
				return
			}
		}
	})
}

// RaiseKeycode queues a keycode event.
func (b *Bus) RaiseKeycode(ev keyboard.KeycodeChanged) {
	b.enqueue(func() {
		for _, sub := range b.keycode {
			if sub.listener.OnKeycodeChanged(ev) == Capture {
				return
			}
		}
	})
}

// Defer queues fn behind every event raised so far. Deferred work survives a
// listener panic and runs before the next event.
func (b *Bus) Defer(fn func()) {
	b.push(queued{run: fn, deferred: true})
}

// Pending returns the number of queued deliveries.
func (b *Bus) Pending() int {
	return len(b.queue)
}

func (b *Bus) enqueue(fn func()) {
	b.push(queued{run: fn})
}

func (b *Bus) push(q queued) {
	b.queue = append(b.queue, q)
	if b.draining {
		return
	}

	b.drain()
}

func (b *Bus) drain() {
	b.draining = true

	defer func() {
		b.draining = false
		// After a panic, drop the events of the interrupted delivery but keep
		// deferred work for the next drain.
		b.queue = slices.DeleteFunc(b.queue, func(q queued) bool { return !q.deferred })
	}()

	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue[0] = queued{}
		b.queue = b.queue[1:]

		next.run()
	}
}

func (b *Bus) nextSeq() int {
	b.seq++

	return b.seq
}

func insert[L any](subs []subscription[L], sub subscription[L]) []subscription[L] {
	subs = append(subs, sub)
	slices.SortStableFunc(subs, func(a, b subscription[L]) int {
		if a.priority != b.priority {
			return a.priority - b.priority
		}

		return a.seq - b.seq
	})

	return subs
}

func names[L any](subs []subscription[L]) []string {
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.name)
	}

	return out
}
