package dispatch

import (
	"context"
	"errors"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/oshokin/oneshot-layer/internal/logger"
	"github.com/oshokin/oneshot-layer/internal/metrics"
)

// DefaultQueueSize is the command buffer size of a Loop.
const DefaultQueueSize = 256

// ErrStopped is returned when posting to a loop that has exited.
var ErrStopped = errors.New("dispatch loop stopped")

// Loop runs posted functions one at a time on a single goroutine.
type Loop struct {
	// commands buffers posted functions in arrival order.
	commands chan func()
	// done is closed when Run returns.
	done chan struct{}
	// log reports recovered panics.
	log *zap.SugaredLogger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithQueueSize sets the command buffer size.
func WithQueueSize(size int) LoopOption {
	return func(l *Loop) {
		if size > 0 {
			l.commands = make(chan func(), size)
		}
	}
}

// WithLogger sets the logger used for recovered panics.
func WithLogger(log *zap.SugaredLogger) LoopOption {
	return func(l *Loop) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		commands: make(chan func(), DefaultQueueSize),
		done:     make(chan struct{}),
		log:      logger.Logger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Run executes posted functions until ctx is canceled.
// Functions still queued when ctx is canceled are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.commands:
			metrics.LoopQueueDepth.Set(float64(len(l.commands)))
			l.execute(fn)
		}
	}
}

// Post queues fn and returns without waiting for it to run.
// It blocks while the queue is full and returns false once the loop has stopped.
// Post must not be called from the loop goroutine.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.commands <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	select {
	case l.commands <- func() {
		defer close(finished)
		fn()
	}:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Done is closed when the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.LoopPanicsTotal.Inc()
			l.log.Errorw("Dispatch loop recovered from panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	fn()
}
