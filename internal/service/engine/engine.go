package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/oshokin/oneshot-layer/internal/behavior/oneshot"
	"github.com/oshokin/oneshot-layer/internal/config"
	"github.com/oshokin/oneshot-layer/internal/dispatch"
	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/hid"
	"github.com/oshokin/oneshot-layer/internal/logger"
	"github.com/oshokin/oneshot-layer/internal/metrics"
)

// errConfigRequired is returned when no configuration is provided.
var errConfigRequired = errors.New("configuration must be provided")

// Engine runs the keyboard pipeline on a dispatch loop.
type Engine struct {
	// loop serializes every pipeline access.
	loop *dispatch.Loop
	// clock drives behavior timers and event timestamps.
	clock clockwork.Clock
	// ctx carries the logger used to build pipelines.
	ctx context.Context //nolint:containedctx // Only used for logger lookups when rebuilding.
	// log is the engine logger.
	log *zap.SugaredLogger
	// queueSize is the loop buffer size.
	queueSize int
	// sink optionally receives every emission.
	sink hid.Sink
	// updates carries the latest status after each change.
	updates chan *domain.Status

	// pipeline is owned by the loop goroutine.
	pipeline *pipeline
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock for timers and timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithQueueSize sets the dispatch loop buffer size.
func WithQueueSize(size int) Option {
	return func(e *Engine) {
		e.queueSize = size
	}
}

// WithSink forwards every emission to s.
func WithSink(s hid.Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// New builds an engine from cfg. Nothing is processed until Run is called.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	ctx = logger.WithName(ctx, "engine")

	e := &Engine{
		clock:   clockwork.NewRealClock(),
		ctx:     ctx,
		log:     logger.FromContext(ctx),
		updates: make(chan *domain.Status, 1),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.loop = dispatch.NewLoop(dispatch.WithQueueSize(e.queueSize), dispatch.WithLogger(e.log))

	p, err := e.build(cfg)
	if err != nil {
		return nil, err
	}

	e.pipeline = p

	return e, nil
}

// Run processes events until ctx is canceled. Armed layers are disarmed on exit.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Infow("Engine started", "behaviors", len(e.pipeline.controllers), "layers", e.pipeline.keymap.Len())

	err := e.loop.Run(ctx)

	// The loop has exited, so the pipeline is ours.
	e.pipeline.reset(domain.ReasonReset)
	e.log.Info("Engine stopped")

	return err
}

// Press injects a press of position and waits until it was processed.
func (e *Engine) Press(ctx context.Context, position keyboard.Position) error {
	return e.loop.Do(ctx, func() {
		e.handle(keyboard.PositionChanged{Position: position, Pressed: true, Timestamp: e.clock.Now()})
	})
}

// Release injects a release of position and waits until it was processed.
func (e *Engine) Release(ctx context.Context, position keyboard.Position) error {
	return e.loop.Do(ctx, func() {
		e.handle(keyboard.PositionChanged{Position: position, Timestamp: e.clock.Now()})
	})
}

// Submit queues ev without waiting. It returns false once the engine stopped.
func (e *Engine) Submit(ev keyboard.PositionChanged) bool {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.clock.Now()
	}

	return e.loop.Post(func() { e.handle(ev) })
}

// Status returns a snapshot of the layers and behaviors.
func (e *Engine) Status(ctx context.Context) (*domain.Status, error) {
	var status *domain.Status

	if err := e.loop.Do(ctx, func() { status = e.snapshot() }); err != nil {
		return nil, err
	}

	return status, nil
}

// Emissions returns up to limit of the most recent emissions, oldest first.
// A non-positive limit returns the whole history.
func (e *Engine) Emissions(ctx context.Context, limit int) ([]hid.Emission, error) {
	var emissions []hid.Emission

	if err := e.loop.Do(ctx, func() { emissions = e.pipeline.report.Emissions() }); err != nil {
		return nil, err
	}

	if limit > 0 && len(emissions) > limit {
		emissions = slices.Clone(emissions[len(emissions)-limit:])
	}

	return emissions, nil
}

// Reload replaces the pipeline with one built from cfg. Every armed layer of
// the old pipeline is disarmed and every key it reports down is released
// first. An invalid cfg leaves the engine unchanged.
func (e *Engine) Reload(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errConfigRequired
	}

	var (
		buildErr error
		held     int
	)

	err := e.loop.Do(ctx, func() {
		p, err := e.build(cfg)
		if err != nil {
			buildErr = err

			return
		}

		held = e.pipeline.processor.Held()
		e.pipeline.reset(domain.ReasonReset)
		e.pipeline.releaseHeld(e.clock.Now())
		e.pipeline = p
		e.publish()
	})
	if err != nil {
		return err
	}

	if buildErr != nil {
		return fmt.Errorf("rebuild pipeline: %w", buildErr)
	}

	e.log.Infow("Pipeline reloaded", "behaviors", len(cfg.Behaviors), "layers", len(cfg.Layers))

	// Their physical releases have no recorded press on the new keymap.
	if held > 0 {
		e.log.Warnw("Keys held across reload", "held", held)
	}

	return nil
}

// Updates delivers the latest status after every processed event, timer
// expiry or reload. Slow readers only see the most recent status.
func (e *Engine) Updates() <-chan *domain.Status {
	return e.updates
}

// Done is closed when the engine has stopped.
func (e *Engine) Done() <-chan struct{} {
	return e.loop.Done()
}

func (e *Engine) build(cfg *config.Config) (*pipeline, error) {
	newTimer := func(fire func()) oneshot.Timer {
		return dispatch.NewTimer(e.loop, e.clock, func() {
			fire()
			e.publish()
		})
	}

	opts := []hid.Option{hid.WithHistorySize(cfg.HistorySize)}
	if e.sink != nil {
		opts = append(opts, hid.WithSink(e.sink))
	}

	return buildPipeline(e.ctx, cfg, newTimer, opts...)
}

func (e *Engine) handle(ev keyboard.PositionChanged) {
	metrics.EventsTotal.WithLabelValues("position").Inc()
	e.pipeline.bus.RaisePosition(ev)
	e.publish()
}

func (e *Engine) snapshot() *domain.Status {
	s := e.pipeline.status()
	s.Timestamp = e.clock.Now()

	return s
}

// publish replaces any unread status with the current one.
// Only the loop goroutine sends, so the drain leaves room for the send.
func (e *Engine) publish() {
	s := e.snapshot()

	select {
	case e.updates <- s:
		return
	default:
	}

	select {
	case <-e.updates:
	default:
	}

	e.updates <- s
}
