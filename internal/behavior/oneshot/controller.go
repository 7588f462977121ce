package oneshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/event"
	"github.com/oshokin/oneshot-layer/internal/logger"
	"github.com/oshokin/oneshot-layer/internal/metrics"
)

// LayerStack is the keymap layer state the controller drives.
type LayerStack interface {
	Valid(layer keyboard.LayerID) bool
	Activate(layer keyboard.LayerID) error
	Deactivate(layer keyboard.LayerID) error
}

// Timer is a cancellable one-shot timer whose callback runs on the dispatch loop.
type Timer interface {
	Schedule(d time.Duration)
	Cancel()
	Pending() bool
	Deadline() time.Time
}

// TimerFactory creates a timer that calls fire on expiry.
type TimerFactory func(fire func()) Timer

// Deferrer queues work behind the event currently being delivered.
type Deferrer interface {
	Defer(fn func())
}

var (
	// errLayersRequired is returned when no layer stack is provided.
	errLayersRequired = errors.New("layer stack must be provided")
	// errTimerRequired is returned when a timeout is configured without a timer factory.
	errTimerRequired = errors.New("timer factory must be provided for a configured timeout")
	// errDeferrerRequired is returned when the after-emission policy has nothing to defer through.
	errDeferrerRequired = errors.New("deferrer must be provided for the after-emission policy")
)

// Controller is one configured one-shot layer behavior.
type Controller struct {
	// name is the behavior name used in bindings, logs and metrics.
	name string
	// cfg is the immutable arming configuration.
	cfg domain.Config
	// layers activates and deactivates the target layer.
	layers LayerStack
	// timer disarms after cfg.Timeout; nil without a timeout.
	timer Timer
	// deferrer sequences after-emission disarms.
	deferrer Deferrer
	// clock stamps arming times.
	clock clockwork.Clock
	// log is captured at construction; callbacks run without a context.
	log *zap.SugaredLogger

	// state is the single arming state of this instance.
	state armingState
}

// armingState is reused across arm/disarm cycles.
type armingState struct {
	// active is true between arm and disarm.
	active bool
	// targetLayer is the layer armed by the trigger.
	targetLayer keyboard.LayerID
	// sourcePosition is the trigger key, exempt from self-cancellation.
	sourcePosition keyboard.Position
	// armedAt is when the current or last arming happened.
	armedAt time.Time
	// generation increments on every arm so deferred disarms can detect re-arms.
	generation uint64
	// disarmQueued is true while an after-emission disarm is waiting in the bus.
	disarmQueued bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used to stamp arming times.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithDeferrer sets the bus used to sequence after-emission disarms.
func WithDeferrer(d Deferrer) Option {
	return func(c *Controller) {
		c.deferrer = d
	}
}

// NewController validates cfg and creates an idle controller.
// The logger is taken from ctx and named after the behavior.
func NewController(
	ctx context.Context,
	name string,
	cfg domain.Config,
	layers LayerStack,
	newTimer TimerFactory,
	opts ...Option,
) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("behavior %q: %w", name, err)
	}

	if layers == nil {
		return nil, errLayersRequired
	}

	c := &Controller{
		name:   name,
		cfg:    cfg,
		layers: layers,
		clock:  clockwork.NewRealClock(),
		log:    logger.FromContext(ctx).Named(name),
	}

	for _, opt := range opts {
		opt(c)
	}

	if cfg.HasTimeout() {
		if newTimer == nil {
			return nil, fmt.Errorf("behavior %q: %w", name, errTimerRequired)
		}

		c.timer = newTimer(c.onTimeout)
	}

	if cfg.Policy == domain.PolicyOnFirstTranslatedKeyPressAfterEmission && c.deferrer == nil {
		return nil, fmt.Errorf("behavior %q: %w", name, errDeferrerRequired)
	}

	metrics.Armed.WithLabelValues(name).Set(0)

	return c, nil
}

// Name returns the behavior name.
func (c *Controller) Name() string {
	return c.name
}

// Config returns the arming configuration.
func (c *Controller) Config() domain.Config {
	return c.cfg
}

// OnPressed arms the layer named by the binding parameter.
// Any current arming is disarmed first. An invalid layer leaves the
// controller untouched. The trigger itself never produces a keycode.
func (c *Controller) OnPressed(binding keyboard.Binding, ev keyboard.BindingEvent) keyboard.ActionResult {
	if binding.Param >= keyboard.MaxLayers || !c.layers.Valid(keyboard.LayerID(binding.Param)) {
		metrics.RejectedTotal.WithLabelValues(c.name).Inc()
		c.log.Warnw("Ignoring trigger with invalid layer", "layer", binding.Param, "position", ev.Position)

		return keyboard.Opaque
	}

	layer := keyboard.LayerID(binding.Param)

	c.disarm(domain.ReasonRearm)

	if err := c.layers.Activate(layer); err != nil {
		metrics.RejectedTotal.WithLabelValues(c.name).Inc()
		c.log.Warnw("Layer activation failed", "layer", layer, "error", err)

		return keyboard.Opaque
	}

	c.state.active = true
	c.state.targetLayer = layer
	c.state.sourcePosition = ev.Position
	c.state.armedAt = c.clock.Now()
	c.state.generation++
	c.state.disarmQueued = false

	if c.timer != nil {
		c.timer.Schedule(c.cfg.Timeout)
	}

	metrics.ArmsTotal.WithLabelValues(c.name).Inc()
	metrics.Armed.WithLabelValues(c.name).Set(1)
	c.log.Debugw("Armed", "layer", layer, "position", ev.Position, "timeout", c.cfg.Timeout)

	return keyboard.Opaque
}

// OnReleased does nothing: only the timer or the cancel policy disarm.
func (c *Controller) OnReleased(keyboard.Binding, keyboard.BindingEvent) keyboard.ActionResult {
	return keyboard.Opaque
}

// Disarm releases the armed layer and reports whether anything was armed.
// Calling it while idle is a no-op.
func (c *Controller) Disarm(reason domain.DisarmReason) bool {
	return c.disarm(reason)
}

// Active reports whether the layer is armed.
func (c *Controller) Active() bool {
	return c.state.active
}

// State returns a snapshot of the controller.
func (c *Controller) State() domain.State {
	state := domain.State{
		Name:           c.name,
		Policy:         c.cfg.Policy,
		Timeout:        c.cfg.Timeout,
		Active:         c.state.active,
		TargetLayer:    c.state.targetLayer,
		SourcePosition: c.state.sourcePosition,
		ArmedAt:        c.state.armedAt,
	}

	if c.timer != nil && c.timer.Pending() {
		state.TimerPending = true
		state.Deadline = c.timer.Deadline()
	}

	return state
}

// OnPositionChanged implements the pre-translation cancel: a press of any
// other physical key disarms before the keymap translates it.
func (c *Controller) OnPositionChanged(ev keyboard.PositionChanged) event.Propagation {
	if !c.state.active || c.cfg.Policy != domain.PolicyOnAnyOtherPhysicalPress {
		return event.Bubble
	}

	if !ev.Pressed || ev.Position == c.state.sourcePosition {
		return event.Bubble
	}

	c.disarm(domain.ReasonForeignPress)

	return event.Bubble
}

// OnKeycodeChanged implements the use-once cancel: the first translated
// press observed while armed disarms, either inline or queued behind the
// emission of that press.
func (c *Controller) OnKeycodeChanged(ev keyboard.KeycodeChanged) event.Propagation {
	if !c.state.active || !ev.Pressed || ev.Position == c.state.sourcePosition {
		return event.Bubble
	}

	switch c.cfg.Policy {
	case domain.PolicyOnFirstTranslatedKeyPress:
		c.disarm(domain.ReasonTranslatedPress)
	case domain.PolicyOnFirstTranslatedKeyPressAfterEmission:
		if c.state.disarmQueued {
			return event.Bubble
		}

		c.state.disarmQueued = true
		generation := c.state.generation

		c.deferrer.Defer(func() {
			if c.state.generation != generation {
				return
			}

			c.disarm(domain.ReasonTranslatedPress)
		})
	case domain.PolicyNone, domain.PolicyOnAnyOtherPhysicalPress:
	}

	return event.Bubble
}

func (c *Controller) onTimeout() {
	c.disarm(domain.ReasonTimeout)
}

func (c *Controller) disarm(reason domain.DisarmReason) bool {
	if !c.state.active {
		return false
	}

	if c.timer != nil {
		c.timer.Cancel()
	}

	if err := c.layers.Deactivate(c.state.targetLayer); err != nil {
		c.log.Warnw("Layer deactivation failed", "layer", c.state.targetLayer, "error", err)
	}

	c.state.active = false
	c.state.disarmQueued = false

	metrics.DisarmsTotal.WithLabelValues(c.name, string(reason)).Inc()
	metrics.Armed.WithLabelValues(c.name).Set(0)
	c.log.Debugw("Disarmed", "layer", c.state.targetLayer, "reason", reason)

	return true
}
