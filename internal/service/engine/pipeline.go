package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/oneshot-layer/internal/behavior/keypress"
	"github.com/oshokin/oneshot-layer/internal/behavior/oneshot"
	"github.com/oshokin/oneshot-layer/internal/config"
	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/event"
	"github.com/oshokin/oneshot-layer/internal/hid"
	"github.com/oshokin/oneshot-layer/internal/keymap"
	"github.com/oshokin/oneshot-layer/internal/metrics"
)

// pipeline is one configured instance of the keyboard: bus, keymap,
// behaviors and output. It is owned by the dispatch loop.
type pipeline struct {
	// bus delivers position and keycode events.
	bus *event.Bus
	// keymap is the layer stack.
	keymap *keymap.Keymap
	// report records emissions.
	report *hid.Report
	// processor translates positions through the keymap.
	processor *keymap.Processor
	// controllers holds the one-shot behaviors in configuration order.
	controllers []*oneshot.Controller
}

// buildPipeline wires a pipeline from cfg.
//
// Listener order on the position stream: physical-press cancels, then the
// keymap. On the keycode stream: the report, then use-once cancels, then
// the event counter.
func buildPipeline(
	ctx context.Context,
	cfg *config.Config,
	newTimer oneshot.TimerFactory,
	reportOpts ...hid.Option,
) (*pipeline, error) {
	layers, err := cfg.BuildLayers()
	if err != nil {
		return nil, fmt.Errorf("build layers: %w", err)
	}

	km, err := keymap.New(layers)
	if err != nil {
		return nil, fmt.Errorf("build keymap: %w", err)
	}

	p := &pipeline{
		bus:    event.New(),
		keymap: km,
		report: hid.NewReport(ctx, km, reportOpts...),
	}

	behaviors := map[string]keymap.Behavior{
		keymap.BehaviorKeyPress: keypress.New(p.bus),
		keymap.BehaviorNone:     keypress.None{},
	}

	for _, b := range cfg.Behaviors {
		controller, err := oneshot.NewController(ctx, b.Name, b.Config, km, newTimer,
			oneshot.WithDeferrer(p.bus))
		if err != nil {
			return nil, err
		}

		behaviors[b.Name] = controller
		p.controllers = append(p.controllers, controller)

		switch b.Policy.Stream() {
		case domain.StreamPosition:
			p.bus.SubscribePosition(b.Name, event.PriorityCancel, controller)
		case domain.StreamKeycode:
			p.bus.SubscribeKeycode(b.Name, event.PriorityCancel, controller)
		case domain.StreamNone:
		}
	}

	p.processor = keymap.NewProcessor(ctx, km, behaviors)

	p.bus.SubscribePosition("keymap", event.PriorityDefault, p.processor)
	p.bus.SubscribeKeycode("hid", event.PriorityEmit, p.report)
	p.bus.SubscribeKeycode("events", event.PriorityObserve, event.KeycodeListenerFunc(
		func(keyboard.KeycodeChanged) event.Propagation {
			metrics.EventsTotal.WithLabelValues("keycode").Inc()

			return event.Bubble
		}))

	return p, nil
}

// status takes a snapshot of the pipeline.
func (p *pipeline) status() *domain.Status {
	s := &domain.Status{
		ActiveLayers: p.keymap.ActiveLayers(),
		LayerNames:   p.keymap.Names(),
		Behaviors:    make([]domain.State, 0, len(p.controllers)),
		HeldKeys:     p.report.Pressed(),
	}

	for _, c := range p.controllers {
		s.Behaviors = append(s.Behaviors, c.State())
	}

	return s
}

// releaseHeld releases every keycode still reported down, so a pipeline
// being replaced leaves no key pressed on the host.
func (p *pipeline) releaseHeld(at time.Time) {
	for _, code := range p.report.Pressed() {
		p.bus.RaiseKeycode(keyboard.KeycodeChanged{Keycode: code, Timestamp: at})
	}
}

// reset disarms every behavior.
func (p *pipeline) reset(reason domain.DisarmReason) {
	for _, c := range p.controllers {
		c.Disarm(reason)
	}
}
