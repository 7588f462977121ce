package keymap

import (
	"context"

	"go.uber.org/zap"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	"github.com/oshokin/oneshot-layer/internal/event"
	"github.com/oshokin/oneshot-layer/internal/logger"
)

// Behavior handles the bindings that name it.
type Behavior interface {
	OnPressed(binding keyboard.Binding, ev keyboard.BindingEvent) keyboard.ActionResult
	OnReleased(binding keyboard.Binding, ev keyboard.BindingEvent) keyboard.ActionResult
}

// heldBinding remembers what a held key was bound to at press time.
type heldBinding struct {
	// binding is the binding invoked on press.
	binding keyboard.Binding
	// layer is the layer the binding was resolved from.
	layer keyboard.LayerID
}

// Processor is the position listener that translates physical events
// through the keymap into behavior invocations.
type Processor struct {
	// keymap resolves bindings.
	keymap *Keymap
	// behaviors maps behavior names to handlers.
	behaviors map[string]Behavior
	// held tracks bindings of keys that are down, so releases match presses
	// even when the active layers changed in between.
	held map[keyboard.Position]heldBinding
	// log is captured at construction.
	log *zap.SugaredLogger
}

// NewProcessor creates a processor over km.
func NewProcessor(ctx context.Context, km *Keymap, behaviors map[string]Behavior) *Processor {
	return &Processor{
		keymap:    km,
		behaviors: behaviors,
		held:      make(map[keyboard.Position]heldBinding),
		log:       logger.FromContext(ctx).Named("keymap"),
	}
}

// OnPositionChanged resolves and invokes the binding of the event's position.
func (p *Processor) OnPositionChanged(ev keyboard.PositionChanged) event.Propagation {
	if ev.Pressed {
		p.press(ev)
	} else {
		p.release(ev)
	}

	return event.Bubble
}

// Held returns the number of keys currently down.
func (p *Processor) Held() int {
	return len(p.held)
}

func (p *Processor) press(ev keyboard.PositionChanged) {
	if _, down := p.held[ev.Position]; down {
		return
	}

	for layer := int(p.keymap.Highest()); layer >= 0; layer-- {
		id := keyboard.LayerID(layer)
		if !p.keymap.IsActive(id) {
			continue
		}

		binding, ok := p.keymap.Binding(id, ev.Position)
		if !ok {
			continue
		}

		behavior, ok := p.behaviors[binding.Behavior]
		if !ok {
			p.log.Warnw("No behavior registered for binding", "binding", binding.String(), "position", ev.Position)

			return
		}

		bindingEvent := keyboard.BindingEvent{Position: ev.Position, Layer: id, Timestamp: ev.Timestamp}
		if behavior.OnPressed(binding, bindingEvent) == keyboard.Transparent {
			continue
		}

		p.held[ev.Position] = heldBinding{binding: binding, layer: id}
		p.log.Debugw("Key pressed", "position", ev.Position, "layer", id, "binding", binding.String())

		return
	}

	p.log.Debugw("No binding for position", "position", ev.Position)
}

func (p *Processor) release(ev keyboard.PositionChanged) {
	held, ok := p.held[ev.Position]
	if !ok {
		return
	}

	delete(p.held, ev.Position)

	behavior, ok := p.behaviors[held.binding.Behavior]
	if !ok {
		return
	}

	behavior.OnReleased(held.binding, keyboard.BindingEvent{
		Position:  ev.Position,
		Layer:     held.layer,
		Timestamp: ev.Timestamp,
	})
}
