// Package keypress implements the key press behavior, which translates a
// binding into a keycode event, and the none behavior, which swallows keys.
package keypress

import (
	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
)

// Raiser publishes translated keycode events.
type Raiser interface {
	RaiseKeycode(ev keyboard.KeycodeChanged)
}

// KeyPress raises the keycode in the binding parameter on press and release.
type KeyPress struct {
	// raiser receives the translated events.
	raiser Raiser
}

// New creates a key press behavior.
func New(raiser Raiser) *KeyPress {
	return &KeyPress{raiser: raiser}
}

// OnPressed raises a keycode press.
func (k *KeyPress) OnPressed(binding keyboard.Binding, ev keyboard.BindingEvent) keyboard.ActionResult {
	k.raise(binding, ev, true)

	return keyboard.Opaque
}

// OnReleased raises a keycode release.
func (k *KeyPress) OnReleased(binding keyboard.Binding, ev keyboard.BindingEvent) keyboard.ActionResult {
	k.raise(binding, ev, false)

	return keyboard.Opaque
}

func (k *KeyPress) raise(binding keyboard.Binding, ev keyboard.BindingEvent, pressed bool) {
	k.raiser.RaiseKeycode(keyboard.KeycodeChanged{
		Keycode:   keyboard.Keycode(binding.Param),
		Pressed:   pressed,
		Position:  ev.Position,
		Timestamp: ev.Timestamp,
	})
}

// None swallows the key without producing output.
type None struct{}

// OnPressed does nothing.
func (None) OnPressed(keyboard.Binding, keyboard.BindingEvent) keyboard.ActionResult {
	return keyboard.Opaque
}

// OnReleased does nothing.
func (None) OnReleased(keyboard.Binding, keyboard.BindingEvent) keyboard.ActionResult {
	return keyboard.Opaque
}
