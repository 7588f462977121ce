package keyboard

import (
	"fmt"
	"time"
)

// Position identifies a physical key on the device.
type Position uint32

// LayerID identifies a keymap layer. Layer 0 is the default layer.
type LayerID uint8

// MaxLayers is the maximum number of layers a keymap can hold.
const MaxLayers = 32

// Keycode is a Linux input event code (KEY_*).
type Keycode uint16

// ActionResult tells the keymap whether a behavior handled a binding.
type ActionResult int

const (
	// Opaque means the behavior handled the binding; lower layers are not consulted.
	Opaque ActionResult = iota
	// Transparent passes the binding down to the next active layer.
	Transparent
)

// String returns the result name.
func (r ActionResult) String() string {
	switch r {
	case Opaque:
		return "opaque"
	case Transparent:
		return "transparent"
	default:
		return fmt.Sprintf("ActionResult(%d)", int(r))
	}
}

// Binding assigns a behavior with one parameter to a key position.
type Binding struct {
	// Behavior is the name of the behavior, e.g. "kp" or a one-shot layer instance.
	Behavior string
	// Param is the behavior parameter: a keycode for "kp", a layer for one-shot layers.
	Param uint32
}

// String renders the binding in keymap notation.
func (b Binding) String() string {
	return fmt.Sprintf("&%s %d", b.Behavior, b.Param)
}

// BindingEvent describes the key press or release that invoked a binding.
type BindingEvent struct {
	// Position is the physical key that triggered the binding.
	Position Position
	// Layer is the layer the binding was resolved from.
	Layer LayerID
	// Timestamp is when the physical event happened.
	Timestamp time.Time
}

// PositionChanged is raised for every physical key press or release,
// before any keymap translation.
type PositionChanged struct {
	// Position is the physical key.
	Position Position
	// Pressed is true for a press and false for a release.
	Pressed bool
	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// KeycodeChanged is raised after a physical event was translated into a keycode.
type KeycodeChanged struct {
	// Keycode is the translated key.
	Keycode Keycode
	// Pressed is true for a press and false for a release.
	Pressed bool
	// Position is the physical key the keycode was translated from.
	Position Position
	// Timestamp is the timestamp of the originating physical event.
	Timestamp time.Time
}
