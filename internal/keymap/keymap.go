package keymap

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
)

// Built-in behavior names.
const (
	// BehaviorTransparent falls through to the next active layer.
	BehaviorTransparent = "trans"
	// BehaviorNone swallows the key.
	BehaviorNone = "none"
	// BehaviorKeyPress emits the keycode given as parameter.
	BehaviorKeyPress = "kp"
)

// DefaultLayer is always active.
const DefaultLayer keyboard.LayerID = 0

var (
	// ErrInvalidLayer is returned for layer IDs outside the keymap.
	ErrInvalidLayer = errors.New("invalid layer")
	// errNoLayers is returned when a keymap is built without layers.
	errNoLayers = errors.New("keymap needs at least one layer")
	// errTooManyLayers is returned when more than keyboard.MaxLayers layers are given.
	errTooManyLayers = errors.New("too many layers")
	// errDuplicateLayer is returned when two layers share a name.
	errDuplicateLayer = errors.New("duplicate layer name")
)

// Layer is one named set of bindings indexed by position.
type Layer struct {
	// Name is the layer name used in bindings and status output.
	Name string
	// Bindings maps positions to bindings. Missing positions are transparent.
	Bindings map[keyboard.Position]keyboard.Binding
}

// Keymap is the layer stack. It is not safe for concurrent use.
type Keymap struct {
	// layers holds the layers indexed by LayerID.
	layers []Layer
	// byName maps layer names to IDs.
	byName map[string]keyboard.LayerID
	// active is a bitmask of active layers.
	active uint32
}

// New creates a keymap with only the default layer active.
func New(layers []Layer) (*Keymap, error) {
	if len(layers) == 0 {
		return nil, errNoLayers
	}

	if len(layers) > keyboard.MaxLayers {
		return nil, fmt.Errorf("%w: %d > %d", errTooManyLayers, len(layers), keyboard.MaxLayers)
	}

	k := &Keymap{
		layers: layers,
		byName: make(map[string]keyboard.LayerID, len(layers)),
		active: 1 << DefaultLayer,
	}

	for i, layer := range layers {
		if _, ok := k.byName[layer.Name]; ok && layer.Name != "" {
			return nil, fmt.Errorf("%w: %q", errDuplicateLayer, layer.Name)
		}

		k.byName[layer.Name] = keyboard.LayerID(i)
	}

	return k, nil
}

// Len returns the number of layers.
func (k *Keymap) Len() int {
	return len(k.layers)
}

// Valid reports whether layer exists.
func (k *Keymap) Valid(layer keyboard.LayerID) bool {
	return int(layer) < len(k.layers)
}

// Activate turns layer on. Activating an active layer is a no-op.
func (k *Keymap) Activate(layer keyboard.LayerID) error {
	if !k.Valid(layer) {
		return fmt.Errorf("%w: %d", ErrInvalidLayer, layer)
	}

	k.active |= 1 << layer

	return nil
}

// Deactivate turns layer off. The default layer stays on.
func (k *Keymap) Deactivate(layer keyboard.LayerID) error {
	if !k.Valid(layer) {
		return fmt.Errorf("%w: %d", ErrInvalidLayer, layer)
	}

	if layer == DefaultLayer {
		return nil
	}

	k.active &^= 1 << layer

	return nil
}

// IsActive reports whether layer is on.
func (k *Keymap) IsActive(layer keyboard.LayerID) bool {
	return k.Valid(layer) && k.active&(1<<layer) != 0
}

// Highest returns the highest active layer.
func (k *Keymap) Highest() keyboard.LayerID {
	return keyboard.LayerID(bits.Len32(k.active) - 1)
}

// ActiveLayers lists active layers in ascending order.
func (k *Keymap) ActiveLayers() []keyboard.LayerID {
	out := make([]keyboard.LayerID, 0, bits.OnesCount32(k.active))

	for i := range k.layers {
		if k.active&(1<<i) != 0 {
			out = append(out, keyboard.LayerID(i))
		}
	}

	return out
}

// Names returns the layer names indexed by LayerID.
func (k *Keymap) Names() []string {
	out := make([]string, len(k.layers))
	for i, layer := range k.layers {
		out[i] = layer.Name
	}

	return out
}

// Binding returns the non-transparent binding of position on layer.
func (k *Keymap) Binding(layer keyboard.LayerID, position keyboard.Position) (keyboard.Binding, bool) {
	if !k.Valid(layer) {
		return keyboard.Binding{}, false
	}

	binding, ok := k.layers[layer].Bindings[position]
	if !ok || binding.Behavior == BehaviorTransparent {
		return keyboard.Binding{}, false
	}

	return binding, true
}
