package keymap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
)

var (
	// ErrInvalidBinding is returned for binding text that cannot be parsed.
	ErrInvalidBinding = errors.New("invalid binding")
	// ErrUnknownBehavior is returned for bindings naming an unregistered behavior.
	ErrUnknownBehavior = errors.New("unknown behavior")
)

// ParseBinding parses keymap notation:
//
//	&kp KEY_A     emit a keycode
//	&trans        fall through to the next active layer
//	&none         swallow the key
//	&osl nav      invoke behavior "osl" with layer "nav" (a name or an index)
//
// layerNames resolves layer names for non-keycode behaviors.
func ParseBinding(text string, layerNames map[string]keyboard.LayerID) (keyboard.Binding, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "&") || len(fields[0]) == 1 {
		return keyboard.Binding{}, fmt.Errorf("%w: %q", ErrInvalidBinding, text)
	}

	behavior := strings.TrimPrefix(fields[0], "&")
	args := fields[1:]

	switch behavior {
	case BehaviorTransparent, BehaviorNone:
		if len(args) != 0 {
			return keyboard.Binding{}, fmt.Errorf("%w: %q takes no parameter", ErrInvalidBinding, text)
		}

		return keyboard.Binding{Behavior: behavior}, nil
	case BehaviorKeyPress:
		if len(args) != 1 {
			return keyboard.Binding{}, fmt.Errorf("%w: %q needs one keycode", ErrInvalidBinding, text)
		}

		code, err := keyboard.ParseKeycode(args[0])
		if err != nil {
			return keyboard.Binding{}, fmt.Errorf("%w: %w", ErrInvalidBinding, err)
		}

		return keyboard.Binding{Behavior: behavior, Param: uint32(code)}, nil
	}

	if len(args) != 1 {
		return keyboard.Binding{}, fmt.Errorf("%w: %q needs one layer", ErrInvalidBinding, text)
	}

	if id, ok := layerNames[args[0]]; ok {
		return keyboard.Binding{Behavior: behavior, Param: uint32(id)}, nil
	}

	// Unknown layers parse; behaviors reject them at press time.
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return keyboard.Binding{}, fmt.Errorf("%w: %q: unknown layer %q", ErrInvalidBinding, text, args[0])
	}

	return keyboard.Binding{Behavior: behavior, Param: uint32(n)}, nil
}

// Build parses per-layer binding lists into layers. bindings[i][p] is the
// binding of position p on layer i. Empty strings are transparent.
// Behaviors other than the built-ins must be listed in behaviors.
func Build(names []string, bindings [][]string, behaviors map[string]bool) ([]Layer, error) {
	layerNames := make(map[string]keyboard.LayerID, len(names))
	for i, name := range names {
		layerNames[name] = keyboard.LayerID(i)
	}

	layers := make([]Layer, len(names))

	for i, name := range names {
		layers[i] = Layer{
			Name:     name,
			Bindings: make(map[keyboard.Position]keyboard.Binding),
		}

		if i >= len(bindings) {
			continue
		}

		for position, text := range bindings[i] {
			if strings.TrimSpace(text) == "" {
				continue
			}

			// Report an unknown behavior before complaining about its parameter.
			if behavior := behaviorName(text); behavior != "" && !isBuiltin(behavior) && !behaviors[behavior] {
				return nil, fmt.Errorf("layer %q position %d: %w: %q", name, position, ErrUnknownBehavior, behavior)
			}

			binding, err := ParseBinding(text, layerNames)
			if err != nil {
				return nil, fmt.Errorf("layer %q position %d: %w", name, position, err)
			}

			layers[i].Bindings[keyboard.Position(position)] = binding
		}
	}

	return layers, nil
}

// behaviorName returns the behavior named by binding text, or "" when the
// text does not start with one.
func behaviorName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "&") {
		return ""
	}

	return fields[0][1:]
}

// IsBuiltin reports whether name is a built-in behavior.
func IsBuiltin(name string) bool {
	return isBuiltin(name)
}

func isBuiltin(name string) bool {
	switch name {
	case BehaviorTransparent, BehaviorNone, BehaviorKeyPress:
		return true
	default:
		return false
	}
}
