package oneshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
)

// errMalformedStatus is returned when a generic map does not describe a Status.
var errMalformedStatus = errors.New("malformed status")

// AsMap renders the status as a generic map whose values are limited to
// strings, float64, bools, slices and nested maps, the value space of
// google.protobuf.Struct.
func (s *Status) AsMap() map[string]any {
	layers := make([]any, 0, len(s.ActiveLayers))
	for _, id := range s.ActiveLayers {
		layers = append(layers, float64(id))
	}

	names := make([]any, 0, len(s.LayerNames))
	for _, name := range s.LayerNames {
		names = append(names, name)
	}

	behaviors := make([]any, 0, len(s.Behaviors))
	for _, b := range s.Behaviors {
		behaviors = append(behaviors, map[string]any{
			"name":            b.Name,
			"cancel_policy":   b.Policy.String(),
			"timeout":         b.Timeout.String(),
			"active":          b.Active,
			"target_layer":    float64(b.TargetLayer),
			"source_position": float64(b.SourcePosition),
			"timer_pending":   b.TimerPending,
			"armed_at":        formatTime(b.ArmedAt),
			"deadline":        formatTime(b.Deadline),
		})
	}

	held := make([]any, 0, len(s.HeldKeys))
	for _, code := range s.HeldKeys {
		held = append(held, float64(code))
	}

	return map[string]any{
		"timestamp":     formatTime(s.Timestamp),
		"active_layers": layers,
		"layer_names":   names,
		"behaviors":     behaviors,
		"held_keys":     held,
	}
}

// StatusFromMap parses a map produced by AsMap.
//
//nolint:cyclop // Flat field-by-field decoding.
func StatusFromMap(m map[string]any) (*Status, error) {
	timestamp, err := parseTime(m["timestamp"])
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}

	status := &Status{Timestamp: timestamp}

	layers, _ := m["active_layers"].([]any)
	for _, raw := range layers {
		n, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: active layer %v", errMalformedStatus, raw)
		}

		status.ActiveLayers = append(status.ActiveLayers, keyboard.LayerID(n))
	}

	names, _ := m["layer_names"].([]any)
	for _, raw := range names {
		name, _ := raw.(string)
		status.LayerNames = append(status.LayerNames, name)
	}

	behaviors, _ := m["behaviors"].([]any)
	for _, raw := range behaviors {
		fields, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: behavior %v", errMalformedStatus, raw)
		}

		state, err := stateFromMap(fields)
		if err != nil {
			return nil, err
		}

		status.Behaviors = append(status.Behaviors, state)
	}

	held, _ := m["held_keys"].([]any)
	for _, raw := range held {
		n, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: held key %v", errMalformedStatus, raw)
		}

		status.HeldKeys = append(status.HeldKeys, keyboard.Keycode(n))
	}

	return status, nil
}

func stateFromMap(fields map[string]any) (State, error) {
	var state State

	state.Name, _ = fields["name"].(string)
	state.Active, _ = fields["active"].(bool)
	state.TimerPending, _ = fields["timer_pending"].(bool)

	if layer, ok := fields["target_layer"].(float64); ok {
		state.TargetLayer = keyboard.LayerID(layer)
	}

	if position, ok := fields["source_position"].(float64); ok {
		state.SourcePosition = keyboard.Position(position)
	}

	policy, _ := fields["cancel_policy"].(string)

	parsed, err := ParsePolicy(policy)
	if err != nil {
		return State{}, fmt.Errorf("behavior %q: %w", state.Name, err)
	}

	state.Policy = parsed

	if timeout, _ := fields["timeout"].(string); timeout != "" {
		if state.Timeout, err = time.ParseDuration(timeout); err != nil {
			return State{}, fmt.Errorf("behavior %q timeout: %w", state.Name, err)
		}
	}

	if state.ArmedAt, err = parseTime(fields["armed_at"]); err != nil {
		return State{}, fmt.Errorf("behavior %q armed_at: %w", state.Name, err)
	}

	if state.Deadline, err = parseTime(fields["deadline"]); err != nil {
		return State{}, fmt.Errorf("behavior %q deadline: %w", state.Name, err)
	}

	return state, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw any) (time.Time, error) {
	s, _ := raw.(string)
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, s)
}
