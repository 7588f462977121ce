package pb

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/hid"
)

// errMalformedEmission is returned for list entries that are not emissions.
var errMalformedEmission = errors.New("malformed emission")

// StatusToProto converts a status into a protobuf Struct.
func StatusToProto(s *domain.Status) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}

	return out, nil
}

// StatusFromProto converts a protobuf Struct back into a status.
func StatusFromProto(s *structpb.Struct) (*domain.Status, error) {
	out, err := domain.StatusFromMap(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	return out, nil
}

// EmissionsToProto converts emissions into a protobuf ListValue.
func EmissionsToProto(emissions []hid.Emission) (*structpb.ListValue, error) {
	values := make([]any, 0, len(emissions))

	for _, e := range emissions {
		var timestamp string
		if !e.Timestamp.IsZero() {
			timestamp = e.Timestamp.UTC().Format(time.RFC3339Nano)
		}

		values = append(values, map[string]any{
			"keycode":   float64(e.Keycode),
			"key":       e.Keycode.String(),
			"pressed":   e.Pressed,
			"position":  float64(e.Position),
			"layer":     float64(e.Layer),
			"timestamp": timestamp,
		})
	}

	out, err := structpb.NewList(values)
	if err != nil {
		return nil, fmt.Errorf("encode emissions: %w", err)
	}

	return out, nil
}

// EmissionsFromProto converts a protobuf ListValue back into emissions.
func EmissionsFromProto(list *structpb.ListValue) ([]hid.Emission, error) {
	out := make([]hid.Emission, 0, len(list.GetValues()))

	for _, value := range list.GetValues() {
		fields := value.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("%w: %v", errMalformedEmission, value)
		}

		e := hid.Emission{
			Keycode:  keyboard.Keycode(fields["keycode"].GetNumberValue()),
			Pressed:  fields["pressed"].GetBoolValue(),
			Position: keyboard.Position(fields["position"].GetNumberValue()),
			Layer:    keyboard.LayerID(fields["layer"].GetNumberValue()),
		}

		if ts := fields["timestamp"].GetStringValue(); ts != "" {
			parsed, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, fmt.Errorf("%w: timestamp: %w", errMalformedEmission, err)
			}

			e.Timestamp = parsed
		}

		out = append(out, e)
	}

	return out, nil
}
