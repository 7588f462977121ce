package oneshot

import (
	"time"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
)

// DisarmReason records why an armed layer was released.
type DisarmReason string

const (
	// ReasonTimeout is used when the timer expired.
	ReasonTimeout DisarmReason = "timeout"
	// ReasonForeignPress is used when another physical key was pressed.
	ReasonForeignPress DisarmReason = "foreign_press"
	// ReasonTranslatedPress is used when a translated key press consumed the layer.
	ReasonTranslatedPress DisarmReason = "translated_press"
	// ReasonRearm is used when the trigger was pressed again while armed.
	ReasonRearm DisarmReason = "rearm"
	// ReasonReset is used when the pipeline is torn down or reloaded.
	ReasonReset DisarmReason = "reset"
)

// State is a snapshot of one behavior instance.
type State struct {
	// Name is the configured behavior name.
	Name string
	// Policy is the configured cancel policy.
	Policy Policy
	// Timeout is the configured timeout, zero when disabled.
	Timeout time.Duration
	// Active is true between arm and disarm.
	Active bool
	// TargetLayer is the layer selected by the trigger binding.
	TargetLayer keyboard.LayerID
	// SourcePosition is the physical key that armed the layer.
	SourcePosition keyboard.Position
	// TimerPending is true while a timeout is scheduled.
	TimerPending bool
	// ArmedAt is when the layer was armed. Zero when never armed.
	ArmedAt time.Time
	// Deadline is when the pending timeout fires. Zero without a timer.
	Deadline time.Time
}

// Status is a daemon-wide snapshot: active layers and every behavior instance.
type Status struct {
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time
	// ActiveLayers lists the active layers in ascending order.
	ActiveLayers []keyboard.LayerID
	// LayerNames maps layer IDs to their configured names.
	LayerNames []string
	// Behaviors holds one entry per configured one-shot behavior.
	Behaviors []State
	// HeldKeys lists the keycodes currently reported down, in ascending order.
	HeldKeys []keyboard.Keycode
}

// Clone returns a deep copy of the status.
func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.ActiveLayers = append([]keyboard.LayerID(nil), s.ActiveLayers...)
	cloned.LayerNames = append([]string(nil), s.LayerNames...)
	cloned.Behaviors = append([]State(nil), s.Behaviors...)
	cloned.HeldKeys = append([]keyboard.Keycode(nil), s.HeldKeys...)

	return &cloned
}

// Armed returns the behaviors that are currently active.
func (s *Status) Armed() []State {
	var armed []State

	for _, b := range s.Behaviors {
		if b.Active {
			armed = append(armed, b)
		}
	}

	return armed
}
