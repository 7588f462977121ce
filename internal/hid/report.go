package hid

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	"github.com/oshokin/oneshot-layer/internal/event"
	"github.com/oshokin/oneshot-layer/internal/logger"
	"github.com/oshokin/oneshot-layer/internal/metrics"
)

// DefaultHistorySize is the number of emissions kept by default.
const DefaultHistorySize = 256

// Emission is one keycode event sent to the host.
type Emission struct {
	// Keycode is the emitted key.
	Keycode keyboard.Keycode
	// Pressed is true for a key down.
	Pressed bool
	// Position is the physical key the keycode came from.
	Position keyboard.Position
	// Layer is the highest active layer at emission time.
	Layer keyboard.LayerID
	// Timestamp is the timestamp of the originating physical event.
	Timestamp time.Time
}

// LayerReader reports the highest active layer.
type LayerReader interface {
	Highest() keyboard.LayerID
}

// Sink receives every emission, e.g. a virtual output device.
type Sink interface {
	Emit(e Emission) error
}

// Report is the keycode listener that records emissions.
type Report struct {
	// layers stamps emissions with the highest active layer.
	layers LayerReader
	// pressed holds the keycodes currently down.
	pressed map[keyboard.Keycode]int
	// history is a ring of the last emissions.
	history []Emission
	// limit bounds history.
	limit int
	// sink is optional.
	sink Sink
	// log is captured at construction.
	log *zap.SugaredLogger
}

// Option configures a Report.
type Option func(*Report)

// WithHistorySize bounds the emission history. Non-positive values keep the default.
func WithHistorySize(n int) Option {
	return func(r *Report) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithSink forwards emissions to s.
func WithSink(s Sink) Option {
	return func(r *Report) {
		r.sink = s
	}
}

// NewReport creates an empty report.
func NewReport(ctx context.Context, layers LayerReader, opts ...Option) *Report {
	r := &Report{
		layers:  layers,
		pressed: make(map[keyboard.Keycode]int),
		limit:   DefaultHistorySize,
		log:     logger.FromContext(ctx).Named("hid"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// OnKeycodeChanged records the keycode event.
func (r *Report) OnKeycodeChanged(ev keyboard.KeycodeChanged) event.Propagation {
	if ev.Pressed {
		r.pressed[ev.Keycode]++
	} else if r.pressed[ev.Keycode] > 0 {
		r.pressed[ev.Keycode]--
		if r.pressed[ev.Keycode] == 0 {
			delete(r.pressed, ev.Keycode)
		}
	}

	e := Emission{
		Keycode:   ev.Keycode,
		Pressed:   ev.Pressed,
		Position:  ev.Position,
		Layer:     r.layers.Highest(),
		Timestamp: ev.Timestamp,
	}

	if len(r.history) == r.limit {
		r.history = slices.Delete(r.history, 0, 1)
	}

	r.history = append(r.history, e)

	metrics.EmissionsTotal.WithLabelValues(metrics.Direction(ev.Pressed)).Inc()
	r.log.Debugw("Emitted",
		"keycode", ev.Keycode.String(),
		"pressed", ev.Pressed,
		"position", ev.Position,
		"layer", e.Layer,
	)

	if r.sink != nil {
		if err := r.sink.Emit(e); err != nil {
			r.log.Warnw("Sink rejected emission", "keycode", ev.Keycode.String(), "error", err)
		}
	}

	return event.Bubble
}

// Pressed returns the keycodes currently down in ascending order.
func (r *Report) Pressed() []keyboard.Keycode {
	out := make([]keyboard.Keycode, 0, len(r.pressed))
	for code := range r.pressed {
		out = append(out, code)
	}

	slices.Sort(out)

	return out
}

// Emissions returns a copy of the emission history, oldest first.
func (r *Report) Emissions() []Emission {
	return slices.Clone(r.history)
}
