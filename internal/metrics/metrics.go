package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// One-shot layer metrics.
var (
	// ArmsTotal counts trigger presses that armed a layer, by behavior.
	ArmsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneshot_arms_total",
			Help: "Total one-shot layer armings by behavior",
		},
		[]string{"behavior"},
	)

	// DisarmsTotal counts disarms by behavior and reason.
	DisarmsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneshot_disarms_total",
			Help: "Total one-shot layer disarms by behavior and reason",
		},
		[]string{"behavior", "reason"},
	)

	// RejectedTotal counts trigger presses with an invalid target layer.
	RejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneshot_rejected_presses_total",
			Help: "Trigger presses rejected because the target layer is invalid",
		},
		[]string{"behavior"},
	)

	// Armed is 1 while a behavior holds its layer active.
	Armed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oneshot_armed",
			Help: "Whether a one-shot behavior is currently armed (0/1)",
		},
		[]string{"behavior"},
	)
)

// Pipeline metrics.
var (
	// EventsTotal counts events delivered by the bus, by stream.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyboard_events_total",
			Help: "Events delivered by the event bus by stream",
		},
		[]string{"stream"},
	)

	// EmissionsTotal counts keycode reports emitted, by direction.
	EmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyboard_emissions_total",
			Help: "Keycode reports emitted by direction (press/release)",
		},
		[]string{"direction"},
	)

	// LoopPanicsTotal counts recovered panics in the dispatch loop.
	LoopPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_loop_panics_total",
			Help: "Panics recovered by the dispatch loop",
		},
	)

	// LoopQueueDepth tracks pending commands in the dispatch loop.
	LoopQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_loop_queue_depth",
			Help: "Commands waiting in the dispatch loop queue",
		},
	)

	// ConfigReloadsTotal counts configuration reloads by status.
	ConfigReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_reloads_total",
			Help: "Configuration reloads by status (success/error)",
		},
		[]string{"status"},
	)
)

// Direction returns the emission label for a press flag.
func Direction(pressed bool) string {
	if pressed {
		return "press"
	}

	return "release"
}
