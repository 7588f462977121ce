// Package monitor serves the daemon's HTTP endpoints: Prometheus metrics,
// a JSON status document and liveness.
package monitor
