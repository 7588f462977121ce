// Package metrics declares the Prometheus metrics of the layer daemon.
// Metrics are registered on the default registry and exposed by oneshotd
// on metrics_addr when configured.
package metrics
