// Package daemon runs oneshotd: it loads settings, builds the engine and
// wires it to the input device, the gRPC control service, the monitoring
// endpoints, the status file and the settings watcher.
package daemon
