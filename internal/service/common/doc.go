// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client wrapper with timeouts for the
// control service and a process scan that keeps a second daemon from
// grabbing the same device.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
