// Package control implements the gRPC transport for the control service.
//
// It adapts engine status and emissions to protobuf messages and exposes a
// server that calls into a provided service interface.
package control
