// Package pb defines the oneshot.v1.ControlService gRPC service.
//
// The service is described by hand over protobuf well-known types
// (Struct, ListValue, UInt32Value, Empty), so no generated code is needed.
// Status and emission payloads are converted with the helpers in convert.go.
package pb
