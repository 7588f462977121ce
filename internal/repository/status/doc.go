// Package status persists the daemon Status.
//
// The FileRepository stores and loads the status as protobuf JSON on disk so
// status bars and scripts can show the current layer without talking gRPC.
package status
