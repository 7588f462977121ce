// Package version reports build metadata for oneshotd and oneshotctl.
//
// Version, Commit and BuildTime are set through -ldflags -X. When they are
// left at their defaults, Commit and BuildTime fall back to the VCS stamp the
// Go toolchain embeds in the binary.
package version
