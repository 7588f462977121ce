// Package hid is the output end of the pipeline: it keeps the set of pressed
// keycodes and a bounded history of emitted key events.
package hid
