// Package keymap holds the layered keymap: the layer stack that behaviors
// activate and deactivate, binding resolution across active layers, and the
// Processor that turns physical position events into behavior invocations.
package keymap
