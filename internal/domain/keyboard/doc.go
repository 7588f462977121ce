// Package keyboard contains the value types that flow through the key
// pipeline: physical positions, layers, keycodes, behavior bindings and the
// two event kinds (position changed, keycode changed).
package keyboard
