// Package oneshot implements the one-shot layer behavior.
//
// A Controller arms its target layer when the trigger binding is pressed and
// disarms it on the first of: timer expiry, or the event selected by the
// cancel policy. Release of the trigger never disarms. Re-pressing the
// trigger while armed disarms first, so one Controller never holds more than
// one layer.
//
// Controllers are not safe for concurrent use; every entry point, including
// timer expiries, must be delivered through the same dispatch loop.
package oneshot
