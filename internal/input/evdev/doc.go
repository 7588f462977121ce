// Package evdev reads key events from a Linux input device and submits them
// to the engine as physical position events.
package evdev
