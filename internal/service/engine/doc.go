// Package engine assembles the keyboard pipeline from configuration and runs
// it on a single dispatch loop.
//
// Every input event, timer expiry, status query and reload is executed on
// the loop goroutine, so the layer stack, the behaviors and the output
// report are never touched concurrently.
package engine
