// Package event implements the keyboard event bus.
//
// Raised events are appended to a FIFO queue and delivered to listeners in
// priority order, each event running to completion before the next one is
// delivered. Events raised from inside a listener are therefore delivered
// after every listener has seen the current event: a keycode raised while a
// position event is being processed reaches keycode listeners only after all
// position listeners returned.
//
// The bus is not safe for concurrent use. It is owned by the dispatch loop
// goroutine, which serializes every entry point.
package event
