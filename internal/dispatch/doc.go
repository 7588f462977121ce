// Package dispatch provides the single-consumer loop that serializes every
// callback into the keyboard pipeline, and a one-shot Timer whose expiry is
// delivered through that loop.
//
// Physical events, timer expiries, control requests and reloads are all
// posted to the same Loop, so no two callbacks into the pipeline ever run
// concurrently and pipeline state needs no locks.
package dispatch
