// Package oneshot contains the domain types of one-shot layer arming:
// the cancellation Policy, the immutable arming Config, the State snapshot
// of a single behavior instance, and the daemon-wide Status.
//
// A one-shot layer is armed by a trigger key, stays active for at most one
// translated key press (or a bounded time window) and then reverts.
package oneshot
