// Package ctl implements oneshotctl: it talks to a running daemon over the
// control service to show state, inject key events and list emissions.
package ctl
