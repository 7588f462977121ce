// Package logger wraps zap for the daemon and the control CLI:
//   - a global sugared logger writing console output to stderr,
//   - context helpers (ToContext/FromContext/WithName),
//   - level parsing and an atomic level shared by every derived logger.
//
// Services accept a context and extract the logger from it. Keyboard pipeline
// components capture a logger at construction time because their callbacks
// run without a context.
package logger
