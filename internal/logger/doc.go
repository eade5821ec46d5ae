// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing utilities and convenience functions (Infof, ErrorKV, etc.).
//
// Every service of the controller accepts a context and extracts the logger
// from it, so command handling, scheduler ticks and store operations all log
// under the name of the binary that runs them.
package logger
