package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with its stack. Deferred at the top
// of background goroutines (detached event writes, scheduled jobs) so one bad event
// or run cannot take the process down.
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "aggregate yesterday")
//	    ...
//	}()
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
