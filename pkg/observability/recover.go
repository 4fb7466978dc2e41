package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic must be deferred directly. It swallows a panic at a background
// task root and logs the value with the goroutine stack.
//
//	defer observability.RecoverPanic(logger, "stale cache sweep")
func RecoverPanic(logger *Logger, task string) {
	r := recover()
	if r == nil {
		return
	}
	logger.WithFields(map[string]interface{}{
		"task":  task,
		"panic": fmt.Sprint(r),
		"stack": string(debug.Stack()),
	}).Error("Background task panicked")
}
