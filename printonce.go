package syncplus

import (
	"fmt"
	"log/slog"
	"sync"
)

var (
	// Global map to track logged messages
	loggedMessages sync.Map
)

// LogOnce logs msg as a warning only once during the process lifetime.
// Returns true if the message was logged, false if it was already logged before.
func LogOnce(logger *slog.Logger, msg string, args ...any) bool {
	key := msg + fmt.Sprint(args...)
	if _, loaded := loggedMessages.LoadOrStore(key, true); loaded {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(msg, args...)
	return true
}

// ResetLogOnce clears all tracked messages (mainly for testing)
func ResetLogOnce() {
	loggedMessages.Range(func(key, _ any) bool {
		loggedMessages.Delete(key)
		return true
	})
}
