package asynclogger

import "sync/atomic"

var defaultLogger atomic.Pointer[Logger]

// SetDefault makes l the logger used by the package-level Logf. Passing nil
// turns Logf into a no-op. The caller still owns l and must Close it.
func SetDefault(l *Logger) {
	defaultLogger.Store(l)
}

// Default returns the logger set by SetDefault, or nil
func Default() *Logger {
	return defaultLogger.Load()
}

// Logf logs through the default logger with the caller's location
func Logf(level Level, format string, args ...any) {
	l := defaultLogger.Load()
	if l == nil || !l.Enabled(level) {
		return
	}
	l.Log(level, Caller(1), format, args...)
}
