package channel

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the logger event handlers use for unrouted events when no
// WithEventLogger option was given. It is a no-op logger by default.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger installs the package logger and returns the previous one.
// Passing nil restores the no-op logger. It is read on every unrouted event,
// so it applies to existing handlers too.
func SetLogger(l *zap.Logger) (prev *zap.Logger) {
	return logger.Swap(l)
}
