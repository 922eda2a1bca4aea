package engine

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the fallback logger for the js and wasm backends. A backend
// built without WithLogger reads it once, in New. It is a no-op logger until
// SetLogger installs another.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger installs the fallback backend logger and returns the previous
// one. Passing nil restores the no-op logger. Backends already created keep
// the logger they were built with.
func SetLogger(l *zap.Logger) (prev *zap.Logger) {
	return logger.Swap(l)
}
