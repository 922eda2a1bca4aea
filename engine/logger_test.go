package engine

import (
	"testing"

	"go.uber.org/zap"
)

func TestSetLogger(t *testing.T) {
	if Logger() == nil {
		t.Fatal("default logger should be a no-op logger, not nil")
	}

	l := zap.NewExample()
	prev := SetLogger(l)
	defer SetLogger(prev)

	if Logger() != l {
		t.Error("Logger did not return the installed logger")
	}
	if got := SetLogger(nil); got != l {
		t.Errorf("SetLogger returned %p, want %p", got, l)
	}
	if Logger() == nil || Logger() == l {
		t.Error("SetLogger(nil) should restore the no-op logger")
	}
}
