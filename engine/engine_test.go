package engine

import (
	"testing"

	"github.com/wippyai/synapse/errors"
)

func TestCallable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       Callable
		wantErr bool
	}{
		{"import", Callable{ID: "a", Import: "mod", Attr: "run"}, false},
		{"code", Callable{ID: "a", Code: []byte("function run() {}"), Attr: "run"}, false},
		{"both", Callable{ID: "a", Import: "mod", Code: []byte("x"), Attr: "run"}, true},
		{"neither", Callable{ID: "a", Attr: "run"}, true},
		{"no attr", Callable{ID: "a", Import: "mod"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && errors.KindOf(err) != errors.KindInvalidInput {
				t.Errorf("Kind = %v, want invalid_input", errors.KindOf(err))
			}
		})
	}
}

func TestIsIdentifier(t *testing.T) {
	valid := []string{"run", "_x", "$", "addNumbers", "a1"}
	invalid := []string{"", "1a", "a-b", "a.b", "run()"}

	for _, s := range valid {
		if !IsIdentifier(s) {
			t.Errorf("IsIdentifier(%q) = false", s)
		}
	}
	for _, s := range invalid {
		if IsIdentifier(s) {
			t.Errorf("IsIdentifier(%q) = true", s)
		}
	}
}

func TestState(t *testing.T) {
	if StateAwaitingNative.String() != "awaiting_native" {
		t.Errorf("String() = %q", StateAwaitingNative.String())
	}
	if State(99).String() != "unknown" {
		t.Errorf("String() = %q", State(99).String())
	}
	if !StateCompleted.Terminal() || !StateFailed.Terminal() || StateInvoking.Terminal() {
		t.Error("Terminal mismatch")
	}
	if !StateConverting.InSlice() || !StateInvoking.InSlice() || StateAwaitingNative.InSlice() {
		t.Error("InSlice mismatch")
	}
}

func TestCall_Enter(t *testing.T) {
	var seen []State
	c := &Call{Observe: func(s State) { seen = append(seen, s) }}
	c.Enter(StateConverting)
	c.Enter(StateInvoking)

	if len(seen) != 2 || seen[0] != StateConverting || seen[1] != StateInvoking {
		t.Errorf("seen = %v", seen)
	}

	(&Call{}).Enter(StateQueued)
}
