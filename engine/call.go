package engine

import (
	"context"
	"regexp"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/config"
	"github.com/wippyai/synapse/errors"
)

// Backend executes calls in an embedded runtime. Invoke is called by the
// dispatcher's single consumer, one call at a time; it performs the
// Converting and Invoking states and returns once the synchronous part of
// the call is over.
type Backend interface {
	// Name identifies the backend in logs and HostRef owners.
	Name() string

	// Start brings the embedded runtime up. A failure is fatal for the
	// dispatcher that owns the backend.
	Start(ctx context.Context) error

	// Invoke resolves the callable, converts the arguments and runs the
	// call. A result that is not ready yet is returned as a pending
	// Invocation whose channel delivers exactly one Outcome.
	Invoke(ctx context.Context, call *Call) (Invocation, error)

	// Release drops a HostRef minted by this backend.
	Release(ref clv.Ref) bool

	// Close stops the runtime. Pending invocations are abandoned.
	Close(ctx context.Context) error
}

// Callable names the code a call runs. Exactly one of Import and Code is
// set: Import names a module to require, Code is inline source compiled as
// a module named after ID.
type Callable struct {
	ID     string
	Import string
	Code   []byte
	Attr   string
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Validate checks that exactly one source is set and the attribute is
// non-empty.
func (c Callable) Validate() error {
	hasImport := c.Import != ""
	hasCode := len(c.Code) > 0
	switch {
	case hasImport && hasCode:
		return errors.InvalidInput(errors.PhaseResolve, "callable sets both import and code")
	case !hasImport && !hasCode:
		return errors.InvalidInput(errors.PhaseResolve, "callable sets neither import nor code")
	case c.Attr == "":
		return errors.InvalidInput(errors.PhaseResolve, "callable attribute is empty")
	}
	return nil
}

// IsIdentifier reports whether attr can be referenced as a top-level
// declaration of inline source.
func IsIdentifier(attr string) bool {
	return identRe.MatchString(attr)
}

// Call is one request to a backend.
type Call struct {
	// Config is appended as the final positional argument when non-nil.
	Config *config.Config

	// Observe receives every state the call enters. The dispatcher sets it;
	// backends report progress through Enter.
	Observe func(State)

	Callable Callable
	Args     []clv.Value
}

// Enter records a state transition.
func (c *Call) Enter(s State) {
	if c.Observe != nil {
		c.Observe(s)
	}
}

// Invocation is the synchronous result of Backend.Invoke. When Pending is
// nil the call completed and Value holds the result.
type Invocation struct {
	Pending <-chan Outcome
	Value   clv.Value
}

// Ready returns a completed invocation.
func Ready(v clv.Value) Invocation {
	return Invocation{Value: v}
}

// Outcome is the single resolution of a pending invocation.
type Outcome struct {
	Err   error
	Value clv.Value
}
