package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"
)

// Phase indicates where in a call the error occurred
type Phase string

const (
	PhaseConvert  Phase = "convert"  // CLV <-> native translation
	PhaseResolve  Phase = "resolve"  // module/attribute lookup
	PhaseInvoke   Phase = "invoke"   // synchronous invocation
	PhaseAwait    Phase = "await"    // native awaitable resolution
	PhaseChannel  Phase = "channel"  // message/event/token queues
	PhaseRegistry Phase = "registry" // workflow registry
	PhaseInit     Phase = "init"     // runtime/dispatcher startup
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseDispatch Phase = "dispatch" // queueing and reply delivery
)

// Kind categorizes the error
type Kind string

const (
	KindConversion     Kind = "conversion"
	KindLookup         Kind = "lookup"
	KindInvocation     Kind = "invocation"
	KindChannel        Kind = "channel"
	KindDuplicateID    Kind = "duplicate_id"
	KindInitialization Kind = "initialization"
	KindInvalidInput   Kind = "invalid_input"
	KindClosed         Kind = "closed"
)

// Class separates caller mistakes from bridge malfunctions.
type Class uint8

const (
	ClassInternal Class = iota
	ClassUser
)

func (c Class) String() string {
	if c == ClassUser {
		return "user"
	}
	return "internal"
}

// Error is the structured error type used throughout the bridge
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	GoType     string
	NativeType string
	Detail     string
	// Trace carries the embedded runtime's stack text, when it provided one.
	Trace string
	Path  []string
	Stack pkgerrors.StackTrace
	Class Class
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.Class.String())
	b.WriteString(": [")
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.NativeType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.NativeType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", native type ")
			b.WriteString(e.NativeType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("native type ")
			b.WriteString(e.NativeType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.NativeType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Format prints the trace and the captured stack with %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		_, _ = fmt.Fprint(s, e.Error())
		if s.Flag('+') {
			if e.Trace != "" {
				_, _ = fmt.Fprintf(s, "\n%s", e.Trace)
			}
			if len(e.Stack) > 0 {
				e.Stack.Format(s, verb)
			}
		}
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Kind must match; Phase is
// compared only when the target sets one.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Kind != e.Kind {
			return false
		}
		return t.Phase == "" || t.Phase == e.Phase
	}
	return false
}

// Sentinels for errors.Is checks by kind.
var (
	ErrConversion     = &Error{Kind: KindConversion}
	ErrLookup         = &Error{Kind: KindLookup}
	ErrInvocation     = &Error{Kind: KindInvocation}
	ErrChannel        = &Error{Kind: KindChannel}
	ErrDuplicateID    = &Error{Kind: KindDuplicateID}
	ErrInitialization = &Error{Kind: KindInitialization}
	ErrInvalidInput   = &Error{Kind: KindInvalidInput}
	ErrClosed         = &Error{Kind: KindClosed}
)

var stacks atomic.Bool

// EnableStacks turns capture-time stack traces on or off for errors built
// after the call.
func EnableStacks(on bool) {
	stacks.Store(on)
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// captureStack skips itself and its caller's frame.
func captureStack(skip int) pkgerrors.StackTrace {
	if !stacks.Load() {
		return nil
	}
	st := pkgerrors.New("").(stackTracer).StackTrace()
	if len(st) > skip+1 {
		return st[skip+1:]
	}
	return st
}

func newError(phase Phase, kind Kind, class Class, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Class:  class,
		Detail: detail,
		Stack:  captureStack(2),
	}
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder. Errors are internal unless User is called.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// NativeType sets the embedded runtime's type name
func (b *Builder) NativeType(t string) *Builder {
	b.err.NativeType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Trace sets the embedded runtime's stack text
func (b *Builder) Trace(trace string) *Builder {
	b.err.Trace = trace
	return b
}

// User marks the error as caused by caller input
func (b *Builder) User() *Builder {
	b.err.Class = ClassUser
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	err := b.err
	err.Stack = captureStack(1)
	return &err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a conversion error for a value of the wrong shape
func TypeMismatch(phase Phase, path []string, goType, nativeType string) *Error {
	err := newError(phase, KindConversion, ClassUser, "type mismatch")
	err.Path = path
	err.GoType = goType
	err.NativeType = nativeType
	return err
}

// Conversion creates a conversion error
func Conversion(path []string, detail string) *Error {
	err := newError(PhaseConvert, KindConversion, ClassUser, detail)
	err.Path = path
	return err
}

// InvalidEnum creates a conversion error for a string outside a closed vocabulary
func InvalidEnum(path []string, value string, enumType string) *Error {
	err := newError(PhaseConvert, KindConversion, ClassUser,
		fmt.Sprintf("invalid %s %q", enumType, value))
	err.Path = path
	err.Value = value
	return err
}

// FieldMissing creates a missing field error
func FieldMissing(path []string, fieldName string) *Error {
	err := newError(PhaseConvert, KindConversion, ClassUser,
		fmt.Sprintf("required field %q not found", fieldName))
	err.Path = path
	return err
}

// NotFound creates a lookup error
func NotFound(what, name string) *Error {
	return newError(PhaseResolve, KindLookup, ClassUser, fmt.Sprintf("%s %q not found", what, name))
}

// Invocation creates an error for an exception raised by embedded code
func Invocation(phase Phase, message, trace string) *Error {
	err := newError(phase, KindInvocation, ClassUser, message)
	err.Trace = trace
	return err
}

// Panic creates an internal invocation error from a recovered panic
func Panic(phase Phase, r any) *Error {
	detail := "unexpected panic without reason"
	switch v := r.(type) {
	case string:
		detail = "unexpected panic: " + v
	case error:
		detail = "unexpected panic: " + v.Error()
	case nil:
	default:
		detail = fmt.Sprintf("unexpected panic: %v", v)
	}
	err := newError(phase, KindInvocation, ClassInternal, detail)
	err.Value = r
	return err
}

// ChannelDisconnected creates an error for a send whose receiver is gone
func ChannelDisconnected(what string) *Error {
	return newError(PhaseChannel, KindChannel, ClassInternal, what+" disconnected")
}

// ChannelFull creates an error for a send into a full bounded queue
func ChannelFull(what string) *Error {
	return newError(PhaseChannel, KindChannel, ClassInternal, what+" full")
}

// ChannelThrottled creates an error for a send rejected by the rate limiter
func ChannelThrottled(what string) *Error {
	return newError(PhaseChannel, KindChannel, ClassUser, what+" throttled")
}

// DuplicateID creates a registry collision error
func DuplicateID(id string) *Error {
	err := newError(PhaseRegistry, KindDuplicateID, ClassUser,
		fmt.Sprintf("workflow with id %q already exists", id))
	err.Value = id
	return err
}

// Initialization creates a fatal startup error
func Initialization(detail string, cause error) *Error {
	err := newError(PhaseInit, KindInitialization, ClassInternal, detail)
	err.Cause = cause
	return err
}

// NotInitialized creates an initialization error for a component used before Init
func NotInitialized(component string) *Error {
	return newError(PhaseInit, KindInitialization, ClassUser, fmt.Sprintf("%s not initialized", component))
}

// Closed creates an error for use after shutdown
func Closed(component string) *Error {
	return newError(PhaseDispatch, KindClosed, ClassInternal, fmt.Sprintf("%s closed", component))
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return newError(phase, KindInvalidInput, ClassUser, detail)
}

// Internal creates an internal error of the given kind wrapping cause
func Internal(phase Phase, kind Kind, detail string, cause error) *Error {
	err := newError(phase, kind, ClassInternal, detail)
	err.Cause = cause
	return err
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	err := newError(phase, kind, ClassInternal, detail)
	err.Cause = cause
	return err
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsUser reports whether err was caused by caller input.
func IsUser(err error) bool {
	e, ok := As(err)
	return ok && e.Class == ClassUser
}

// WithPath returns a copy of err with prefix prepended to its path. Non
// *Error values are returned unchanged.
func WithPath(err error, prefix ...string) error {
	e, ok := err.(*Error)
	if !ok || len(prefix) == 0 {
		return err
	}
	cp := *e
	cp.Path = append(append([]string{}, prefix...), e.Path...)
	return &cp
}
