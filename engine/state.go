package engine

// State is a call's position in its lifecycle.
//
//	Queued -> Converting -> Invoking -> AwaitingNative -> Completed
//	                  \          \              \
//	                   +----------+--------------+----> Failed
//
// Converting and Invoking run on the backend's owner goroutine and never
// overlap between calls. AwaitingNative may overlap freely.
type State uint8

const (
	StateQueued State = iota
	StateConverting
	StateInvoking
	StateAwaitingNative
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateQueued:         "queued",
	StateConverting:     "converting",
	StateInvoking:       "invoking",
	StateAwaitingNative: "awaiting_native",
	StateCompleted:      "completed",
	StateFailed:         "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether s is Completed or Failed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// InSlice reports whether s belongs to the exclusive synchronous part of a
// call.
func (s State) InSlice() bool {
	return s == StateConverting || s == StateInvoking
}
