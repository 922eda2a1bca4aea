package resource

// Handle is an opaque reference to a value in a table.
// Handle 0 is reserved and always invalid.
//
// The low 24 bits select the slot and the high 8 bits carry the slot's
// generation, so a released handle does not resolve to a later value that
// reuses the same slot.
type Handle uint32

const (
	indexBits = 24
	indexMask = 1<<indexBits - 1
	maxSlots  = indexMask
)

func makeHandle(index uint32, gen uint8) Handle {
	return Handle(uint32(gen)<<indexBits | (index + 1))
}

func (h Handle) index() (uint32, bool) {
	i := uint32(h) & indexMask
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

func (h Handle) generation() uint8 {
	return uint8(uint32(h) >> indexBits)
}

// EventType identifies a table lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event represents a table lifecycle event.
type Event struct {
	Value  any
	Tag    string
	Handle Handle
	Type   EventType
}

// Observer receives notifications about table lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by stored values that need cleanup
// when the table is closed.
type Dropper interface {
	Drop()
}
