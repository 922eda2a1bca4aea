package channel

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/synapse/errors"
)

// Event is an event observed by the host.
type Event struct {
	Type  EventType
	State EventState
}

// EventHandler receives fire-and-forget events from embedded code. With a
// sender the events are queued for the host; without one they are logged.
type EventHandler struct {
	events chan Event
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// EventOption configures an EventHandler.
type EventOption func(*EventHandler)

// WithEventLogger sets the logger used for unrouted events. Defaults to
// the package Logger.
func WithEventLogger(l *zap.Logger) EventOption {
	return func(h *EventHandler) {
		h.logger = l
	}
}

// NewEventHandler creates an event handler whose sender queue holds
// capacity events. A capacity of zero registers no sender and every event
// is logged instead.
func NewEventHandler(capacity int, opts ...EventOption) *EventHandler {
	h := &EventHandler{}
	if capacity > 0 {
		h.events = make(chan Event, capacity)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HasSender reports whether events are queued for the host.
func (h *EventHandler) HasSender() bool {
	return h.events != nil
}

// HandleEvent forwards an event. The event type argument overrides any
// type carried in state.
func (h *EventHandler) HandleEvent(et EventType, state EventState) error {
	if _, err := ParseEventType(string(et)); err != nil {
		return err
	}
	state.EventType = et

	if h.events == nil {
		h.log().Info("event",
			zap.String("event_type", string(et)),
			zap.Float64("timestamp", state.Timestamp),
			zap.String("payload", state.Payload),
			zap.String("file", state.File),
			zap.String("doc_source", state.DocSource),
		)
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return errors.ChannelDisconnected("event queue")
	}
	select {
	case h.events <- Event{Type: et, State: state}:
		return nil
	default:
		return errors.ChannelFull("event queue")
	}
}

// Receive polls the next queued event.
func (h *EventHandler) Receive() (Event, RecvStatus) {
	if h.events == nil {
		return Event{}, Disconnected
	}
	select {
	case e, ok := <-h.events:
		if !ok {
			return Event{}, Disconnected
		}
		return e, Received
	default:
		return Event{}, Empty
	}
}

// Close stops accepting events. Queued events can still be received.
func (h *EventHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	if h.events != nil {
		close(h.events)
	}
}

func (h *EventHandler) log() *zap.Logger {
	if h.logger != nil {
		return h.logger
	}
	return Logger()
}
