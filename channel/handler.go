package channel

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/wippyai/synapse/errors"
)

// DefaultCapacity is the queue depth used when WithCapacity is not given.
const DefaultCapacity = 256

// RecvStatus is the outcome of a non-blocking receive.
type RecvStatus uint8

const (
	// Received means a value was returned.
	Received RecvStatus = iota
	// Empty means nothing is queued right now.
	Empty
	// Disconnected means the queue was closed and drained, or never enabled.
	Disconnected
)

func (s RecvStatus) String() string {
	switch s {
	case Received:
		return "received"
	case Empty:
		return "empty"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Endpoint selects which queues a Handler carries.
type Endpoint uint8

const (
	// Tokens carries IngestedTokens from the host to embedded code.
	Tokens Endpoint = 1 << iota
	// Inbound carries messages from the host to embedded code.
	Inbound
	// Outbound carries messages from embedded code to the host.
	Outbound

	AllEndpoints = Tokens | Inbound | Outbound
)

// Option configures a Handler.
type Option func(*handlerOptions)

type handlerOptions struct {
	limiter   *rate.Limiter
	capacity  int
	endpoints Endpoint
}

// WithCapacity sets the depth of every queue.
func WithCapacity(n int) Option {
	return func(o *handlerOptions) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithEndpoints restricts the handler to the given queues. Operations on a
// missing queue report Disconnected.
func WithEndpoints(e Endpoint) Option {
	return func(o *handlerOptions) {
		o.endpoints = e
	}
}

// WithThrottle rate-limits messages sent by embedded code to the host.
// Sends over the limit fail with a channel error.
func WithThrottle(l *rate.Limiter) Option {
	return func(o *handlerOptions) {
		o.limiter = l
	}
}

// Handler is the bidirectional message and token bus between the host and
// embedded code. Every copy of a configuration refers to the same Handler,
// so both sides observe the same queues.
//
// All operations are non-blocking and safe for concurrent use.
type Handler struct {
	tokens     chan IngestedTokens
	toEmbedded chan MessageState
	toHost     chan MessageState
	limiter    *rate.Limiter
	mu         sync.RWMutex
	closed     bool
}

// NewHandler creates a handler. By default all queues are enabled with
// DefaultCapacity.
func NewHandler(opts ...Option) *Handler {
	o := handlerOptions{capacity: DefaultCapacity, endpoints: AllEndpoints}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Handler{limiter: o.limiter}
	if o.endpoints&Tokens != 0 {
		h.tokens = make(chan IngestedTokens, o.capacity)
	}
	if o.endpoints&Inbound != 0 {
		h.toEmbedded = make(chan MessageState, o.capacity)
	}
	if o.endpoints&Outbound != 0 {
		h.toHost = make(chan MessageState, o.capacity)
	}
	return h
}

// SendTokens queues a token batch for embedded code.
func (h *Handler) SendTokens(t IngestedTokens) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed || h.tokens == nil {
		return errors.ChannelDisconnected("token queue")
	}
	select {
	case h.tokens <- t:
		return nil
	default:
		return errors.ChannelFull("token queue")
	}
}

// SendToEmbedded queues a message for embedded code.
func (h *Handler) SendToEmbedded(mt MessageType, state MessageState) error {
	state.MessageType = mt
	return h.send(h.toEmbedded, state, "inbound message queue", nil)
}

// SendInHost queues a message from embedded code for the host. It is
// subject to the handler's throttle.
func (h *Handler) SendInHost(mt MessageType, state MessageState) error {
	state.MessageType = mt
	return h.send(h.toHost, state, "outbound message queue", h.limiter)
}

func (h *Handler) send(ch chan MessageState, state MessageState, what string, limiter *rate.Limiter) error {
	if _, err := ParseMessageType(string(state.MessageType)); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed || ch == nil {
		return errors.ChannelDisconnected(what)
	}
	if limiter != nil && !limiter.Allow() {
		return errors.ChannelThrottled(what)
	}
	select {
	case ch <- state:
		return nil
	default:
		return errors.ChannelFull(what)
	}
}

// ReceiveTokens polls the token queue from the embedded side.
func (h *Handler) ReceiveTokens() (IngestedTokens, RecvStatus) {
	if h.tokens == nil {
		return IngestedTokens{}, Disconnected
	}
	select {
	case t, ok := <-h.tokens:
		if !ok {
			return IngestedTokens{}, Disconnected
		}
		return t, Received
	default:
		return IngestedTokens{}, Empty
	}
}

// ReceiveInEmbedded polls messages sent by the host.
func (h *Handler) ReceiveInEmbedded() (MessageState, RecvStatus) {
	return receive(h.toEmbedded)
}

// ReceiveInHost polls messages sent by embedded code.
func (h *Handler) ReceiveInHost() (MessageState, RecvStatus) {
	return receive(h.toHost)
}

func receive(ch chan MessageState) (MessageState, RecvStatus) {
	if ch == nil {
		return MessageState{}, Disconnected
	}
	select {
	case m, ok := <-ch:
		if !ok {
			return MessageState{}, Disconnected
		}
		return m, Received
	default:
		return MessageState{}, Empty
	}
}

// Closed reports whether Close has been called.
func (h *Handler) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Close tears down every queue. Queued values can still be received;
// afterwards receivers report Disconnected. Close is idempotent.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	if h.tokens != nil {
		close(h.tokens)
	}
	if h.toEmbedded != nil {
		close(h.toEmbedded)
	}
	if h.toHost != nil {
		close(h.toHost)
	}
}
