package channel

import (
	"strconv"

	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/errors"
)

// EventType is the closed vocabulary of events emitted by embedded code.
type EventType string

const (
	EventGraph       EventType = "Graph"
	EventVector      EventType = "Vector"
	EventQueryResult EventType = "QueryResult"
	EventSuccess     EventType = "Success"
	EventFailure     EventType = "Failure"
)

// EventTypes lists every valid event type.
var EventTypes = []EventType{EventGraph, EventVector, EventQueryResult, EventSuccess, EventFailure}

// ParseEventType maps a boundary string to an EventType. Matching is
// case-sensitive and unknown strings are rejected.
func ParseEventType(s string) (EventType, error) {
	for _, t := range EventTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errors.InvalidEnum(nil, s, "event type")
}

// MessageType is the closed vocabulary of control messages.
type MessageType string

const (
	MessageStart   MessageType = "Start"
	MessageStop    MessageType = "Stop"
	MessagePause   MessageType = "Pause"
	MessageResume  MessageType = "Resume"
	MessageRestart MessageType = "Restart"
	MessageStatus  MessageType = "Status"
	MessageMetrics MessageType = "Metrics"
)

// MessageTypes lists every valid message type.
var MessageTypes = []MessageType{
	MessageStart, MessageStop, MessagePause, MessageResume,
	MessageRestart, MessageStatus, MessageMetrics,
}

// ParseMessageType maps a boundary string to a MessageType. Matching is
// case-sensitive and unknown strings are rejected.
func ParseMessageType(s string) (MessageType, error) {
	for _, t := range MessageTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errors.InvalidEnum(nil, s, "message type")
}

// EventState is the payload of an event.
type EventState struct {
	EventType EventType
	Payload   string
	File      string
	DocSource string
	Timestamp float64
}

// Value converts s to its boundary object.
func (s EventState) Value() clv.Value {
	obj := clv.NewObject()
	obj.Insert("event_type", clv.String(string(s.EventType)))
	obj.Insert("timestamp", clv.Float(s.Timestamp))
	obj.Insert("payload", clv.String(s.Payload))
	obj.Insert("file", clv.String(s.File))
	obj.Insert("doc_source", clv.String(s.DocSource))
	return clv.ObjectOf(obj)
}

// EventStateFromValue reads an event state object. event_type, file and
// doc_source may be absent; timestamp and payload are required.
func EventStateFromValue(v clv.Value) (EventState, error) {
	obj, err := v.AsObject()
	if err != nil {
		return EventState{}, errors.WithPath(err, "event_data")
	}
	var s EventState
	if raw, ok, err := optionalString(obj, "event_type"); err != nil {
		return EventState{}, err
	} else if ok {
		if s.EventType, err = ParseEventType(raw); err != nil {
			return EventState{}, errors.WithPath(err, "event_type")
		}
	}
	if s.Timestamp, err = requiredFloat(obj, "timestamp"); err != nil {
		return EventState{}, err
	}
	if s.Payload, err = requiredString(obj, "payload"); err != nil {
		return EventState{}, err
	}
	if s.File, _, err = optionalString(obj, "file"); err != nil {
		return EventState{}, err
	}
	if s.DocSource, _, err = optionalString(obj, "doc_source"); err != nil {
		return EventState{}, err
	}
	return s, nil
}

// MessageState is the payload of a control message.
type MessageState struct {
	MessageType MessageType
	Payload     string
	Timestamp   float64
}

// Value converts s to its boundary object.
func (s MessageState) Value() clv.Value {
	obj := clv.NewObject()
	obj.Insert("message_type", clv.String(string(s.MessageType)))
	obj.Insert("timestamp", clv.Float(s.Timestamp))
	obj.Insert("payload", clv.String(s.Payload))
	return clv.ObjectOf(obj)
}

// MessageStateFromValue reads a message state object. message_type may be
// absent; timestamp and payload are required.
func MessageStateFromValue(v clv.Value) (MessageState, error) {
	obj, err := v.AsObject()
	if err != nil {
		return MessageState{}, errors.WithPath(err, "message_data")
	}
	var s MessageState
	if raw, ok, err := optionalString(obj, "message_type"); err != nil {
		return MessageState{}, err
	} else if ok {
		if s.MessageType, err = ParseMessageType(raw); err != nil {
			return MessageState{}, errors.WithPath(err, "message_type")
		}
	}
	if s.Timestamp, err = requiredFloat(obj, "timestamp"); err != nil {
		return MessageState{}, err
	}
	if s.Payload, err = requiredString(obj, "payload"); err != nil {
		return MessageState{}, err
	}
	return s, nil
}

// IngestedTokens is a batch of tokens pushed from the host to embedded code.
type IngestedTokens struct {
	IsTokenStream *bool
	File          string
	Data          []string
}

// Value converts t to its boundary object. Absent optional fields are null.
func (t IngestedTokens) Value() clv.Value {
	obj := clv.NewObject()
	if t.Data == nil {
		obj.Insert("data", clv.Null())
	} else {
		items := make([]clv.Value, len(t.Data))
		for i, s := range t.Data {
			items[i] = clv.String(s)
		}
		obj.Insert("data", clv.Array(items...))
	}
	obj.Insert("file", clv.String(t.File))
	if t.IsTokenStream == nil {
		obj.Insert("is_token_stream", clv.Null())
	} else {
		obj.Insert("is_token_stream", clv.Bool(*t.IsTokenStream))
	}
	return clv.ObjectOf(obj)
}

// IngestedTokensFromValue reads a token batch object.
func IngestedTokensFromValue(v clv.Value) (IngestedTokens, error) {
	obj, err := v.AsObject()
	if err != nil {
		return IngestedTokens{}, errors.WithPath(err, "tokens")
	}
	var t IngestedTokens
	if t.File, err = requiredString(obj, "file"); err != nil {
		return IngestedTokens{}, err
	}
	if data, ok := obj.Get("data"); ok && !data.IsNull() {
		items, err := data.AsArray()
		if err != nil {
			return IngestedTokens{}, errors.WithPath(err, "data")
		}
		t.Data = make([]string, len(items))
		for i, item := range items {
			if t.Data[i], err = item.AsString(); err != nil {
				return IngestedTokens{}, errors.WithPath(err, "data", strconv.Itoa(i))
			}
		}
	}
	if flag, ok := obj.Get("is_token_stream"); ok && !flag.IsNull() {
		b, err := flag.AsBool()
		if err != nil {
			return IngestedTokens{}, errors.WithPath(err, "is_token_stream")
		}
		t.IsTokenStream = &b
	}
	return t, nil
}

func requiredString(obj *clv.Object, key string) (string, error) {
	v, ok := obj.Get(key)
	if !ok {
		return "", errors.FieldMissing(nil, key)
	}
	s, err := v.AsString()
	if err != nil {
		return "", errors.WithPath(err, key)
	}
	return s, nil
}

func optionalString(obj *clv.Object, key string) (string, bool, error) {
	v, ok := obj.Get(key)
	if !ok || v.IsNull() {
		return "", false, nil
	}
	s, err := v.AsString()
	if err != nil {
		return "", false, errors.WithPath(err, key)
	}
	return s, true, nil
}

func requiredFloat(obj *clv.Object, key string) (float64, error) {
	v, ok := obj.Get(key)
	if !ok {
		return 0, errors.FieldMissing(nil, key)
	}
	f, err := v.AsFloat()
	if err != nil {
		return 0, errors.WithPath(err, key)
	}
	return f, nil
}
