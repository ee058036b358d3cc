package events

import "time"

// Kind names an event variant. Kinds are namespaced by the direction of the
// event, user_input, assistant_response, assistant_speech, or turn_control.
type Kind string

// Event is the tagged variant delivered to a session's queue. Payload fields
// live on the concrete types; unknown kinds are ignored by consumers.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the kind tag and creation time shared by every event.
type Base struct {
	kind      Kind
	timestamp time.Time
}

// NewBase stamps an event with its kind and the current time.
func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

// Kind returns the event's variant tag.
func (b Base) Kind() Kind {
	return b.kind
}

// Timestamp returns when the event was created.
func (b Base) Timestamp() time.Time {
	return b.timestamp
}
