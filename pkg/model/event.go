package model

import "time"

type EventKind string

const (
	EventMessage  EventKind = "message"
	EventReaction EventKind = "reaction"
)

// Event is one entry on the durable store's change feed. Message events
// carry the full message. Reaction events carry ids only; consumers
// re-fetch the aggregate because reaction deltas are unordered relative
// to each other.
type Event struct {
	Kind      EventKind `json:"kind"`
	RoomID    string    `json:"room_id"`
	Message   *Message  `json:"message,omitempty"`
	MessageID int64     `json:"message_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
