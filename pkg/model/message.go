package model

import "time"

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
)

// Message is an immutable unit of content within one room. The ID is a
// snowflake, so ordering by ID alone matches (created_at, id) ordering.
type Message struct {
	ID        int64       `json:"id"`
	RoomID    string      `json:"room_id"`
	SenderID  string      `json:"sender_id"`
	Content   string      `json:"content,omitempty"`
	Type      MessageType `json:"type"`
	ImageRef  string      `json:"image_ref,omitempty"`
	FileName  string      `json:"file_name,omitempty"`
	FileSize  int64       `json:"file_size,omitempty"`
	ReplyToID int64       `json:"reply_to_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Before reports whether m precedes other in the room's total order.
// created_at decides, the snowflake id breaks same-millisecond ties.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// ReplyPreview is the lazily resolved target of a reply. An orphaned
// reference renders as unavailable instead of failing the fetch.
type ReplyPreview struct {
	Available bool     `json:"available"`
	Message   *Message `json:"message,omitempty"`
}
