package model

import "time"

type RoomKind string

const (
	KindPrivate      RoomKind = "private"
	KindGroup        RoomKind = "group"
	KindAnnouncement RoomKind = "announcement"
)

// Room is a container of messages with a membership set. Private rooms
// have no stored display name; it is derived from the counterpart member
// at read time. PairKey is set only for private rooms and is unique, which
// is what guarantees at most one private room per unordered user pair.
type Room struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Kind            RoomKind  `gorm:"size:16;not null" json:"kind"`
	DisplayName     *string   `gorm:"size:100" json:"display_name,omitempty"`
	PairKey         *string   `gorm:"size:130;uniqueIndex" json:"-"`
	PinnedMessageID *int64    `json:"pinned_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	Members []Membership `gorm:"foreignKey:RoomID" json:"-"`
}

// Membership links a user to a room. LastReadAt is a forward-only
// watermark; it never regresses.
type Membership struct {
	RoomID      string    `gorm:"primaryKey;size:36" json:"room_id"`
	UserID      string    `gorm:"primaryKey;size:64" json:"user_id"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	LastReadAt  time.Time `json:"last_read_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoomView is a room annotated for one viewer: resolved display name and
// unread count relative to that viewer's watermark.
type RoomView struct {
	Room
	ResolvedName string `json:"name"`
	UnreadCount  int64  `json:"unread_count"`
}
