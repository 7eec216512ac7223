package model

import "time"

// PresenceEntry is one member's ephemeral state in a room. Nothing here is
// persisted; an entry only exists while its owner keeps renewing it.
type PresenceEntry struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	IsTyping    bool      `json:"is_typing"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PresenceSnapshot is the full current state of a room's presence channel,
// delivered whole on every change rather than as a diff.
type PresenceSnapshot struct {
	RoomID  string          `json:"room_id"`
	Entries []PresenceEntry `json:"entries"`
}

// TypingOthers returns the members currently typing, excluding the viewer.
func (s PresenceSnapshot) TypingOthers(selfID string) []PresenceEntry {
	var out []PresenceEntry
	for _, e := range s.Entries {
		if e.IsTyping && e.UserID != selfID {
			out = append(out, e)
		}
	}
	return out
}
