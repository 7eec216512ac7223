package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageTotalOrder(t *testing.T) {
	at := time.Now().Truncate(time.Millisecond)
	earlier := Message{ID: 2, CreatedAt: at.Add(-time.Millisecond)}
	a := Message{ID: 5, CreatedAt: at}
	b := Message{ID: 6, CreatedAt: at}

	assert.True(t, earlier.Before(a), "created_at decides first")
	assert.True(t, a.Before(b), "id breaks the tie")

	// Exactly one of a<b, b<a holds, even on a created_at tie.
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
}

func TestGroupReactions(t *testing.T) {
	rows := []Reaction{
		{MessageID: 1, UserID: "alice", Emoji: "👍"},
		{MessageID: 1, UserID: "bob", Emoji: "👍"},
		{MessageID: 1, UserID: "carol", Emoji: "🎉"},
	}

	groups := GroupReactions(rows, "bob")
	assert.Len(t, groups, 2)

	// Sorted by emoji for stable rendering.
	assert.Equal(t, "🎉", groups[0].Emoji)
	assert.Equal(t, 1, groups[0].Count)
	assert.False(t, groups[0].Reacted)

	assert.Equal(t, "👍", groups[1].Emoji)
	assert.Equal(t, 2, groups[1].Count)
	assert.ElementsMatch(t, []string{"alice", "bob"}, groups[1].Users)
	assert.True(t, groups[1].Reacted)

	assert.Empty(t, GroupReactions(nil, "bob"))
}

func TestTypingOthers(t *testing.T) {
	snap := PresenceSnapshot{
		RoomID: "r",
		Entries: []PresenceEntry{
			{UserID: "me", IsTyping: true},
			{UserID: "peer", IsTyping: true},
			{UserID: "idle", IsTyping: false},
		},
	}

	typing := snap.TypingOthers("me")
	assert.Len(t, typing, 1)
	assert.Equal(t, "peer", typing[0].UserID)
}
