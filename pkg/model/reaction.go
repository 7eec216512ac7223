package model

import (
	"sort"
	"time"
)

// Reaction is a per-user emoji tag on a message. The composite primary key
// makes re-adding the same emoji a no-op at the table level.
type Reaction struct {
	MessageID int64     `gorm:"primaryKey" json:"message_id"`
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	Emoji     string    `gorm:"primaryKey;size:16" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionGroup is the per-emoji aggregate a rendered message shows:
// count, who reacted, and whether the viewer is among them.
type ReactionGroup struct {
	Emoji   string   `json:"emoji"`
	Count   int      `json:"count"`
	Users   []string `json:"users"`
	Reacted bool     `json:"reacted"`
}

// GroupReactions folds a message's reactions into per-emoji aggregates for
// one viewer. Groups come back sorted by emoji for stable rendering.
func GroupReactions(reactions []Reaction, viewerID string) []ReactionGroup {
	byEmoji := make(map[string]*ReactionGroup)
	for _, r := range reactions {
		g, ok := byEmoji[r.Emoji]
		if !ok {
			g = &ReactionGroup{Emoji: r.Emoji}
			byEmoji[r.Emoji] = g
		}
		g.Count++
		g.Users = append(g.Users, r.UserID)
		if r.UserID == viewerID {
			g.Reacted = true
		}
	}

	groups := make([]ReactionGroup, 0, len(byEmoji))
	for _, g := range byEmoji {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Emoji < groups[j].Emoji })
	return groups
}
