package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/samudaay/portal-chat/pkg/auth"
	"github.com/samudaay/portal-chat/pkg/model"
)

const (
	// TypingIdle is how long after the last keystroke a typing flag
	// clears itself.
	TypingIdle = 2 * time.Second

	// heartbeatEvery renews this client's entry; entries that stop being
	// renewed fall out of snapshots after LivenessWindow even when the
	// owner vanished without leaving.
	heartbeatEvery = 5 * time.Second

	// LivenessWindow is the reader-side staleness cutoff for entries.
	LivenessWindow = 15 * time.Second
)

// Broadcaster is the per-room ephemeral channel primitive: a current
// snapshot of members with their last-known payload, plus change fanout.
// Nothing behind it is persisted.
type Broadcaster interface {
	Set(ctx context.Context, roomID string, e model.PresenceEntry) error
	Remove(ctx context.Context, roomID, userID string) error
	Snapshot(ctx context.Context, roomID string) (model.PresenceSnapshot, error)
	Subscribe(roomID string) (<-chan model.PresenceSnapshot, func())
}

// Hub hands out presence channels, at most one per (room, user) per
// client.
type Hub struct {
	b Broadcaster
}

func NewHub(b Broadcaster) *Hub {
	return &Hub{b: b}
}

// Join publishes this user's presence into the room's channel and starts
// the keepalive. A reconnect after a drop is just a fresh Join.
func (h *Hub) Join(ctx context.Context, roomID string, user auth.Identity) (*Channel, error) {
	if user.ID == "" {
		return nil, model.ErrNoIdentity
	}

	ch := &Channel{
		hub:    h,
		roomID: roomID,
		entry: model.PresenceEntry{
			UserID:      user.ID,
			DisplayName: user.DisplayName,
		},
		stop: make(chan struct{}),
	}

	if err := ch.publish(ctx); err != nil {
		return nil, err
	}

	ch.changes, ch.unsubscribe = h.b.Subscribe(roomID)
	go ch.heartbeat()
	return ch, nil
}

// Channel is one client's live presence in one room. It owns the typing
// debounce timer and the keepalive; Leave releases both.
type Channel struct {
	hub    *Hub
	roomID string

	mu          sync.Mutex
	entry       model.PresenceEntry
	typingTimer *time.Timer
	left        bool

	changes     <-chan model.PresenceSnapshot
	unsubscribe func()
	stop        chan struct{}
}

// SetTyping updates the typing flag. Turning it on arms a debounce timer
// that clears the flag after TypingIdle of silence; every keystroke
// resets it, and turning it off (a send) cancels it.
func (c *Channel) SetTyping(ctx context.Context, typing bool) error {
	c.mu.Lock()
	if c.left {
		c.mu.Unlock()
		return nil
	}
	c.entry.IsTyping = typing

	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	if typing {
		c.typingTimer = time.AfterFunc(TypingIdle, c.typingExpired)
	}
	c.mu.Unlock()

	return c.publish(ctx)
}

func (c *Channel) typingExpired() {
	c.mu.Lock()
	if c.left || !c.entry.IsTyping {
		c.mu.Unlock()
		return
	}
	c.entry.IsTyping = false
	c.typingTimer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.publish(ctx); err != nil {
		log.Printf("Failed to clear typing state in room %s: %v", c.roomID, err)
	}
}

// Changes delivers the full room snapshot on every presence change.
// Consumers filter out their own id.
func (c *Channel) Changes() <-chan model.PresenceSnapshot {
	return c.changes
}

// Snapshot reads the current room presence on demand.
func (c *Channel) Snapshot(ctx context.Context) (model.PresenceSnapshot, error) {
	return c.hub.b.Snapshot(ctx, c.roomID)
}

// Leave removes this client's entry and releases the channel. Idempotent;
// must run on every room-view teardown path.
func (c *Channel) Leave(ctx context.Context) error {
	c.mu.Lock()
	if c.left {
		c.mu.Unlock()
		return nil
	}
	c.left = true
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.mu.Unlock()

	close(c.stop)
	c.unsubscribe()
	return c.hub.b.Remove(ctx, c.roomID, c.entry.UserID)
}

func (c *Channel) publish(ctx context.Context) error {
	c.mu.Lock()
	e := c.entry
	e.UpdatedAt = time.Now().UTC()
	c.entry = e
	c.mu.Unlock()
	return c.hub.b.Set(ctx, c.roomID, e)
}

func (c *Channel) heartbeat() {
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := c.publish(ctx); err != nil {
				log.Printf("Presence heartbeat failed in room %s: %v", c.roomID, err)
			}
			cancel()
		case <-c.stop:
			return
		}
	}
}

// Fresh filters a snapshot down to entries renewed within the liveness
// window, dropping ghosts left by abrupt disconnects.
func Fresh(s model.PresenceSnapshot, now time.Time) model.PresenceSnapshot {
	out := model.PresenceSnapshot{RoomID: s.RoomID}
	for _, e := range s.Entries {
		if now.Sub(e.UpdatedAt) <= LivenessWindow {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}
