package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/samudaay/portal-chat/pkg/auth"
	"github.com/samudaay/portal-chat/pkg/model"
)

var (
	alice = auth.Identity{ID: "alice", DisplayName: "Alice"}
	bob   = auth.Identity{ID: "bob", DisplayName: "Bob"}
)

func entryFor(s model.PresenceSnapshot, userID string) *model.PresenceEntry {
	for i := range s.Entries {
		if s.Entries[i].UserID == userID {
			return &s.Entries[i]
		}
	}
	return nil
}

func TestJoinAndLeave(t *testing.T) {
	hub := NewHub(NewMemoryBroadcaster())
	ctx := context.Background()

	ch, err := hub.Join(ctx, "room", alice)
	assert.NoError(t, err)

	snap, err := ch.Snapshot(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, entryFor(snap, "alice"))

	assert.NoError(t, ch.Leave(ctx))
	snap, err = hub.b.Snapshot(ctx, "room")
	assert.NoError(t, err)
	assert.Nil(t, entryFor(snap, "alice"), "leave removes the entry immediately")

	// Redundant leave is safe.
	assert.NoError(t, ch.Leave(ctx))
}

func TestJoinRequiresIdentity(t *testing.T) {
	hub := NewHub(NewMemoryBroadcaster())
	_, err := hub.Join(context.Background(), "room", auth.Identity{})
	assert.ErrorIs(t, err, model.ErrNoIdentity)
}

func TestChangeDeliversFullSnapshot(t *testing.T) {
	hub := NewHub(NewMemoryBroadcaster())
	ctx := context.Background()

	chA, err := hub.Join(ctx, "room", alice)
	assert.NoError(t, err)
	defer chA.Leave(ctx)

	chB, err := hub.Join(ctx, "room", bob)
	assert.NoError(t, err)
	defer chB.Leave(ctx)

	assert.NoError(t, chB.SetTyping(ctx, true))

	// Drain to the latest snapshot; every delivery is the whole room
	// state, so the last one is sufficient.
	var last model.PresenceSnapshot
	deadline := time.After(time.Second)
	for {
		select {
		case snap := <-chA.Changes():
			last = snap
			if e := entryFor(last, "bob"); e != nil && e.IsTyping {
				assert.Len(t, last.Entries, 2)
				typing := last.TypingOthers("alice")
				assert.Len(t, typing, 1)
				assert.Equal(t, "Bob", typing[0].DisplayName)
				return
			}
		case <-deadline:
			t.Fatalf("never saw bob typing; last snapshot: %+v", last)
		}
	}
}

func TestTypingDebounceAutoClears(t *testing.T) {
	hub := NewHub(NewMemoryBroadcaster())
	ctx := context.Background()

	ch, err := hub.Join(ctx, "room", alice)
	assert.NoError(t, err)
	defer ch.Leave(ctx)

	assert.NoError(t, ch.SetTyping(ctx, true))

	snap, _ := ch.Snapshot(ctx)
	assert.True(t, entryFor(snap, "alice").IsTyping)

	// No further keystrokes; the debounce timer clears the flag.
	assert.Eventually(t, func() bool {
		snap, err := ch.Snapshot(ctx)
		return err == nil && !entryFor(snap, "alice").IsTyping
	}, TypingIdle+time.Second, 50*time.Millisecond)
}

func TestTypingCancelledOnSend(t *testing.T) {
	hub := NewHub(NewMemoryBroadcaster())
	ctx := context.Background()

	ch, err := hub.Join(ctx, "room", alice)
	assert.NoError(t, err)
	defer ch.Leave(ctx)

	assert.NoError(t, ch.SetTyping(ctx, true))
	// The send clears typing explicitly and cancels the timer.
	assert.NoError(t, ch.SetTyping(ctx, false))

	snap, _ := ch.Snapshot(ctx)
	assert.False(t, entryFor(snap, "alice").IsTyping)

	ch.mu.Lock()
	assert.Nil(t, ch.typingTimer, "no timer left armed after send")
	ch.mu.Unlock()
}

func TestLeaveCancelsTypingTimer(t *testing.T) {
	hub := NewHub(NewMemoryBroadcaster())
	ctx := context.Background()

	ch, err := hub.Join(ctx, "room", alice)
	assert.NoError(t, err)

	assert.NoError(t, ch.SetTyping(ctx, true))
	assert.NoError(t, ch.Leave(ctx))

	ch.mu.Lock()
	assert.Nil(t, ch.typingTimer)
	assert.True(t, ch.left)
	ch.mu.Unlock()

	// SetTyping after leave is a no-op, not a resurrection.
	assert.NoError(t, ch.SetTyping(ctx, true))
	snap, err := hub.b.Snapshot(ctx, "room")
	assert.NoError(t, err)
	assert.Nil(t, entryFor(snap, "alice"))
}

func TestFreshDropsStaleEntries(t *testing.T) {
	now := time.Now().UTC()
	snap := model.PresenceSnapshot{
		RoomID: "room",
		Entries: []model.PresenceEntry{
			{UserID: "live", UpdatedAt: now.Add(-time.Second)},
			{UserID: "ghost", IsTyping: true, UpdatedAt: now.Add(-LivenessWindow - time.Second)},
		},
	}

	fresh := Fresh(snap, now)
	assert.Len(t, fresh.Entries, 1)
	assert.Equal(t, "live", fresh.Entries[0].UserID)
}

func TestReconnectIsFreshJoin(t *testing.T) {
	hub := NewHub(NewMemoryBroadcaster())
	ctx := context.Background()

	ch1, err := hub.Join(ctx, "room", alice)
	assert.NoError(t, err)
	assert.NoError(t, ch1.SetTyping(ctx, true))
	assert.NoError(t, ch1.Leave(ctx))

	// A reconnect carries none of the old state.
	ch2, err := hub.Join(ctx, "room", alice)
	assert.NoError(t, err)
	defer ch2.Leave(ctx)

	snap, err := ch2.Snapshot(ctx)
	assert.NoError(t, err)
	e := entryFor(snap, "alice")
	assert.NotNil(t, e)
	assert.False(t, e.IsTyping)
}
