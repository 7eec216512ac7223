package presence

import (
	"context"
	"sync"
	"time"

	"github.com/samudaay/portal-chat/pkg/model"
)

// MemoryBroadcaster is an in-process Broadcaster for single-node setups
// and tests. Same snapshot-on-every-change semantics as Redis, no
// network.
type MemoryBroadcaster struct {
	mu    sync.Mutex
	rooms map[string]map[string]model.PresenceEntry
	subs  map[string]map[chan model.PresenceSnapshot]bool
}

func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{
		rooms: make(map[string]map[string]model.PresenceEntry),
		subs:  make(map[string]map[chan model.PresenceSnapshot]bool),
	}
}

func (b *MemoryBroadcaster) Set(ctx context.Context, roomID string, e model.PresenceEntry) error {
	b.mu.Lock()
	if b.rooms[roomID] == nil {
		b.rooms[roomID] = make(map[string]model.PresenceEntry)
	}
	b.rooms[roomID][e.UserID] = e
	b.notifyLocked(roomID)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBroadcaster) Remove(ctx context.Context, roomID, userID string) error {
	b.mu.Lock()
	if room, ok := b.rooms[roomID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(b.rooms, roomID)
		}
	}
	b.notifyLocked(roomID)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBroadcaster) Snapshot(ctx context.Context, roomID string) (model.PresenceSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Fresh(b.snapshotLocked(roomID), time.Now().UTC()), nil
}

func (b *MemoryBroadcaster) snapshotLocked(roomID string) model.PresenceSnapshot {
	snap := model.PresenceSnapshot{RoomID: roomID}
	for _, e := range b.rooms[roomID] {
		snap.Entries = append(snap.Entries, e)
	}
	return snap
}

func (b *MemoryBroadcaster) notifyLocked(roomID string) {
	snap := b.snapshotLocked(roomID)
	for ch := range b.subs[roomID] {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (b *MemoryBroadcaster) Subscribe(roomID string) (<-chan model.PresenceSnapshot, func()) {
	ch := make(chan model.PresenceSnapshot, 8)
	b.mu.Lock()
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[chan model.PresenceSnapshot]bool)
	}
	b.subs[roomID][ch] = true
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[roomID], ch)
			if len(b.subs[roomID]) == 0 {
				delete(b.subs, roomID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
