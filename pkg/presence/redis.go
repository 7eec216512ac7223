package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/samudaay/portal-chat/pkg/model"
)

// RedisBroadcaster keeps each room's presence in a hash and fans out
// change notifications over pub/sub. The hash TTL is refreshed on every
// write, so an abandoned room's state evaporates on its own.
type RedisBroadcaster struct {
	rdb *redis.Client
}

func NewRedisBroadcaster(addr string) *RedisBroadcaster {
	return &RedisBroadcaster{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func hashKey(roomID string) string    { return "presence:" + roomID }
func channelKey(roomID string) string { return "presence:" + roomID + ":events" }

func (b *RedisBroadcaster) Set(ctx context.Context, roomID string, e model.PresenceEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal presence entry: %w", err)
	}
	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, hashKey(roomID), e.UserID, payload)
	pipe.Expire(ctx, hashKey(roomID), 2*LivenessWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return b.notify(ctx, roomID)
}

func (b *RedisBroadcaster) Remove(ctx context.Context, roomID, userID string) error {
	if err := b.rdb.HDel(ctx, hashKey(roomID), userID).Err(); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	return b.notify(ctx, roomID)
}

func (b *RedisBroadcaster) Snapshot(ctx context.Context, roomID string) (model.PresenceSnapshot, error) {
	fields, err := b.rdb.HGetAll(ctx, hashKey(roomID)).Result()
	if err != nil {
		return model.PresenceSnapshot{}, fmt.Errorf("read presence: %w", err)
	}

	snap := model.PresenceSnapshot{RoomID: roomID}
	for _, raw := range fields {
		var e model.PresenceEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		snap.Entries = append(snap.Entries, e)
	}
	return Fresh(snap, time.Now().UTC()), nil
}

// notify publishes the full snapshot, not a diff.
func (b *RedisBroadcaster) notify(ctx context.Context, roomID string) error {
	snap, err := b.Snapshot(ctx, roomID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := b.rdb.Publish(ctx, channelKey(roomID), payload).Err(); err != nil {
		return fmt.Errorf("publish presence change: %w", err)
	}
	return nil
}

func (b *RedisBroadcaster) Subscribe(roomID string) (<-chan model.PresenceSnapshot, func()) {
	sub := b.rdb.Subscribe(context.Background(), channelKey(roomID))
	out := make(chan model.PresenceSnapshot, 8)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var snap model.PresenceSnapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				log.Printf("Skipping malformed presence snapshot: %v", err)
				continue
			}
			select {
			case out <- snap:
			default:
				// A slow consumer keeps only the latest snapshots; each
				// one is the full state, so dropping is safe.
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = sub.Close() })
	}
	return out, cancel
}

func (b *RedisBroadcaster) Close() error {
	return b.rdb.Close()
}
