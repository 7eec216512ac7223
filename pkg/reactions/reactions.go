package reactions

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/samudaay/portal-chat/pkg/model"
)

const maxEmojiLen = 16

// Publisher pushes a reaction change notification onto the change feed.
type Publisher interface {
	Publish(ctx context.Context, ev model.Event) error
}

// Index tracks per-message, per-user, per-emoji reaction state. The
// composite primary key makes both directions idempotent: re-adding is
// an upsert conflict that does nothing, removing an absent row deletes
// nothing. Concurrent toggles of one key converge on the last write.
type Index struct {
	db  *gorm.DB
	pub Publisher
}

func New(db *gorm.DB, pub Publisher) *Index {
	return &Index{db: db, pub: pub}
}

// Add records a reaction. A duplicate of an existing one is a successful
// no-op, never an error.
func (ix *Index) Add(ctx context.Context, roomID string, messageID int64, userID, emoji string) error {
	if userID == "" {
		return model.ErrNoIdentity
	}
	if emoji == "" || len(emoji) > maxEmojiLen {
		return fmt.Errorf("%w: bad emoji", model.ErrValidation)
	}

	r := model.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji, CreatedAt: time.Now().UTC()}
	err := ix.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error
	if err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}

	ix.notify(ctx, roomID, messageID)
	return nil
}

// Remove deletes a reaction. Removing one that is not there is a
// successful no-op.
func (ix *Index) Remove(ctx context.Context, roomID string, messageID int64, userID, emoji string) error {
	if userID == "" {
		return model.ErrNoIdentity
	}

	err := ix.db.WithContext(ctx).
		Delete(&model.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}).Error
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}

	ix.notify(ctx, roomID, messageID)
	return nil
}

// FetchFor batch-loads reactions for a page of messages. Aggregation into
// emoji groups is the rendering boundary's concern, not stored here.
func (ix *Index) FetchFor(ctx context.Context, messageIDs []int64) (map[int64][]model.Reaction, error) {
	out := make(map[int64][]model.Reaction, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}

	var rows []model.Reaction
	err := ix.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch reactions: %w", err)
	}

	for _, r := range rows {
		out[r.MessageID] = append(out[r.MessageID], r)
	}
	return out, nil
}

// notify emits an ids-only change event. Consumers re-fetch the aggregate
// because individual deltas carry no ordering guarantee.
func (ix *Index) notify(ctx context.Context, roomID string, messageID int64) {
	if ix.pub == nil {
		return
	}
	ev := model.Event{
		Kind:      model.EventReaction,
		RoomID:    roomID,
		MessageID: messageID,
		Timestamp: time.Now().UTC(),
	}
	if err := ix.pub.Publish(ctx, ev); err != nil {
		log.Printf("Failed to publish reaction change for message %d: %v", messageID, err)
	}
}
