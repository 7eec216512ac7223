package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/samudaay/portal-chat/pkg/auth"
	"github.com/samudaay/portal-chat/pkg/model"
)

// DefaultRoomID is the well-known announcement room every user is joined
// to on session start.
const DefaultRoomID = "general"

// UnreadCounter counts messages newer than a read watermark; the message
// store provides it.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, roomID string, lastReadAt time.Time) (int64, error)
}

// Directory resolves which rooms a user belongs to and owns the
// room/membership tables. Private-room creation is the one place in the
// core needing a transactional create-if-absent, backed by the unique
// pair key index.
type Directory struct {
	db     *gorm.DB
	unread UnreadCounter
}

func New(db *gorm.DB, unread UnreadCounter) *Directory {
	return &Directory{db: db, unread: unread}
}

// Migrate creates the relational tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Room{}, &model.Membership{}, &model.Reaction{})
}

// pairKey builds the unordered-pair key for a private room. Both call
// orders produce the same key, which is what the unique index dedupes on.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// ListRooms returns every room the user is a member of, annotated with a
// resolved display name and unread count. Private room names come from
// the counterpart membership at read time, never stored denormalized.
func (d *Directory) ListRooms(ctx context.Context, userID string) ([]model.RoomView, error) {
	if userID == "" {
		return nil, model.ErrNoIdentity
	}

	var memberships []model.Membership
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	views := make([]model.RoomView, 0, len(memberships))
	for _, ms := range memberships {
		var room model.Room
		if err := d.db.WithContext(ctx).Preload("Members").First(&room, "id = ?", ms.RoomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("load room %s: %w", ms.RoomID, err)
		}

		view := model.RoomView{Room: room, ResolvedName: resolveName(room, userID)}
		if d.unread != nil {
			count, err := d.unread.UnreadCount(ctx, room.ID, ms.LastReadAt)
			if err != nil {
				// Unread is an annotation; a store hiccup should not take
				// down the room list.
				count = 0
			}
			view.UnreadCount = count
		}
		views = append(views, view)
	}
	return views, nil
}

func resolveName(room model.Room, viewerID string) string {
	if room.Kind == model.KindPrivate {
		for _, m := range room.Members {
			if m.UserID != viewerID {
				return m.DisplayName
			}
		}
		return "Private chat"
	}
	if room.DisplayName != nil {
		return *room.DisplayName
	}
	return room.ID
}

// JoinDefaultRoom ensures membership in the announcement room. Idempotent
// and safe to call on every session start.
func (d *Directory) JoinDefaultRoom(ctx context.Context, user auth.Identity) error {
	if user.ID == "" {
		return model.ErrNoIdentity
	}

	name := "Announcements"
	room := model.Room{ID: DefaultRoomID, Kind: model.KindAnnouncement, DisplayName: &name}
	if err := d.db.WithContext(ctx).FirstOrCreate(&room, model.Room{ID: DefaultRoomID}).Error; err != nil {
		return fmt.Errorf("ensure default room: %w", err)
	}

	ms := model.Membership{RoomID: DefaultRoomID, UserID: user.ID, DisplayName: user.DisplayName}
	err := d.db.WithContext(ctx).
		Where(model.Membership{RoomID: DefaultRoomID, UserID: user.ID}).
		FirstOrCreate(&ms).Error
	if err != nil {
		return fmt.Errorf("join default room: %w", err)
	}
	return nil
}

// GetOrCreatePrivateRoom returns the one private room for a pair of
// users, creating it on first contact. Argument order does not matter and
// concurrent calls from both participants converge on one row: creation
// races lose on the unique pair key and fall back to reading the winner.
func (d *Directory) GetOrCreatePrivateRoom(ctx context.Context, a, b auth.Identity) (model.Room, error) {
	if a.ID == "" || b.ID == "" {
		return model.Room{}, model.ErrNoIdentity
	}
	if a.ID == b.ID {
		return model.Room{}, fmt.Errorf("%w: cannot open a private room with yourself", model.ErrValidation)
	}

	key := pairKey(a.ID, b.ID)

	var existing model.Room
	err := d.db.WithContext(ctx).Preload("Members").First(&existing, "pair_key = ?", key).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Room{}, fmt.Errorf("lookup private room: %w", err)
	}

	room := model.Room{ID: uuid.NewString(), Kind: model.KindPrivate, PairKey: &key}
	createErr := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		members := []model.Membership{
			{RoomID: room.ID, UserID: a.ID, DisplayName: a.DisplayName},
			{RoomID: room.ID, UserID: b.ID, DisplayName: b.DisplayName},
		}
		return tx.Create(&members).Error
	})
	if createErr == nil {
		room.Members = []model.Membership{
			{RoomID: room.ID, UserID: a.ID, DisplayName: a.DisplayName},
			{RoomID: room.ID, UserID: b.ID, DisplayName: b.DisplayName},
		}
		return room, nil
	}

	// A concurrent creator beat us to the pair key. Re-read and return
	// the winner instead of surfacing the conflict.
	if err := d.db.WithContext(ctx).Preload("Members").First(&existing, "pair_key = ?", key).Error; err == nil {
		return existing, nil
	}
	return model.Room{}, fmt.Errorf("create private room: %w", createErr)
}

// CreateGroupRoom creates a named group room with the creator as its
// first member.
func (d *Directory) CreateGroupRoom(ctx context.Context, creator auth.Identity, name string) (model.Room, error) {
	if creator.ID == "" {
		return model.Room{}, model.ErrNoIdentity
	}
	if name == "" {
		return model.Room{}, fmt.Errorf("%w: room name required", model.ErrValidation)
	}

	room := model.Room{ID: uuid.NewString(), Kind: model.KindGroup, DisplayName: &name}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		return tx.Create(&model.Membership{
			RoomID: room.ID, UserID: creator.ID, DisplayName: creator.DisplayName,
		}).Error
	})
	if err != nil {
		return model.Room{}, fmt.Errorf("create group room: %w", err)
	}
	return room, nil
}

// JoinRoom adds a user to a group or announcement room. Idempotent.
func (d *Directory) JoinRoom(ctx context.Context, roomID string, user auth.Identity) error {
	if user.ID == "" {
		return model.ErrNoIdentity
	}

	var room model.Room
	if err := d.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("load room: %w", err)
	}
	if room.Kind == model.KindPrivate {
		return fmt.Errorf("%w: private rooms are join-by-contact only", model.ErrValidation)
	}

	ms := model.Membership{RoomID: roomID, UserID: user.ID, DisplayName: user.DisplayName}
	return d.db.WithContext(ctx).
		Where(model.Membership{RoomID: roomID, UserID: user.ID}).
		FirstOrCreate(&ms).Error
}

// ResolveIdentity recovers a user's own display name from any existing
// membership of theirs (every signed-in user holds at least the default
// room's). Callers prefer this over names typed by somebody else.
func (d *Directory) ResolveIdentity(ctx context.Context, userID string) (auth.Identity, error) {
	if userID == "" {
		return auth.Identity{}, model.ErrNoIdentity
	}

	var ms model.Membership
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND display_name <> ''", userID).
		Order("created_at").
		First(&ms).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return auth.Identity{}, model.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("resolve identity: %w", err)
	}
	return auth.Identity{ID: userID, DisplayName: ms.DisplayName}, nil
}

// IsMember reports whether a user belongs to a room. The gateway checks
// this before opening a live subscription.
func (d *Directory) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("membership check: %w", err)
	}
	return count > 0, nil
}

// UpdateLastRead advances the membership watermark to now. The guard in
// the WHERE clause makes it forward-only; a stale caller is a no-op.
func (d *Directory) UpdateLastRead(ctx context.Context, roomID, userID string) error {
	if userID == "" {
		return model.ErrNoIdentity
	}

	now := time.Now().UTC()
	res := d.db.WithContext(ctx).Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ? AND last_read_at < ?", roomID, userID, now).
		Update("last_read_at", now)
	if res.Error != nil {
		return fmt.Errorf("update last read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the guard suppressed a stale write or the membership
		// does not exist; only the latter is a failure.
		ok, err := d.IsMember(ctx, roomID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return model.ErrNotFound
		}
	}
	return nil
}

// PinMessage sets the room's pinned message, last write wins. The pin is
// a weak reference; pointing at a deleted message renders as unavailable.
func (d *Directory) PinMessage(ctx context.Context, roomID string, messageID int64) error {
	res := d.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ?", roomID).
		Update("pinned_message_id", messageID)
	if res.Error != nil {
		return fmt.Errorf("pin message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// GetRoom loads one room with its members.
func (d *Directory) GetRoom(ctx context.Context, roomID string) (model.Room, error) {
	var room model.Room
	if err := d.db.WithContext(ctx).Preload("Members").First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Room{}, model.ErrNotFound
		}
		return model.Room{}, fmt.Errorf("load room: %w", err)
	}
	return room, nil
}
