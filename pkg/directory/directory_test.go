package directory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/samudaay/portal-chat/pkg/auth"
	"github.com/samudaay/portal-chat/pkg/model"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	assert.NoError(t, err)

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	assert.NoError(t, Migrate(db))
	return db
}

var (
	alice = auth.Identity{ID: "alice", DisplayName: "Alice"}
	bob   = auth.Identity{ID: "bob", DisplayName: "Bob"}
)

func TestPrivateRoomSameForBothCallOrders(t *testing.T) {
	d := New(testDB(t), nil)
	ctx := context.Background()

	r1, err := d.GetOrCreatePrivateRoom(ctx, alice, bob)
	assert.NoError(t, err)
	r2, err := d.GetOrCreatePrivateRoom(ctx, bob, alice)
	assert.NoError(t, err)

	assert.Equal(t, r1.ID, r2.ID)
	assert.Equal(t, model.KindPrivate, r1.Kind)

	// A later third call still lands on the same room.
	r3, err := d.GetOrCreatePrivateRoom(ctx, alice, bob)
	assert.NoError(t, err)
	assert.Equal(t, r1.ID, r3.ID)

	var count int64
	assert.NoError(t, d.db.Model(&model.Room{}).Where("kind = ?", model.KindPrivate).Count(&count).Error)
	assert.Equal(t, int64(1), count, "exactly one room row exists for the pair")
}

func TestPrivateRoomConcurrentCreation(t *testing.T) {
	d := New(testDB(t), nil)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var room model.Room
			var err error
			if i%2 == 0 {
				room, err = d.GetOrCreatePrivateRoom(context.Background(), alice, bob)
			} else {
				room, err = d.GetOrCreatePrivateRoom(context.Background(), bob, alice)
			}
			assert.NoError(t, err)
			ids[i] = room.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
}

func TestPrivateRoomWithSelfRejected(t *testing.T) {
	d := New(testDB(t), nil)
	_, err := d.GetOrCreatePrivateRoom(context.Background(), alice, alice)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestPrivateRoomRequiresIdentity(t *testing.T) {
	d := New(testDB(t), nil)
	_, err := d.GetOrCreatePrivateRoom(context.Background(), auth.Identity{}, bob)
	assert.ErrorIs(t, err, model.ErrNoIdentity)
}

func TestListRoomsResolvesPrivateName(t *testing.T) {
	d := New(testDB(t), nil)
	ctx := context.Background()

	_, err := d.GetOrCreatePrivateRoom(ctx, alice, bob)
	assert.NoError(t, err)

	views, err := d.ListRooms(ctx, alice.ID)
	assert.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, "Bob", views[0].ResolvedName, "private room shows the counterpart's name")

	views, err = d.ListRooms(ctx, bob.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Alice", views[0].ResolvedName)
}

func TestJoinDefaultRoomIdempotent(t *testing.T) {
	d := New(testDB(t), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.NoError(t, d.JoinDefaultRoom(ctx, alice))
	}

	var count int64
	assert.NoError(t, d.db.Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ?", DefaultRoomID, alice.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	views, err := d.ListRooms(ctx, alice.ID)
	assert.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, model.KindAnnouncement, views[0].Kind)
}

func TestUpdateLastReadNeverRegresses(t *testing.T) {
	d := New(testDB(t), nil)
	ctx := context.Background()

	assert.NoError(t, d.JoinDefaultRoom(ctx, alice))
	assert.NoError(t, d.UpdateLastRead(ctx, DefaultRoomID, alice.ID))

	var ms model.Membership
	assert.NoError(t, d.db.First(&ms, "room_id = ? AND user_id = ?", DefaultRoomID, alice.ID).Error)
	first := ms.LastReadAt
	assert.False(t, first.IsZero())

	// Plant a watermark in the future; an update with an older "now"
	// must not move it back.
	future := time.Now().UTC().Add(time.Hour)
	assert.NoError(t, d.db.Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ?", DefaultRoomID, alice.ID).
		Update("last_read_at", future).Error)

	assert.NoError(t, d.UpdateLastRead(ctx, DefaultRoomID, alice.ID))

	assert.NoError(t, d.db.First(&ms, "room_id = ? AND user_id = ?", DefaultRoomID, alice.ID).Error)
	assert.WithinDuration(t, future, ms.LastReadAt, time.Second, "watermark only moves forward")
}

func TestUpdateLastReadUnknownMembership(t *testing.T) {
	d := New(testDB(t), nil)
	ctx := context.Background()

	err := d.UpdateLastRead(ctx, "no-such-room", alice.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// A member of some room is still not-found for a room they never
	// joined.
	assert.NoError(t, d.JoinDefaultRoom(ctx, alice))
	room, err := d.CreateGroupRoom(ctx, bob, "committee")
	assert.NoError(t, err)
	err = d.UpdateLastRead(ctx, room.ID, alice.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestResolveIdentityFromOwnMembership(t *testing.T) {
	d := New(testDB(t), nil)
	ctx := context.Background()

	assert.NoError(t, d.JoinDefaultRoom(ctx, bob))

	got, err := d.ResolveIdentity(ctx, bob.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Bob", got.DisplayName)

	_, err = d.ResolveIdentity(ctx, "stranger")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = d.ResolveIdentity(ctx, "")
	assert.ErrorIs(t, err, model.ErrNoIdentity)
}

func TestPrivateRoomNameSurvivesCallerTypo(t *testing.T) {
	d := New(testDB(t), nil)
	ctx := context.Background()

	// Bob has signed in before, so his own name is on record.
	assert.NoError(t, d.JoinDefaultRoom(ctx, bob))

	// Alice opens the room using the name Bob's membership carries, not
	// whatever she typed.
	counterpart, err := d.ResolveIdentity(ctx, bob.ID)
	assert.NoError(t, err)
	_, err = d.GetOrCreatePrivateRoom(ctx, alice, counterpart)
	assert.NoError(t, err)

	views, err := d.ListRooms(ctx, alice.ID)
	assert.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, "Bob", views[0].ResolvedName)
}

func TestPinMessageLastWriteWins(t *testing.T) {
	d := New(testDB(t), nil)
	ctx := context.Background()

	room, err := d.CreateGroupRoom(ctx, alice, "volunteers")
	assert.NoError(t, err)

	assert.NoError(t, d.PinMessage(ctx, room.ID, 100))
	assert.NoError(t, d.PinMessage(ctx, room.ID, 200))

	got, err := d.GetRoom(ctx, room.ID)
	assert.NoError(t, err)
	assert.NotNil(t, got.PinnedMessageID)
	assert.Equal(t, int64(200), *got.PinnedMessageID)
}

func TestPinMessageUnknownRoom(t *testing.T) {
	d := New(testDB(t), nil)
	err := d.PinMessage(context.Background(), "no-such-room", 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestJoinRoomRejectsPrivate(t *testing.T) {
	d := New(testDB(t), nil)
	ctx := context.Background()

	room, err := d.GetOrCreatePrivateRoom(ctx, alice, bob)
	assert.NoError(t, err)

	carol := auth.Identity{ID: "carol", DisplayName: "Carol"}
	err = d.JoinRoom(ctx, room.ID, carol)
	assert.ErrorIs(t, err, model.ErrValidation)

	err = d.JoinRoom(ctx, "missing", carol)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestIsMember(t *testing.T) {
	d := New(testDB(t), nil)
	ctx := context.Background()

	room, err := d.GetOrCreatePrivateRoom(ctx, alice, bob)
	assert.NoError(t, err)

	ok, err := d.IsMember(ctx, room.ID, alice.ID)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.IsMember(ctx, room.ID, "carol")
	assert.NoError(t, err)
	assert.False(t, ok)
}
