package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/samudaay/portal-chat/pkg/model"
)

func msg(id int64, at time.Time) model.Message {
	return model.Message{ID: id, RoomID: "r", SenderID: "u", Type: model.TypeText, Content: "m", CreatedAt: at}
}

func TestViewDedup(t *testing.T) {
	v := NewRoomView()
	now := time.Now()

	m := msg(1, now)
	assert.True(t, v.Apply(m), "first delivery applies")
	assert.False(t, v.Apply(m), "echo of the same id is dropped")
	assert.Equal(t, 1, v.Len())
}

func TestViewLocalEchoPlusFeedDelivery(t *testing.T) {
	v := NewRoomView()
	now := time.Now()

	// Sender appends its own message locally, then the feed redelivers it.
	sent := msg(10, now)
	assert.True(t, v.Apply(sent))
	assert.False(t, v.Apply(sent))

	got := v.Messages()
	assert.Len(t, got, 1, "a message created locally and delivered live appears exactly once")
}

func TestViewLateArrivalSortsIntoPlace(t *testing.T) {
	v := NewRoomView()
	base := time.Now().Truncate(time.Millisecond)

	v.Apply(msg(1, base))
	v.Apply(msg(3, base.Add(2*time.Millisecond)))
	// Arrives after m3 but belongs between m1 and m3.
	v.Apply(msg(2, base.Add(time.Millisecond)))

	got := v.Messages()
	ids := []int64{got[0].ID, got[1].ID, got[2].ID}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestViewSameTimestampOrdersById(t *testing.T) {
	v := NewRoomView()
	at := time.Now().Truncate(time.Millisecond)

	// Two senders within the same millisecond; id breaks the tie, and
	// exactly one of a<b, b<a holds.
	a, b := msg(7, at), msg(8, at)
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))

	v.Apply(b)
	v.Apply(a)

	got := v.Messages()
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, int64(8), got[1].ID)
}

func TestViewSeedOverlapsWithLiveFeed(t *testing.T) {
	v := NewRoomView()
	base := time.Now().Truncate(time.Millisecond)

	live := msg(5, base.Add(4*time.Millisecond))
	v.Apply(live)

	// A history page that includes the already-delivered message.
	v.Seed([]model.Message{
		msg(3, base),
		msg(4, base.Add(2*time.Millisecond)),
		msg(5, base.Add(4*time.Millisecond)),
	})

	got := v.Messages()
	assert.Len(t, got, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{got[0].ID, got[1].ID, got[2].ID})
	assert.ElementsMatch(t, []int64{3, 4, 5}, v.KnownIDs())
}
