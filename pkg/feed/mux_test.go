package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/samudaay/portal-chat/pkg/model"
)

func messageEvent(roomID string, id int64) model.Event {
	m := model.Message{ID: id, RoomID: roomID, SenderID: "u", Type: model.TypeText, Content: "m", CreatedAt: time.Now()}
	return model.Event{Kind: model.EventMessage, RoomID: roomID, Message: &m, Timestamp: m.CreatedAt}
}

func TestMultiplexerRoutesByRoom(t *testing.T) {
	mux := NewMultiplexer()

	var gotA, gotB []int64
	subA := mux.SubscribeMessages("a", func(m model.Message) { gotA = append(gotA, m.ID) })
	defer subA.Unsubscribe()
	subB := mux.SubscribeMessages("b", func(m model.Message) { gotB = append(gotB, m.ID) })
	defer subB.Unsubscribe()

	mux.Dispatch(messageEvent("a", 1))
	mux.Dispatch(messageEvent("b", 2))
	mux.Dispatch(messageEvent("a", 3))

	assert.Equal(t, []int64{1, 3}, gotA)
	assert.Equal(t, []int64{2}, gotB)
}

func TestSubscriptionDropsRedelivery(t *testing.T) {
	mux := NewMultiplexer()

	var got []int64
	sub := mux.SubscribeMessages("r", func(m model.Message) { got = append(got, m.ID) })
	defer sub.Unsubscribe()

	ev := messageEvent("r", 42)
	mux.Dispatch(ev)
	mux.Dispatch(ev) // broker redelivery

	assert.Equal(t, []int64{42}, got)
}

func TestSubscriptionDropsKnownIds(t *testing.T) {
	mux := NewMultiplexer()

	var got []int64
	sub := mux.SubscribeMessages("r", func(m model.Message) { got = append(got, m.ID) })
	defer sub.Unsubscribe()

	// Ids from the fetched history page and the sender's own append.
	sub.MarkKnown(1, 2, 3)

	mux.Dispatch(messageEvent("r", 2)) // own echo
	mux.Dispatch(messageEvent("r", 4))

	assert.Equal(t, []int64{4}, got)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	mux := NewMultiplexer()

	var got []int64
	sub := mux.SubscribeMessages("r", func(m model.Message) { got = append(got, m.ID) })

	sub.Unsubscribe()
	sub.Unsubscribe()
	sub.Unsubscribe()

	mux.Dispatch(messageEvent("r", 1))
	assert.Empty(t, got)
}

func TestReactionSubscriptionNotifiesIdsOnly(t *testing.T) {
	mux := NewMultiplexer()

	type change struct {
		room string
		id   int64
	}
	var got []change
	sub := mux.SubscribeReactions("r", func(roomID string, messageID int64) {
		got = append(got, change{roomID, messageID})
	})

	mux.Dispatch(model.Event{Kind: model.EventReaction, RoomID: "r", MessageID: 9})
	mux.Dispatch(model.Event{Kind: model.EventReaction, RoomID: "other", MessageID: 10})

	assert.Equal(t, []change{{"r", 9}}, got)

	sub.Unsubscribe()
	sub.Unsubscribe()
	mux.Dispatch(model.Event{Kind: model.EventReaction, RoomID: "r", MessageID: 11})
	assert.Len(t, got, 1)
}

type stubSource struct {
	events []model.Event
	err    error
}

func (s *stubSource) Next(ctx context.Context) (model.Event, error) {
	if len(s.events) == 0 {
		return model.Event{}, s.err
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *stubSource) Close() error { return nil }

func TestRunSurfacesSourceDrop(t *testing.T) {
	mux := NewMultiplexer()

	var got []int64
	sub := mux.SubscribeMessages("r", func(m model.Message) { got = append(got, m.ID) })
	defer sub.Unsubscribe()

	dropped := errors.New("connection reset")
	src := &stubSource{events: []model.Event{messageEvent("r", 1), messageEvent("r", 2)}, err: dropped}

	err := mux.Run(context.Background(), src)
	assert.ErrorIs(t, err, dropped)
	assert.Equal(t, []int64{1, 2}, got)
}
