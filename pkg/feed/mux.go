package feed

import (
	"context"
	"sync"

	"github.com/samudaay/portal-chat/pkg/model"
)

// MessageFunc receives a newly delivered message for a subscribed room.
type MessageFunc func(model.Message)

// ReactionFunc receives an ids-only reaction change notification. The
// consumer re-fetches the aggregate; deltas are unordered.
type ReactionFunc func(roomID string, messageID int64)

// Multiplexer fans change-feed events out to per-room subscriptions.
// Delivery order is arrival order, which may interleave arbitrarily with
// direct history fetches; subscribers must be able to insert a late
// message into its sorted position.
type Multiplexer struct {
	mu      sync.RWMutex
	msgSubs map[string]map[*MessageSub]bool
	rxnSubs map[string]map[*ReactionSub]bool
}

func NewMultiplexer() *Multiplexer {
	return &Multiplexer{
		msgSubs: make(map[string]map[*MessageSub]bool),
		rxnSubs: make(map[string]map[*ReactionSub]bool),
	}
}

// MessageSub is one live message feed for one open room view. Each
// delivered id is remembered so redelivery and the sender's own echo are
// dropped.
type MessageSub struct {
	mux    *Multiplexer
	roomID string
	fn     MessageFunc

	mu   sync.Mutex
	seen map[int64]bool
	done bool
}

// MarkKnown records ids already held locally (a fetched history page, a
// locally appended send) so the feed will not deliver them again.
func (s *MessageSub) MarkKnown(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.seen[id] = true
	}
}

func (s *MessageSub) deliver(m model.Message) {
	s.mu.Lock()
	if s.done || s.seen[m.ID] {
		s.mu.Unlock()
		return
	}
	s.seen[m.ID] = true
	s.mu.Unlock()
	s.fn(m)
}

// Unsubscribe releases the subscription. Idempotent; safe to call from
// any exit path.
func (s *MessageSub) Unsubscribe() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()

	s.mux.mu.Lock()
	defer s.mux.mu.Unlock()
	if subs, ok := s.mux.msgSubs[s.roomID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.mux.msgSubs, s.roomID)
		}
	}
}

// ReactionSub is one live reaction-change feed for one open room view.
type ReactionSub struct {
	mux    *Multiplexer
	roomID string
	fn     ReactionFunc

	mu   sync.Mutex
	done bool
}

func (s *ReactionSub) Unsubscribe() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()

	s.mux.mu.Lock()
	defer s.mux.mu.Unlock()
	if subs, ok := s.mux.rxnSubs[s.roomID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.mux.rxnSubs, s.roomID)
		}
	}
}

// SubscribeMessages opens a live message feed for one room view.
func (m *Multiplexer) SubscribeMessages(roomID string, fn MessageFunc) *MessageSub {
	sub := &MessageSub{mux: m, roomID: roomID, fn: fn, seen: make(map[int64]bool)}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.msgSubs[roomID] == nil {
		m.msgSubs[roomID] = make(map[*MessageSub]bool)
	}
	m.msgSubs[roomID][sub] = true
	return sub
}

// SubscribeReactions opens a live reaction-change feed for one room view.
func (m *Multiplexer) SubscribeReactions(roomID string, fn ReactionFunc) *ReactionSub {
	sub := &ReactionSub{mux: m, roomID: roomID, fn: fn}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rxnSubs[roomID] == nil {
		m.rxnSubs[roomID] = make(map[*ReactionSub]bool)
	}
	m.rxnSubs[roomID][sub] = true
	return sub
}

// Dispatch routes one event to the room's subscriptions.
func (m *Multiplexer) Dispatch(ev model.Event) {
	switch ev.Kind {
	case model.EventMessage:
		if ev.Message == nil {
			return
		}
		m.mu.RLock()
		subs := make([]*MessageSub, 0, len(m.msgSubs[ev.RoomID]))
		for s := range m.msgSubs[ev.RoomID] {
			subs = append(subs, s)
		}
		m.mu.RUnlock()
		for _, s := range subs {
			s.deliver(*ev.Message)
		}

	case model.EventReaction:
		m.mu.RLock()
		subs := make([]*ReactionSub, 0, len(m.rxnSubs[ev.RoomID]))
		for s := range m.rxnSubs[ev.RoomID] {
			subs = append(subs, s)
		}
		m.mu.RUnlock()
		for _, s := range subs {
			s.fn(ev.RoomID, ev.MessageID)
		}
	}
}

// Run pumps a source into the multiplexer until the source fails or the
// context ends. A drop is surfaced to the caller, who decides whether to
// re-establish; no retry happens here.
func (m *Multiplexer) Run(ctx context.Context, src Source) error {
	for {
		ev, err := src.Next(ctx)
		if err != nil {
			return err
		}
		m.Dispatch(ev)
	}
}
