package feed

import (
	"sort"
	"sync"

	"github.com/samudaay/portal-chat/pkg/model"
)

// RoomView is the single ordered list of messages one open room renders.
// History pages and live deliveries feed it from independent streams in
// arbitrary order; it keeps the (created_at, id) total order and drops
// ids it already holds.
type RoomView struct {
	mu       sync.Mutex
	messages []model.Message
	known    map[int64]bool
}

func NewRoomView() *RoomView {
	return &RoomView{known: make(map[int64]bool)}
}

// Apply inserts a message at its sorted position. Returns false when the
// id was already present (a duplicate delivery or the sender's own echo).
func (v *RoomView) Apply(m model.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.applyLocked(m)
}

func (v *RoomView) applyLocked(m model.Message) bool {
	if v.known[m.ID] {
		return false
	}
	v.known[m.ID] = true

	// Late arrivals go to their correct position, not the end.
	at := sort.Search(len(v.messages), func(i int) bool {
		return m.Before(v.messages[i])
	})
	v.messages = append(v.messages, model.Message{})
	copy(v.messages[at+1:], v.messages[at:])
	v.messages[at] = m
	return true
}

// Seed merges a fetched history page. Already-known ids are skipped, so
// overlapping pages and live deliveries stay duplicate-free.
func (v *RoomView) Seed(page []model.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, m := range page {
		v.applyLocked(m)
	}
}

// Messages returns the rendered list, ascending by (created_at, id).
func (v *RoomView) Messages() []model.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// KnownIDs returns every id the view holds, for seeding a subscription's
// de-dup set.
func (v *RoomView) KnownIDs() []int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]int64, 0, len(v.known))
	for id := range v.known {
		ids = append(ids, id)
	}
	return ids
}

func (v *RoomView) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.messages)
}
