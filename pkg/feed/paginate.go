package feed

import (
	"context"
	"sync"

	"github.com/samudaay/portal-chat/pkg/model"
)

// HistoryFetcher is the slice of the message store pagination needs.
type HistoryFetcher interface {
	FetchMessages(ctx context.Context, roomID string, limit int, before int64) ([]model.Message, error)
}

// Paginator walks a room's history backward page by page. A single
// in-flight flag swallows overlapping triggers, so a fast double-scroll
// cannot fetch the same page twice.
type Paginator struct {
	fetch  HistoryFetcher
	roomID string
	limit  int

	mu        sync.Mutex
	inFlight  bool
	cursor    int64
	exhausted bool
}

func NewPaginator(fetch HistoryFetcher, roomID string, limit int) *Paginator {
	return &Paginator{fetch: fetch, roomID: roomID, limit: limit}
}

// LoadOlder fetches the next older page. Returns (nil, nil) when a load
// is already in flight or history is exhausted.
func (p *Paginator) LoadOlder(ctx context.Context) ([]model.Message, error) {
	p.mu.Lock()
	if p.inFlight || p.exhausted {
		p.mu.Unlock()
		return nil, nil
	}
	p.inFlight = true
	cursor := p.cursor
	p.mu.Unlock()

	page, err := p.fetch.FetchMessages(ctx, p.roomID, p.limit, cursor)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if err != nil {
		return nil, err
	}

	if len(page) > 0 {
		// Pages come back ascending; the oldest row is the next cursor.
		p.cursor = page[0].ID
	}
	// A short page is the only end-of-history signal available.
	if len(page) < p.limit {
		p.exhausted = true
	}
	return page, nil
}

// Exhausted reports whether the walk has seen the oldest page.
func (p *Paginator) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}
