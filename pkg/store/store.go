package store

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/samudaay/portal-chat/pkg/db"
	"github.com/samudaay/portal-chat/pkg/model"
	"github.com/samudaay/portal-chat/pkg/snowflake"
)

const (
	// DefaultPageLimit is the history page size when the caller asks for none.
	DefaultPageLimit = 50

	// MaxPageLimit bounds a single history read; anything larger walks
	// the cursor instead.
	MaxPageLimit = 200

	maxContentLen    = 4000
	maxUploadBytes   = 10 << 20
	maxSearchResults = 100
)

// Publisher pushes an event onto the durable store's change feed after a
// successful write.
type Publisher interface {
	Publish(ctx context.Context, ev model.Event) error
}

// Store persists and retrieves messages. Each room is one Scylla
// partition clustered newest-first by the snowflake id, so history pages
// are a single bounded partition read.
type Store struct {
	db  *db.Session
	ids *snowflake.Node
	pub Publisher
}

func New(session *db.Session, ids *snowflake.Node, pub Publisher) *Store {
	return &Store{db: session, ids: ids, pub: pub}
}

const messageColumns = `room_id, id, sender_id, content, message_type, image_ref, file_name, file_size, reply_to_id, created_at`

func scanMessage(scan func(...interface{}) bool, m *model.Message) bool {
	return scan(&m.RoomID, &m.ID, &m.SenderID, &m.Content, &m.Type,
		&m.ImageRef, &m.FileName, &m.FileSize, &m.ReplyToID, &m.CreatedAt)
}

// FetchMessages returns up to limit messages strictly older than the
// before cursor (a message id, exclusive; zero means newest). Rows come
// back ascending by (created_at, id) for display, fetched descending and
// reversed. A short page means history is exhausted.
func (s *Store) FetchMessages(ctx context.Context, roomID string, limit int, before int64) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	var iter *gocql.Iter
	if before > 0 {
		iter = s.db.Query(`SELECT `+messageColumns+` FROM messages WHERE room_id = ? AND id < ? LIMIT ?`,
			roomID, before, limit).WithContext(ctx).Iter()
	} else {
		iter = s.db.Query(`SELECT `+messageColumns+` FROM messages WHERE room_id = ? LIMIT ?`,
			roomID, limit).WithContext(ctx).Iter()
	}

	var page []model.Message
	var m model.Message
	for scanMessage(iter.Scan, &m) {
		page = append(page, m)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	// Clustering order is id DESC; flip to display order.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// ResolveReply looks up the target of a reply reference. An orphaned
// reference degrades to an unavailable preview, never an error.
func (s *Store) ResolveReply(ctx context.Context, roomID string, replyToID int64) (model.ReplyPreview, error) {
	if replyToID == 0 {
		return model.ReplyPreview{}, nil
	}

	var m model.Message
	err := s.db.Query(`SELECT `+messageColumns+` FROM messages WHERE room_id = ? AND id = ?`,
		roomID, replyToID).WithContext(ctx).Scan(
		&m.RoomID, &m.ID, &m.SenderID, &m.Content, &m.Type,
		&m.ImageRef, &m.FileName, &m.FileSize, &m.ReplyToID, &m.CreatedAt)
	if err == gocql.ErrNotFound {
		return model.ReplyPreview{Available: false}, nil
	}
	if err != nil {
		return model.ReplyPreview{}, fmt.Errorf("resolve reply: %w", err)
	}
	return model.ReplyPreview{Available: true, Message: &m}, nil
}

// SendMessage writes one text message and feeds it to the change stream.
func (s *Store) SendMessage(ctx context.Context, roomID, senderID, content string) (model.Message, error) {
	return s.send(ctx, roomID, senderID, model.Message{
		Type:    model.TypeText,
		Content: content,
	})
}

// SendReply is SendMessage with a weak reference to an earlier message.
// The target is resolved lazily at render time, not embedded here.
func (s *Store) SendReply(ctx context.Context, roomID, senderID, content string, replyToID int64) (model.Message, error) {
	if replyToID == 0 {
		return model.Message{}, fmt.Errorf("%w: reply target required", model.ErrValidation)
	}
	return s.send(ctx, roomID, senderID, model.Message{
		Type:      model.TypeText,
		Content:   content,
		ReplyToID: replyToID,
	})
}

// SendImageMessage records the reference an upload service handed back.
// The blob itself never passes through here.
func (s *Store) SendImageMessage(ctx context.Context, roomID, senderID, imageRef, fileName string, fileSize int64) (model.Message, error) {
	if imageRef == "" {
		return model.Message{}, fmt.Errorf("%w: image reference required", model.ErrValidation)
	}
	if fileSize <= 0 || fileSize > maxUploadBytes {
		return model.Message{}, fmt.Errorf("%w: file size out of bounds", model.ErrValidation)
	}
	return s.send(ctx, roomID, senderID, model.Message{
		Type:     model.TypeImage,
		ImageRef: imageRef,
		FileName: fileName,
		FileSize: fileSize,
	})
}

func (s *Store) send(ctx context.Context, roomID, senderID string, m model.Message) (model.Message, error) {
	if senderID == "" {
		return model.Message{}, model.ErrNoIdentity
	}
	if roomID == "" {
		return model.Message{}, fmt.Errorf("%w: room required", model.ErrValidation)
	}

	switch m.Type {
	case model.TypeText:
		m.Content = strings.TrimSpace(m.Content)
		if m.Content == "" {
			return model.Message{}, fmt.Errorf("%w: empty message", model.ErrValidation)
		}
		if len(m.Content) > maxContentLen {
			return model.Message{}, fmt.Errorf("%w: message too long", model.ErrValidation)
		}
	case model.TypeImage:
		// validated by the caller above
	default:
		return model.Message{}, fmt.Errorf("%w: unknown message type %q", model.ErrValidation, m.Type)
	}

	m.ID = s.ids.Generate()
	m.RoomID = roomID
	m.SenderID = senderID
	// The id embeds its mint time; deriving created_at from it keeps the
	// two ordering components consistent by construction.
	m.CreatedAt = snowflake.Time(m.ID)

	err := s.db.Query(`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RoomID, m.ID, m.SenderID, m.Content, m.Type,
		m.ImageRef, m.FileName, m.FileSize, m.ReplyToID, m.CreatedAt).WithContext(ctx).Exec()
	if err != nil {
		// Single-row insert, nothing partial to clean up.
		return model.Message{}, fmt.Errorf("send message: %w", err)
	}

	ev := model.Event{Kind: model.EventMessage, RoomID: roomID, Message: &m, Timestamp: m.CreatedAt}
	if err := s.pub.Publish(ctx, ev); err != nil {
		// The write is durable; feed delivery is best-effort and viewers
		// recover on their next history fetch.
		log.Printf("Failed to publish message %d to change feed: %v", m.ID, err)
	}
	return m, nil
}

// SearchMessages scans one room's history for a case-insensitive
// substring match, capped to a bounded result count. On-demand only;
// nothing is indexed incrementally.
func (s *Store) SearchMessages(ctx context.Context, roomID, query string) ([]model.Message, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", model.ErrValidation)
	}

	iter := s.db.Query(`SELECT `+messageColumns+` FROM messages WHERE room_id = ?`,
		roomID).WithContext(ctx).Iter()

	var hits []model.Message
	var m model.Message
	for scanMessage(iter.Scan, &m) {
		if m.Type != model.TypeText {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), query) {
			hits = append(hits, m)
			if len(hits) >= maxSearchResults {
				break
			}
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	return hits, nil
}

// UnreadCount counts messages newer than a membership's read watermark.
// The watermark time converts to an id lower bound via the snowflake
// epoch, so this is a single range count on the partition.
func (s *Store) UnreadCount(ctx context.Context, roomID string, lastReadAt time.Time) (int64, error) {
	cutoff := snowflake.Floor(lastReadAt.Add(time.Millisecond))
	var count int64
	err := s.db.Query(`SELECT COUNT(*) FROM messages WHERE room_id = ? AND id >= ?`,
		roomID, cutoff).WithContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}
