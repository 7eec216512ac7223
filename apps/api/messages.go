package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/samudaay/portal-chat/pkg/auth"
	"github.com/samudaay/portal-chat/pkg/model"
	"github.com/samudaay/portal-chat/pkg/store"
)

// RenderedMessage is the rendering-boundary shape of a message: reaction
// aggregates folded in and the reply target resolved (or marked
// unavailable when orphaned).
type RenderedMessage struct {
	model.Message
	Reactions []model.ReactionGroup `json:"reactions,omitempty"`
	Reply     *model.ReplyPreview   `json:"reply,omitempty"`
}

// render dispatches exhaustively on the message type. An unknown type is
// a bug upstream, not something to half-render.
func render(m model.Message, groups []model.ReactionGroup, reply *model.ReplyPreview) (RenderedMessage, error) {
	switch m.Type {
	case model.TypeText, model.TypeImage:
		return RenderedMessage{Message: m, Reactions: groups, Reply: reply}, nil
	default:
		return RenderedMessage{}, fmt.Errorf("unknown message type %q", m.Type)
	}
}

// pageLimit parses the limit query param, clamped so one request cannot
// ask for an unbounded partition read.
func pageLimit(v string) int {
	limit := store.DefaultPageLimit
	if v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > store.MaxPageLimit {
		limit = store.MaxPageLimit
	}
	return limit
}

// History returns one page of messages older than the cursor, ascending
// for display, with reactions and reply previews attached.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	roomID := mux.Vars(r)["id"]
	limit := pageLimit(r.URL.Query().Get("limit"))
	var before int64
	if v := r.URL.Query().Get("before"); v != "" {
		before, _ = strconv.ParseInt(v, 10, 64)
	}

	ok, err := s.rooms.IsMember(r.Context(), roomID, id.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "Not a member of this room", http.StatusForbidden)
		return
	}

	page, err := s.messages.FetchMessages(r.Context(), roomID, limit, before)
	if err != nil {
		writeError(w, err)
		return
	}

	ids := make([]int64, len(page))
	for i, m := range page {
		ids[i] = m.ID
	}
	byMessage, err := s.reactions.FetchFor(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]RenderedMessage, 0, len(page))
	for _, m := range page {
		var reply *model.ReplyPreview
		if m.ReplyToID != 0 {
			preview, err := s.messages.ResolveReply(r.Context(), roomID, m.ReplyToID)
			if err != nil {
				writeError(w, err)
				return
			}
			reply = &preview
		}

		rm, err := render(m, model.GroupReactions(byMessage[m.ID], id.ID), reply)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, rm)
	}
	writeJSON(w, http.StatusOK, out)
}

type SendRequest struct {
	Type      model.MessageType `json:"type"`
	Content   string            `json:"content"`
	ReplyToID int64             `json:"reply_to_id,omitempty"`
	ImageRef  string            `json:"image_ref,omitempty"`
	FileName  string            `json:"file_name,omitempty"`
	FileSize  int64             `json:"file_size,omitempty"`
}

// Send creates exactly one message. The call returns once the write is
// durable; delivery to other viewers rides the change feed. A failed
// send writes nothing, so the caller can restore the draft.
func (s *Server) Send(w http.ResponseWriter, r *http.Request) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	roomID := mux.Vars(r)["id"]

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ok, err := s.rooms.IsMember(r.Context(), roomID, id.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "Not a member of this room", http.StatusForbidden)
		return
	}

	var msg model.Message
	switch {
	case req.Type == model.TypeImage:
		msg, err = s.messages.SendImageMessage(r.Context(), roomID, id.ID, req.ImageRef, req.FileName, req.FileSize)
	case req.ReplyToID != 0:
		msg, err = s.messages.SendReply(r.Context(), roomID, id.ID, req.Content, req.ReplyToID)
	default:
		msg, err = s.messages.SendMessage(r.Context(), roomID, id.ID, req.Content)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Search runs an on-demand substring scan over the room's history.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	roomID := mux.Vars(r)["id"]

	ok, err := s.rooms.IsMember(r.Context(), roomID, id.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "Not a member of this room", http.StatusForbidden)
		return
	}

	hits, err := s.messages.SearchMessages(r.Context(), roomID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}
