package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/samudaay/portal-chat/pkg/auth"
)

type ReactionRequest struct {
	RoomID string `json:"room_id"`
	Emoji  string `json:"emoji"`
}

func (s *Server) AddReaction(w http.ResponseWriter, r *http.Request) {
	s.reactionChange(w, r, true)
}

func (s *Server) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	s.reactionChange(w, r, false)
}

// reactionChange handles both directions; each is an idempotent toggle
// on the (message, user, emoji) key.
func (s *Server) reactionChange(w http.ResponseWriter, r *http.Request, add bool) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	messageID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid message id", http.StatusBadRequest)
		return
	}

	var req ReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ok, err := s.rooms.IsMember(r.Context(), req.RoomID, id.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "Not a member of this room", http.StatusForbidden)
		return
	}

	if add {
		err = s.reactions.Add(r.Context(), req.RoomID, messageID, id.ID, req.Emoji)
	} else {
		err = s.reactions.Remove(r.Context(), req.RoomID, messageID, id.ID, req.Emoji)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
