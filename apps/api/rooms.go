package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/samudaay/portal-chat/pkg/auth"
)

func (s *Server) ListRooms(w http.ResponseWriter, r *http.Request) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	views, err := s.rooms.ListRooms(r.Context(), id.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

type CreateGroupRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateGroupRoom(w http.ResponseWriter, r *http.Request) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	room, err := s.rooms.CreateGroupRoom(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

type PrivateRoomRequest struct {
	OtherUserID      string `json:"other_user_id"`
	OtherDisplayName string `json:"other_display_name"`
}

// OpenPrivateRoom returns the one private room for the caller and the
// named counterpart, creating it on first contact. Either side may call
// first; both land on the same room.
func (s *Server) OpenPrivateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req PrivateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OtherDisplayName == "" {
		req.OtherDisplayName = req.OtherUserID
	}

	// The counterpart's own membership name beats whatever the caller
	// typed; the request value is only a fallback for never-seen users.
	other := auth.Identity{ID: req.OtherUserID, DisplayName: req.OtherDisplayName}
	if known, err := s.rooms.ResolveIdentity(r.Context(), req.OtherUserID); err == nil {
		other = known
	}

	room, err := s.rooms.GetOrCreatePrivateRoom(r.Context(), id, other)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) JoinRoom(w http.ResponseWriter, r *http.Request) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	roomID := mux.Vars(r)["id"]
	if err := s.rooms.JoinRoom(r.Context(), roomID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// MarkRead advances the caller's read watermark for the room to now.
// Forward-only; a stale call cannot move it back.
func (s *Server) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := auth.IdentityFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	roomID := mux.Vars(r)["id"]
	if err := s.rooms.UpdateLastRead(r.Context(), roomID, id.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type PinRequest struct {
	MessageID int64 `json:"message_id"`
}

func (s *Server) PinMessage(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.IdentityFrom(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	var req PinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	roomID := mux.Vars(r)["id"]
	if err := s.rooms.PinMessage(r.Context(), roomID, req.MessageID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
