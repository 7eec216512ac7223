package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/samudaay/portal-chat/pkg/auth"
	"github.com/samudaay/portal-chat/pkg/directory"
	"github.com/samudaay/portal-chat/pkg/model"
	"github.com/samudaay/portal-chat/pkg/reactions"
	"github.com/samudaay/portal-chat/pkg/store"
)

// Server holds the core components behind the HTTP surface.
type Server struct {
	rooms     *directory.Directory
	messages  *store.Store
	reactions *reactions.Index
	tokens    *auth.Tokens
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeError maps the core error taxonomy to status codes. Validation and
// identity failures carry their message; anything else is a plain 500, a
// failure of one operation, never the session.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrNoIdentity):
		http.Error(w, "Identity unavailable", http.StatusUnauthorized)
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		log.Printf("Internal error: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

type LoginRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// Login stands in for the external identity provider: it issues a session
// token and ensures default-room membership, idempotently, on every
// session start.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.UserID
	}

	id := auth.Identity{ID: req.UserID, DisplayName: req.DisplayName}
	if err := s.rooms.JoinDefaultRoom(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	token, err := s.tokens.Issue(id)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}
