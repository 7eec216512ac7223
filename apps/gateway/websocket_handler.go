package main

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/samudaay/portal-chat/pkg/auth"
	"github.com/samudaay/portal-chat/pkg/directory"
	"github.com/samudaay/portal-chat/pkg/feed"
	"github.com/samudaay/portal-chat/pkg/model"
	"github.com/samudaay/portal-chat/pkg/presence"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Gateway serves one live room view per websocket connection: a message
// subscription, a reaction subscription, and a presence channel, all
// released together on every exit path.
type Gateway struct {
	rooms    *directory.Directory
	tokens   *auth.Tokens
	presence *presence.Hub
	mux      *feed.Multiplexer
}

// Frame is one outbound event on the wire.
type Frame struct {
	Type      string                  `json:"type"` // message | reaction | presence
	Message   *model.Message          `json:"message,omitempty"`
	RoomID    string                  `json:"room_id,omitempty"`
	MessageID int64                   `json:"message_id,omitempty"`
	Presence  *model.PresenceSnapshot `json:"presence,omitempty"`
}

func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenString := auth.FromRequest(r)
	if tokenString == "" {
		log.Println("Unauthorized: No token provided")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := g.tokens.Validate(tokenString)
	if err != nil {
		log.Printf("Unauthorized: Invalid token: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "room query param required", http.StatusBadRequest)
		return
	}

	member, err := g.rooms.IsMember(r.Context(), roomID, id.ID)
	if err != nil {
		http.Error(w, "Membership check failed", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "Not a member of this room", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := newClient(conn, id, roomID)
	go client.writePump()

	// Live subscriptions for this room view. The deferred releases are
	// unconditional: error exits and clean closes tear down the same way,
	// and all three are safe to invoke redundantly.
	msgSub := g.mux.SubscribeMessages(roomID, func(m model.Message) {
		client.enqueue(Frame{Type: "message", Message: &m})
	})
	defer msgSub.Unsubscribe()

	rxnSub := g.mux.SubscribeReactions(roomID, func(roomID string, messageID int64) {
		client.enqueue(Frame{Type: "reaction", RoomID: roomID, MessageID: messageID})
	})
	defer rxnSub.Unsubscribe()

	ch, err := g.presence.Join(r.Context(), roomID, id)
	if err != nil {
		log.Printf("Presence join failed for %s in room %s: %v", id.ID, roomID, err)
		conn.Close()
		return
	}
	defer func() {
		if err := ch.Leave(r.Context()); err != nil {
			log.Printf("Presence leave failed for %s in room %s: %v", id.ID, roomID, err)
		}
	}()

	go func() {
		for snap := range ch.Changes() {
			s := snap
			client.enqueue(Frame{Type: "presence", RoomID: roomID, Presence: &s})
		}
	}()

	log.Printf("Client connected: %s in room %s", id.ID, roomID)
	client.readPump(ch)
	log.Printf("Client disconnected: %s from room %s", id.ID, roomID)
}
