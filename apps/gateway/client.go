package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/samudaay/portal-chat/pkg/auth"
	"github.com/samudaay/portal-chat/pkg/presence"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Client is a middleman between the websocket connection and the live
// room view. Sends and reads go through the API service; the only
// inbound traffic here is ephemeral signaling.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	user   auth.Identity
	roomID string
}

func newClient(conn *websocket.Conn, user auth.Identity, roomID string) *Client {
	return &Client{conn: conn, send: make(chan []byte, 256), user: user, roomID: roomID}
}

func (c *Client) enqueue(f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		log.Printf("Failed to marshal frame: %v", err)
		return
	}
	select {
	case c.send <- payload:
	default:
		// Slow consumer; drop rather than block the fanout.
	}
}

// inboundFrame is what the browser may send: typing signals only.
type inboundFrame struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// readPump consumes typing signals until the peer goes away. Returning
// from it unwinds the handler's deferred releases.
func (c *Client) readPump(ch *presence.Channel) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			return
		}

		var in inboundFrame
		if err := json.Unmarshal(raw, &in); err != nil {
			continue
		}
		if in.Type == "typing" {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := ch.SetTyping(ctx, in.IsTyping); err != nil {
				log.Printf("Failed to set typing for %s: %v", c.user.ID, err)
			}
			cancel()
		}
	}
}

// writePump pumps frames to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued frames to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
