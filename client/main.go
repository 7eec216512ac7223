package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/samudaay/portal-chat/pkg/feed"
	"github.com/samudaay/portal-chat/pkg/model"
)

type loginResponse struct {
	Token string `json:"token"`
}

type frame struct {
	Type      string                  `json:"type"`
	Message   *model.Message          `json:"message,omitempty"`
	MessageID int64                   `json:"message_id,omitempty"`
	Presence  *model.PresenceSnapshot `json:"presence,omitempty"`
}

func login(apiAddr, userID, displayName string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID, "display_name": displayName})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", err
	}
	return lr.Token, nil
}

func apiCall(method, u, token string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s", method, u, string(raw))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func printMessage(m model.Message) {
	switch m.Type {
	case model.TypeImage:
		fmt.Printf("[%s] %s sent an image: %s\n", m.CreatedAt.Format("15:04:05"), m.SenderID, m.ImageRef)
	default:
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.SenderID, m.Content)
	}
}

func main() {
	gatewayAddr := flag.String("addr", "localhost:8080", "gateway service address")
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	userID := flag.String("user", "user1", "user id")
	name := flag.String("name", "", "display name")
	roomID := flag.String("room", "general", "room id")
	dmUser := flag.String("dm", "", "user id to open a private room with (overrides -room)")
	flag.Parse()

	if *name == "" {
		*name = *userID
	}

	log.Printf("Logging in as %s...", *userID)
	token, err := login(*apiAddr, *userID, *name)
	if err != nil {
		log.Fatal("Login failed:", err)
	}

	finalRoom := *roomID
	if *dmUser != "" {
		var room model.Room
		err := apiCall(http.MethodPost, *apiAddr+"/rooms/private", token,
			map[string]string{"other_user_id": *dmUser}, &room)
		if err != nil {
			log.Fatal("Failed to open private room:", err)
		}
		finalRoom = room.ID
	}

	// Seed the view with the latest history page. The live feed will
	// interleave with this; the view dedups and keeps sorted order.
	view := feed.NewRoomView()
	var page []model.Message
	if err := apiCall(http.MethodGet, *apiAddr+"/rooms/"+finalRoom+"/messages", token, nil, &page); err != nil {
		log.Fatal("Failed to fetch history:", err)
	}
	view.Seed(page)
	for _, m := range view.Messages() {
		printMessage(m)
	}

	u := url.URL{Scheme: "ws", Host: *gatewayAddr, Path: "/ws"}
	q := u.Query()
	q.Set("room", finalRoom)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	log.Printf("connecting to room %s", finalRoom)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			for _, chunk := range bytes.Split(raw, []byte{'\n'}) {
				if len(bytes.TrimSpace(chunk)) == 0 {
					continue
				}
				var f frame
				if err := json.Unmarshal(chunk, &f); err != nil {
					continue
				}
				switch f.Type {
				case "message":
					if f.Message != nil && view.Apply(*f.Message) {
						printMessage(*f.Message)
					}
				case "reaction":
					fmt.Printf("* reactions changed on message %d\n", f.MessageID)
				case "presence":
					if f.Presence != nil {
						for _, e := range f.Presence.TypingOthers(*userID) {
							fmt.Printf("* %s is typing...\n", e.DisplayName)
						}
					}
				}
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case line, ok := <-input:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if q, found := strings.CutPrefix(line, "/search "); found {
				var hits []model.Message
				err := apiCall(http.MethodGet,
					*apiAddr+"/rooms/"+finalRoom+"/messages/search?q="+url.QueryEscape(q), token, nil, &hits)
				if err != nil {
					log.Println("search:", err)
					continue
				}
				fmt.Printf("-- %d result(s) --\n", len(hits))
				for _, m := range hits {
					printMessage(m)
				}
				continue
			}

			var sent model.Message
			err := apiCall(http.MethodPost, *apiAddr+"/rooms/"+finalRoom+"/messages", token,
				map[string]string{"content": line}, &sent)
			if err != nil {
				// The draft is the typed line; surface the failure and let
				// the user resend it.
				log.Println("send failed:", err)
				continue
			}
			// Local echo; the feed's copy of this id will be dropped.
			if view.Apply(sent) {
				printMessage(sent)
			}
		}
	}
}
