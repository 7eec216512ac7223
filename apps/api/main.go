package main

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/samudaay/portal-chat/pkg/auth"
	"github.com/samudaay/portal-chat/pkg/config"
	"github.com/samudaay/portal-chat/pkg/db"
	"github.com/samudaay/portal-chat/pkg/directory"
	"github.com/samudaay/portal-chat/pkg/feed"
	"github.com/samudaay/portal-chat/pkg/reactions"
	"github.com/samudaay/portal-chat/pkg/snowflake"
	"github.com/samudaay/portal-chat/pkg/store"
)

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg := config.Load()

	session, err := db.NewSession(cfg.ScyllaHostList(), cfg.ScyllaKeyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	ids, err := snowflake.NewNode(1)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	producer := feed.NewProducer(cfg.KafkaBrokerList(), cfg.KafkaTopic)
	defer producer.Close()

	messages := store.New(session, ids, producer)
	rooms := directory.New(gdb, messages)
	index := reactions.New(gdb, producer)
	tokens := auth.NewTokens(cfg.JWTSecret)

	api := &Server{
		rooms:     rooms,
		messages:  messages,
		reactions: index,
		tokens:    tokens,
	}

	r := mux.NewRouter()
	r.HandleFunc("/login", api.Login).Methods(http.MethodPost, http.MethodOptions)

	protected := r.PathPrefix("/").Subrouter()
	protected.Use(tokens.Middleware)
	protected.HandleFunc("/rooms", api.ListRooms).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/group", api.CreateGroupRoom).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/private", api.OpenPrivateRoom).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{id}/join", api.JoinRoom).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{id}/read", api.MarkRead).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{id}/pin", api.PinMessage).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{id}/messages", api.History).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{id}/messages", api.Send).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{id}/messages/search", api.Search).Methods(http.MethodGet)
	protected.HandleFunc("/messages/{id}/reactions", api.AddReaction).Methods(http.MethodPost)
	protected.HandleFunc("/messages/{id}/reactions", api.RemoveReaction).Methods(http.MethodDelete)

	log.Printf("API Service Starting on %s...", cfg.APIAddr)
	if err := http.ListenAndServe(cfg.APIAddr, CORSMiddleware(r)); err != nil {
		log.Fatal(err)
	}
}
