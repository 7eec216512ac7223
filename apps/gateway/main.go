package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/samudaay/portal-chat/pkg/auth"
	"github.com/samudaay/portal-chat/pkg/config"
	"github.com/samudaay/portal-chat/pkg/directory"
	"github.com/samudaay/portal-chat/pkg/feed"
	"github.com/samudaay/portal-chat/pkg/presence"
)

func main() {
	cfg := config.Load()

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	rooms := directory.New(gdb, nil)
	tokens := auth.NewTokens(cfg.JWTSecret)
	hub := presence.NewHub(presence.NewRedisBroadcaster(cfg.RedisAddr))
	mux := feed.NewMultiplexer()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "gateway"
	}

	// The change-feed consumer is re-established here, by the caller,
	// after every drop.
	go func() {
		for {
			src := feed.NewKafkaSource(cfg.KafkaBrokerList(), cfg.KafkaTopic, hostname)
			if err := mux.Run(context.Background(), src); err != nil {
				log.Printf("Change feed dropped: %v. Reconnecting in 1s...", err)
			}
			src.Close()
			time.Sleep(1 * time.Second)
		}
	}()

	gw := &Gateway{rooms: rooms, tokens: tokens, presence: hub, mux: mux}

	http.HandleFunc("/ws", gw.ServeWS)

	log.Printf("Gateway Service Starting on %s...", cfg.GatewayAddr)
	if err := http.ListenAndServe(cfg.GatewayAddr, nil); err != nil {
		log.Fatal(err)
	}
}
