package main

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/samudaay/portal-chat/pkg/config"
	"github.com/samudaay/portal-chat/pkg/db"
	"github.com/samudaay/portal-chat/pkg/directory"
)

// Sets up both stores: the Scylla message log and the relational
// room/membership/reaction tables.
func main() {
	cfg := config.Load()

	if err := db.EnsureSchema(cfg.ScyllaHostList(), cfg.ScyllaKeyspace); err != nil {
		log.Fatalf("Failed to create Scylla schema: %v", err)
	}
	log.Println("Scylla schema ready")

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	if err := directory.Migrate(gdb); err != nil {
		log.Fatalf("Failed to migrate Postgres tables: %v", err)
	}
	log.Println("Postgres tables ready")
}
