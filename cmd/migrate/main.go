package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/samirrijal/murmur/internal/adapters/postgres"
	"github.com/samirrijal/murmur/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("murmur-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up", "down":
		if err := postgres.Migrate(ctx, db, os.Args[1]); err != nil {
			log.Fatalf("migrate %s: %v", os.Args[1], err)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}

	log.Printf("migrations %s applied", os.Args[1])
}
