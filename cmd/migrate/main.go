// Command migrate runs schema and data maintenance for the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/repository"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|reconcile>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.DBAutoMigrate = false

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Println("schema migrated")
	case "reconcile":
		// Repaired users are evicted from the profile cache the API reads.
		rdb, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		if rdb != nil {
			defer func() { _ = rdb.Close() }()
		}
		repaired, err := repository.NewUserRepository(db, cache.New(rdb)).ReconcileFollowers(ctx)
		if err != nil {
			return fmt.Errorf("reconcile followers: %w", err)
		}
		log.Printf("repaired follower counters for %d users", len(repaired))
	default:
		return usage()
	}
	return nil
}
