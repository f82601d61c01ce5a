// Command seed fills the database with demo users, tweets and activity.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numTweets := flag.Int("tweets", 120, "Number of tweets to create")
	maxFollows := flag.Int("follows", 8, "Maximum follows per user")
	maxLikes := flag.Int("likes", 10, "Maximum likes per tweet")
	maxComments := flag.Int("comments", 4, "Maximum comments per tweet")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randomSeed := flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
	flag.Parse()

	if *randomSeed == 0 {
		*randomSeed = time.Now().UnixNano()
	}

	log.Println("Database Seeder")
	log.Printf("Target: %d users, %d tweets, clean=%v, seed=%d\n", *numUsers, *numTweets, *shouldClean, *randomSeed)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	ctx := context.Background()
	rdb, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	s := seed.NewSeeder(db, cache.New(rdb), seed.Options{
		Users:       *numUsers,
		Tweets:      *numTweets,
		MaxFollows:  *maxFollows,
		MaxLikes:    *maxLikes,
		MaxComments: *maxComments,
		ShouldClean: *shouldClean,
		RandomSeed:  *randomSeed,
	})

	res, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d tweets, %d follows, %d likes, %d comments\n",
		len(res.Users), len(res.Tweets), res.Follows, res.Likes, res.Comments)
	log.Printf("All seeded users have the password: %s\n", seed.DefaultPassword)
}
