// Package bootstrap wires process-level dependencies and owns their lifecycle.
package bootstrap

import (
	"context"
	"fmt"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/jobs"
	"murmur/internal/repository"
	"murmur/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"gorm.io/gorm"
)

// ProvideDatabase connects to the configured database.
func ProvideDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

// ProvideRedis connects to Redis. The client is nil when Redis is not configured or unreachable.
func ProvideRedis(cfg *config.Config) (*redis.Client, error) {
	return cache.NewClient(context.Background(), cfg.RedisURL)
}

// ProvideUserRepository builds the cached user repository used by background jobs.
func ProvideUserRepository(db *gorm.DB, rdb *redis.Client) repository.UserRepository {
	return repository.NewUserRepository(db, cache.New(rdb))
}

// ProvideScheduler builds the follower reconcile job, nil when disabled.
func ProvideScheduler(cfg *config.Config, users repository.UserRepository) (*jobs.Scheduler, error) {
	return jobs.NewScheduler(cfg.FollowerReconcileCron, users)
}

// ProvideServer builds the HTTP server.
func ProvideServer(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*server.Server, error) {
	return server.NewServerWithDeps(cfg, db, rdb)
}

// BuildContainer registers every provider against cfg.
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, fmt.Errorf("failed to provide config: %w", err)
	}

	if err := container.Provide(ProvideDatabase); err != nil {
		return nil, fmt.Errorf("failed to provide database: %w", err)
	}

	if err := container.Provide(ProvideRedis); err != nil {
		return nil, fmt.Errorf("failed to provide redis: %w", err)
	}

	if err := container.Provide(ProvideUserRepository); err != nil {
		return nil, fmt.Errorf("failed to provide user repository: %w", err)
	}

	if err := container.Provide(ProvideScheduler); err != nil {
		return nil, fmt.Errorf("failed to provide scheduler: %w", err)
	}

	if err := container.Provide(ProvideServer); err != nil {
		return nil, fmt.Errorf("failed to provide server: %w", err)
	}

	return container, nil
}
