package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/jobs"
	"murmur/internal/middleware"
	"murmur/internal/observability"
	"murmur/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"gorm.io/gorm"
)

// Runtime holds everything the server process starts and must stop.
type Runtime struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Server    *server.Server
	Scheduler *jobs.Scheduler

	shutdownTracing func(context.Context) error
}

type runtimeParams struct {
	dig.In

	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Server    *server.Server
	Scheduler *jobs.Scheduler
}

// InitRuntime configures logging and tracing, then resolves the container.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:  observability.ServiceName,
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	container, err := BuildContainer(cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	rt := &Runtime{shutdownTracing: shutdownTracing}
	if err := container.Invoke(func(p runtimeParams) {
		rt.Config = p.Config
		rt.DB = p.DB
		rt.Redis = p.Redis
		rt.Server = p.Server
		rt.Scheduler = p.Scheduler
	}); err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to build runtime: %w", err)
	}

	return rt, nil
}

// Start launches background jobs and blocks serving HTTP until the server stops.
func (r *Runtime) Start() error {
	r.Scheduler.Start()
	return r.Server.Start()
}

// Shutdown stops the scheduler, drains the server and notifier, then closes
// the database, Redis and the tracer in that order.
func (r *Runtime) Shutdown(ctx context.Context) {
	if err := r.Scheduler.Stop(ctx); err != nil {
		middleware.Logger.Error("error stopping scheduler", slog.String("error", err.Error()))
	}

	if err := r.Server.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down server", slog.String("error", err.Error()))
	}

	if r.DB != nil {
		if err := database.Close(r.DB); err != nil {
			middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
		}
	}

	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	if r.shutdownTracing != nil {
		if err := r.shutdownTracing(ctx); err != nil {
			middleware.Logger.Error("error flushing traces", slog.String("error", err.Error()))
		}
	}
}
