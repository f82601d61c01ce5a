// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/notifications"
	"murmur/internal/observability"
	"murmur/internal/repository"
	"murmur/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// wiringRetryInterval spaces resubscribe attempts after a failed startup wiring.
const wiringRetryInterval = 5 * time.Second

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	tokens         *middleware.TokenManager
	rateLimiter    *middleware.RateLimiter
	userRepo       repository.UserRepository
	tweetRepo      repository.TweetRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	authService    *service.AuthService
	userService    *service.UserService
	tweetService   *service.TweetService
	uploads        *service.UploadService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: profiles are then read straight from the database,
// rate limits fail open and events are delivered to this instance only.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}

	tokens := middleware.NewTokenManager(cfg.JWTSecret)
	userRepo := repository.NewUserRepository(db, cache.New(redisClient))
	tweetRepo := repository.NewTweetRepository(db)

	hub := notifications.NewHub()
	notifier := notifications.NewNotifier(redisClient, hub, notifications.DefaultQueueSize)
	uploads := service.NewUploadService(cfg)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(observability.ServiceName),
		tokens:         tokens,
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.Env),
		userRepo:       userRepo,
		tweetRepo:      tweetRepo,
		notifier:       notifier,
		hub:            hub,
		uploads:        uploads,
	}
	server.authService = service.NewAuthService(userRepo, tokens)
	server.userService = service.NewUserService(userRepo, notifier)
	server.tweetService = service.NewTweetService(tweetRepo, uploads, notifier)

	return server, nil
}

// Notifier exposes the realtime notifier, mainly for shutdown ordering.
func (s *Server) Notifier() *notifications.Notifier {
	return s.notifier
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "murmur",
		BodyLimit:    int(s.uploads.MaxBytes()) + 1024*1024,
		ErrorHandler: s.ErrorHandler,
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Uploaded images are embedded by browser clients on other origins.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		MaxAge:       86400,
	}))

	// Global rate limiting (300 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static(service.UploadURLPrefix, s.uploads.Dir(), fiber.Static{
		MaxAge: 86400,
	})

	app.Get("/ws", s.WebsocketUpgrade, s.WebsocketHandler())

	api := app.Group("/api")

	// Auth routes
	api.Post("/signup", s.rateLimiter.Limit(5, 10*time.Minute, "signup"), s.Signup)
	api.Post("/login", s.rateLimiter.Limit(10, 5*time.Minute, "login"), s.Login)

	// Tweet routes. Specific /:id/:resource routes are defined before generic ones.
	tweets := api.Group("/tweets")
	tweets.Get("/", s.GetTweets)
	tweets.Post("/", s.withAuth(s.CreateTweet)...)
	tweets.Get("/user/:id", s.GetUserTweets)
	tweets.Post("/:id/like", s.withAuth(s.LikeTweet)...)
	tweets.Post("/:id/comment", s.withAuth(s.CommentOnTweet)...)

	// User routes. /me must be registered before the generic /:id routes.
	users := api.Group("/users")
	users.Get("/me", s.withAuth(s.GetMyProfile)...)
	users.Put("/me", s.withAuth(s.UpdateMyProfile)...)
	users.Get("/:id/following", s.GetFollowing)
	users.Post("/:id/follow", s.withAuth(s.FollowUser)...)
	users.Delete("/:id/follow", s.withAuth(s.UnfollowUser)...)
	users.Get("/:id", s.GetUserProfile)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so an
// unconfigured Redis does not fail readiness but an unreachable one does.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"realtime": fiber.Map{
			"clients":     s.hub.Count(),
			"distributed": s.notifier.Distributed(),
		},
		"time": time.Now(),
	})
}

// ErrorHandler turns errors that escape handlers into the standard error body.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}

	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	// Wire the hub to the Redis subscriber if available. Until wiring
	// succeeds the notifier also delivers to this hub directly.
	if s.notifier.Distributed() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start hub wiring, retrying in background",
				slog.String("hub", s.hub.Name()),
				slog.String("error", err.Error()),
			)
			s.hub.RetryWiring(s.shutdownCtx, s.notifier, wiringRetryInterval)
		}
	}
	s.notifier.Start()

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown drains HTTP traffic, flushes pending events and closes connections.
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.notifier.Stop(ctx); err != nil {
		middleware.Logger.Error("error stopping notifier", slog.String("error", err.Error()))
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub",
			slog.String("hub", s.hub.Name()),
			slog.String("error", err.Error()),
		)
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
