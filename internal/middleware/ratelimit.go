package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// RateLimiter counts requests per resource and caller in fixed Redis windows.
type RateLimiter struct {
	rdb     *redis.Client
	enabled bool
	policy  FailPolicy
}

// NewRateLimiter builds a limiter backed by rdb. Limiting is disabled when APP_ENV
// is "test", "development" or "stress" so local workflows are not throttled.
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	enabled := true
	switch env {
	case "", "test", "development", "stress":
		enabled = false
	}
	return &RateLimiter{rdb: rdb, enabled: enabled, policy: FailOpen}
}

// WithPolicy returns a copy of the limiter using the given failure policy.
func (l *RateLimiter) WithPolicy(policy FailPolicy) *RateLimiter {
	cp := *l
	cp.policy = policy
	return &cp
}

// Allow increments the counter for resource/id and reports whether it is still
// within limit for the current window.
func (l *RateLimiter) Allow(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error) {
	if !l.enabled {
		return true, nil
	}
	if l.rdb == nil {
		return false, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(limit), nil
}

// Limit returns a Fiber middleware enforcing limit requests per window. It keys by
// authenticated userID when present, otherwise by remote IP.
func (l *RateLimiter) Limit(limit int, window time.Duration, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if uid := c.Locals("userID"); uid != nil {
			id = fmt.Sprintf("user:%v", uid)
		} else {
			id = fmt.Sprintf("ip:%s", c.IP())
		}

		allowed, err := l.Allow(c.UserContext(), resource, id, limit, window)
		if err != nil {
			if l.policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit unavailable",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			}
			return c.Next()
		}

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
