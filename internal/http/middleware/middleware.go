package middleware

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"html2pdf/internal/config"
	"html2pdf/internal/infra/logging"
)

// Register attaches the global middleware stack: CORS, request IDs,
// liveness probes, per-client rate limiting and request logging.
func Register(app *fiber.App, cfg config.Config) {
	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New())

	if cfg.RateLimiter.UserLimit > 0 {
		app.Use(userRateLimit(cfg))
	}

	app.Use(func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		logging.Info("incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	})
}

// userRateLimit builds a sliding-window limiter keyed by a hash of the
// client IP and User-Agent. Redis backs the window when reachable,
// otherwise in-process memory storage (single instance only).
func userRateLimit(cfg config.Config) fiber.Handler {
	var store fiber.Storage = memoryStorage.New()
	func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("redis limiter store init panicked, falling back to memory", "panic", r)
			}
		}()
		store = redisStorage.New(redisStorage.Config{
			Addrs:    []string{cfg.Cache.RedisHost},
			Database: cfg.Cache.RateLimitDB,
		})
		logging.Info("using redis for rate limiting", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RateLimitDB)
	}()

	clientKey := func(c *fiber.Ctx) string {
		sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
		return hex.EncodeToString(sum[:])
	}

	return limiter.New(limiter.Config{
		Max:               cfg.RateLimiter.UserLimit,
		Expiration:        cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator:      clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("rate limit exceeded", "client", clientKey(c), "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too many requests",
				"details": "rate_limited",
			})
		},
	})
}
