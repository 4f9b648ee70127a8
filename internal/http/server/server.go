package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"html2pdf/internal/config"
	"html2pdf/internal/http/handlers"
	"html2pdf/internal/http/middleware"
	"html2pdf/internal/infra/logging"
)

// Deps carries everything the HTTP layer needs. Service may be nil, in
// which case a fresh one is created; main passes a pre-warmed instance.
type Deps struct {
	Config  config.Config
	Redis   *redis.Client
	Service *handlers.ConvertService
}

// New creates and wires the Fiber app: body limit, JSON error handler,
// middleware stack and routes. Every response, including 404s, is JSON
// except the PDF payload itself.
func New(deps Deps) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		BodyLimit:             bodyLimit(cfg),
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}
			logging.Warn("request failed", "path", c.Path(), "status", code, "message", msg)
			return c.Status(code).JSON(fiber.Map{
				"error":   msg,
				"details": "http_error",
			})
		},
	})

	middleware.Register(app, cfg)

	svc := deps.Service
	if svc == nil {
		svc = handlers.NewConvertService(cfg, deps.Redis)
	}

	app.Get("/health", svc.HandleHealth)

	api := app.Group("/api")
	api.Post("/convert", svc.HandleConvert)
	api.Get("/chrome/stats", svc.HandleChromeStats)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "not found")
	})

	return app
}

// bodyLimit leaves headroom above the upload ceiling for the multipart
// framing and settings fields.
func bodyLimit(cfg config.Config) int {
	if cfg.Limits.MaxUploadBytes <= 0 {
		return 50 * 1024 * 1024
	}
	return cfg.Limits.MaxUploadBytes + 1024*1024
}
