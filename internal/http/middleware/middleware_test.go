package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"html2pdf/internal/config"
)

func TestRegister_AddsProbesAndRequestID(t *testing.T) {
	app := fiber.New()
	Register(app, config.Default())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	liveResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
	if err != nil {
		t.Fatalf("liveness request failed: %v", err)
	}
	if liveResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected liveness endpoint 200, got %d", liveResp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("ping request failed: %v", err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id to be present")
	}
}

func TestRegister_UserRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimiter.UserLimit = 2
	cfg.Cache.RedisHost = "127.0.0.1:1" // unreachable, falls back to memory storage

	app := fiber.New()
	Register(app, cfg)
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("User-Agent", "limit-test")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		last = resp.StatusCode
	}
	if last != fiber.StatusTooManyRequests {
		t.Fatalf("expected third request to be limited, got %d", last)
	}
}
