package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"html2pdf/internal/config"
	"html2pdf/internal/http/handlers"
	"html2pdf/internal/http/server"
	"html2pdf/internal/infra/logging"
)

func main() {
	cfg := config.Load()

	logging.Init(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	var rdb *redis.Client
	if cfg.Cache.PDFCacheEnabled {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.PDFCacheDB,
		})
	}

	svc := handlers.NewConvertService(cfg, rdb)

	// A broken engine must refuse to serve instead of failing every request.
	if cfg.PDF.ChromePoolSize > 0 {
		warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := svc.InitPool(warmCtx)
		cancel()
		if err != nil {
			logging.Error("chrome startup failed, refusing to serve", "error", err.Error())
			os.Exit(1)
		}
		logging.Info("chrome pool warmed", "size", cfg.PDF.ChromePoolSize)
	}

	app := server.New(server.Deps{Config: cfg, Redis: rdb, Service: svc})

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, svc, idleConnsClosed)
	<-idleConnsClosed
}

// startServer starts the Fiber app and shuts it down cleanly on
// SIGINT/SIGTERM: in-flight requests get a grace period, then the
// shared browser is closed before exit.
func startServer(app *fiber.App, cfg config.Config, svc *handlers.ConvertService, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("server error", "error", err.Error())
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	logging.Warn("shutdown signal received, closing server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("server forced to shutdown", "error", err.Error())
	}
	if svc != nil {
		svc.ClosePool()
	}

	close(idleConnsClosed)
	logging.Info("server stopped cleanly")
}
