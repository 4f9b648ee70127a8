package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// HandleHealth reports service liveness. Always succeeds while the
// process is serving.
func (svc *ConvertService) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"service":     "html2pdf",
		"uptime_secs": int64(time.Since(svc.started).Seconds()),
	})
}

// HandleChromeStats exposes basic observability for the Chrome pool.
func (svc *ConvertService) HandleChromeStats(c *fiber.Ctx) error {
	pool, err := svc.getChromePool()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Chrome pool init failed: "+err.Error())
	}

	if pool == nil {
		return c.JSON(fiber.Map{
			"enabled":        false,
			"capacity":       0,
			"idle":           0,
			"in_use":         0,
			"pool_size_conf": svc.Config.PDF.ChromePoolSize,
			"profile_dir":    "",
			"timeout_secs":   svc.Config.PDF.TimeoutSecs,
			"restarts":       0,
		})
	}

	return c.JSON(pool.Stats(svc.Config.PDF.TimeoutSecs))
}
