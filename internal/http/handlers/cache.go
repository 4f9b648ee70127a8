package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"html2pdf/internal/domain"
	"html2pdf/internal/infra/logging"
)

// computeCacheKey hashes the conversion source and every setting that
// affects output, so two requests share a cache entry only when their
// PDFs would be identical.
func computeCacheKey(req *domain.Request) string {
	h := sha256.New()
	h.Write([]byte(req.SourceType))
	if req.SourceType == domain.SourceURL {
		h.Write([]byte(req.URL))
	} else {
		h.Write(req.FileContent)
	}
	s := req.Settings
	h.Write([]byte(s.PageSize))
	h.Write([]byte(s.Orientation))
	h.Write([]byte(s.Margins))
	h.Write([]byte(strconv.FormatBool(s.IncludeBackground)))
	h.Write([]byte(strconv.FormatBool(s.WaitForDynamicContent)))
	return "pdfcache:" + hex.EncodeToString(h.Sum(nil))
}

// getCachedPDF attempts to serve a previously rendered PDF. Best effort
// with a short timeout so a slow Redis never stalls conversions.
func (svc *ConvertService) getCachedPDF(c *fiber.Ctx, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(c.Context(), 1*time.Second)
	defer cancel()

	cached, err := svc.Redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		logging.Warn("redis read failed", "error", err.Error())
		return nil, err
	}
	logging.Info("PDF cache hit", "key", key)
	return cached, nil
}

// setCachedPDF stores a rendered PDF for the configured TTL.
func (svc *ConvertService) setCachedPDF(c *fiber.Ctx, key string, data []byte) {
	ctx, cancel := context.WithTimeout(c.Context(), 1*time.Second)
	defer cancel()

	ttl := svc.Config.Cache.PDFCacheTTL
	if ttl <= 0 {
		ttl = 1 * time.Minute
	}
	if err := svc.Redis.Set(ctx, key, data, ttl).Err(); err != nil {
		logging.Warn("redis write failed", "error", err.Error())
	}
}
