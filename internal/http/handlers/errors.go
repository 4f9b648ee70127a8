package handlers

import (
	"github.com/gofiber/fiber/v2"

	"html2pdf/internal/domain"
	"html2pdf/internal/infra/logging"
)

// respondError maps a classified conversion error to an HTTP response.
// This is the single place where error kinds become status codes and
// caller-visible messages; underlying causes stay in the server logs.
func respondError(c *fiber.Ctx, err error) error {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	if domain.IsValidation(err) {
		logging.Warn("conversion rejected", "kind", string(kind), "path", c.Path(), "error", err.Error())
	} else {
		logging.Error("conversion failed", "kind", string(kind), "path", c.Path(), "error", err.Error())
	}

	return c.Status(status).JSON(fiber.Map{
		"error":   domain.UserMessage(err),
		"details": string(kind),
	})
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindMissingParameter, domain.KindInvalidURL, domain.KindUnsupportedFileType:
		return fiber.StatusBadRequest
	case domain.KindPayloadTooLarge:
		return fiber.StatusRequestEntityTooLarge
	case domain.KindFatalStartup:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
