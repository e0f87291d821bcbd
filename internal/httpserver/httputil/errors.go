package httputil

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// WriteError standardizes JSON error responses across the API surface:
// a single "error" field carrying a human-readable message.
func WriteError(c *fiber.Ctx, status int, msg string) error {
	if msg == "" {
		if msg = http.StatusText(status); msg == "" {
			msg = "unknown error"
		}
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
