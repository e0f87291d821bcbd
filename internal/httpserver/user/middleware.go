package user

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/app"
	"github.com/voicepartnerai/platform/internal/httpserver/httputil"
)

const userAuthHeaderPrefix = "bearer "

func userAuthMiddleware(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearer(c)
		if token == "" {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "authorization required")
		}

		user, err := container.Auth.AuthorizeAccessToken(userContext(c), token)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid or expired token")
		}

		attachUserContext(c, user)
		return c.Next()
	}
}

func extractBearer(c *fiber.Ctx) string {
	raw := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(raw), userAuthHeaderPrefix) {
		return ""
	}
	return strings.TrimSpace(raw[len(userAuthHeaderPrefix):])
}
