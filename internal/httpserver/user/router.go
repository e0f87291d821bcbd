package user

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/app"
)

type userHandler struct {
	container *app.Container
}

// Register wires up session auth plus the authenticated dashboard endpoints.
func Register(router *fiber.App, container *app.Container) {
	if router == nil || container == nil {
		return
	}

	handler := &userHandler{container: container}

	router.Post("/auth/login", handler.login)
	router.Post("/auth/refresh", handler.refresh)

	group := router.Group("/user", userAuthMiddleware(container))
	group.Get("/profile", handler.profile)

	group.Get("/api-keys", handler.listAPIKeys)
	group.Post("/api-keys", handler.createAPIKey)
	group.Get("/api-keys/:apiKeyID", handler.getAPIKey)
	group.Patch("/api-keys/:apiKeyID", handler.updateAPIKey)
	group.Post("/api-keys/:apiKeyID/revoke", handler.revokeAPIKey)
	group.Get("/api-keys/:apiKeyID/usage", handler.apiKeyUsage)

	group.Get("/calls", handler.listCalls)
	group.Get("/analytics/daily", handler.dailyAnalytics)
	group.Get("/audit", handler.listAuditEntries)
}
