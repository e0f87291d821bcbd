package user

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/audit"
	"github.com/voicepartnerai/platform/internal/auth"
	"github.com/voicepartnerai/platform/internal/httpserver/httputil"
	"github.com/voicepartnerai/platform/internal/store"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	User             userInfo  `json:"user"`
}

type userInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func buildTokenResponse(pair *auth.TokenPair, u store.User) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User: userInfo{
			ID:    u.ID.String(),
			Email: u.Email,
			Name:  u.Name,
		},
	}
}

func (h *userHandler) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "email and password required")
	}

	pair, u, err := h.container.Auth.Authenticate(userContext(c), email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.container.Audit.Record(userContext(c), audit.Entry{
				EventType: audit.EventLoginFailed,
				Severity:  store.AuditSeverityMedium,
				UserEmail: email,
				IPAddress: c.IP(),
				Action:    "login",
				Success:   false,
			})
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid email or password")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, "authentication failed")
	}

	h.container.Audit.Record(userContext(c), audit.Entry{
		EventType: audit.EventLogin,
		Severity:  store.AuditSeverityLow,
		UserID:    &u.ID,
		UserEmail: u.Email,
		IPAddress: c.IP(),
		Action:    "login",
		Success:   true,
	})

	return c.JSON(buildTokenResponse(pair, u))
}

func (h *userHandler) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "refresh_token required")
	}

	pair, u, err := h.container.Auth.Refresh(userContext(c), req.RefreshToken)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid or expired refresh token")
	}

	return c.JSON(buildTokenResponse(pair, u))
}

func (h *userHandler) profile(c *fiber.Ctx) error {
	u, ok := userFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	resp := fiber.Map{
		"id":    u.ID.String(),
		"email": u.Email,
		"name":  u.Name,
	}
	if u.LastLoginAt != nil {
		resp["last_login_at"] = u.LastLoginAt
	}
	return c.JSON(resp)
}
