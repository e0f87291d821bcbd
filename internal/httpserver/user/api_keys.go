package user

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/voicepartnerai/platform/internal/httpserver/httputil"
	"github.com/voicepartnerai/platform/internal/keys"
	"github.com/voicepartnerai/platform/internal/rbac"
	"github.com/voicepartnerai/platform/internal/store"
)

type apiKeyResponse struct {
	ID                 string     `json:"id"`
	WorkspaceID        string     `json:"workspace_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	KeyPrefix          string     `json:"key_prefix"`
	Scopes             []string   `json:"scopes"`
	IsActive           bool       `json:"is_active"`
	UsageCount         int64      `json:"usage_count"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute"`
	RateLimitPerHour   int        `json:"rate_limit_per_hour"`
	RateLimitPerDay    int        `json:"rate_limit_per_day"`
	AllowedIPs         []string   `json:"allowed_ips,omitempty"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func buildAPIKeyResponse(key store.APIKey) apiKeyResponse {
	return apiKeyResponse{
		ID:                 key.ID.String(),
		WorkspaceID:        key.WorkspaceID.String(),
		Name:               key.Name,
		Description:        key.Description,
		KeyPrefix:          key.KeyPrefix,
		Scopes:             key.Scopes,
		IsActive:           key.IsActive,
		UsageCount:         key.UsageCount,
		RateLimitPerMinute: key.RateLimitPerMinute,
		RateLimitPerHour:   key.RateLimitPerHour,
		RateLimitPerDay:    key.RateLimitPerDay,
		AllowedIPs:         key.AllowedIPs,
		LastUsedAt:         key.LastUsedAt,
		ExpiresAt:          key.ExpiresAt,
		CreatedAt:          key.CreatedAt,
	}
}

type createAPIKeyRequest struct {
	WorkspaceID        string   `json:"workspace_id"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Scopes             []string `json:"scopes"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`
	RateLimitPerHour   int      `json:"rate_limit_per_hour"`
	RateLimitPerDay    int      `json:"rate_limit_per_day"`
	AllowedIPs         []string `json:"allowed_ips"`
	ExpiresAt          *string  `json:"expires_at"`
}

func (h *userHandler) createAPIKey(c *fiber.Ctx) error {
	u, ok := userFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req createAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	workspaceID, err := uuid.Parse(strings.TrimSpace(req.WorkspaceID))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid workspace id")
	}
	if strings.TrimSpace(req.Name) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "name is required")
	}

	createReq := keys.CreateRequest{
		WorkspaceID:        workspaceID,
		Name:               strings.TrimSpace(req.Name),
		Description:        strings.TrimSpace(req.Description),
		Scopes:             req.Scopes,
		RateLimitPerMinute: req.RateLimitPerMinute,
		RateLimitPerHour:   req.RateLimitPerHour,
		RateLimitPerDay:    req.RateLimitPerDay,
		AllowedIPs:         req.AllowedIPs,
	}
	if req.ExpiresAt != nil {
		expires, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid expires_at")
		}
		createReq.ExpiresAt = &expires
	}

	created, err := h.container.Keys.Create(userContext(c), u.ID, createReq)
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrForbidden), errors.Is(err, keys.ErrKeyAccess):
			return httputil.WriteError(c, fiber.StatusForbidden, "not permitted in this workspace")
		case errors.Is(err, store.ErrNotFound):
			return httputil.WriteError(c, fiber.StatusForbidden, "not permitted in this workspace")
		default:
			return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	// The plaintext secret is shown exactly once; only the hash is stored.
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"api_key": buildAPIKeyResponse(created.Key),
		"secret":  created.Plaintext,
	})
}

func (h *userHandler) listAPIKeys(c *fiber.Ctx) error {
	u, ok := userFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	workspaceID, err := uuid.Parse(strings.TrimSpace(c.Query("workspace_id")))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "workspace_id query parameter required")
	}

	records, err := h.container.Keys.List(userContext(c), u.ID, workspaceID)
	if err != nil {
		if errors.Is(err, rbac.ErrForbidden) || errors.Is(err, keys.ErrKeyAccess) {
			return httputil.WriteError(c, fiber.StatusForbidden, "not permitted in this workspace")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	out := make([]apiKeyResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, buildAPIKeyResponse(rec))
	}
	return c.JSON(fiber.Map{"api_keys": out})
}

func (h *userHandler) getAPIKey(c *fiber.Ctx) error {
	u, ok := userFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	keyID, err := uuid.Parse(strings.TrimSpace(c.Params("apiKeyID")))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid api key id")
	}

	key, err := h.container.Keys.Get(userContext(c), u.ID, keyID)
	if err != nil {
		if errors.Is(err, keys.ErrKeyAccess) {
			return httputil.WriteError(c, fiber.StatusNotFound, "api key not found")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(buildAPIKeyResponse(key))
}

type updateAPIKeyRequest struct {
	Name               *string  `json:"name"`
	Description        *string  `json:"description"`
	Scopes             []string `json:"scopes"`
	RateLimitPerMinute *int     `json:"rate_limit_per_minute"`
	RateLimitPerHour   *int     `json:"rate_limit_per_hour"`
	RateLimitPerDay    *int     `json:"rate_limit_per_day"`
	AllowedIPs         []string `json:"allowed_ips"`
	ExpiresAt          *string  `json:"expires_at"`
	ClearExpiry        bool     `json:"clear_expiry"`
}

func (h *userHandler) updateAPIKey(c *fiber.Ctx) error {
	u, ok := userFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	keyID, err := uuid.Parse(strings.TrimSpace(c.Params("apiKeyID")))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid api key id")
	}

	var req updateAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	update := store.APIKeyUpdate{
		Name:               req.Name,
		Description:        req.Description,
		Scopes:             req.Scopes,
		RateLimitPerMinute: req.RateLimitPerMinute,
		RateLimitPerHour:   req.RateLimitPerHour,
		RateLimitPerDay:    req.RateLimitPerDay,
		AllowedIPs:         req.AllowedIPs,
		ClearExpiry:        req.ClearExpiry,
	}
	if req.ExpiresAt != nil {
		expires, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid expires_at")
		}
		update.ExpiresAt = &expires
	}

	key, err := h.container.Keys.Update(userContext(c), u.ID, keyID, update)
	if err != nil {
		switch {
		case errors.Is(err, keys.ErrKeyAccess):
			return httputil.WriteError(c, fiber.StatusNotFound, "api key not found")
		default:
			return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(buildAPIKeyResponse(key))
}

func (h *userHandler) revokeAPIKey(c *fiber.Ctx) error {
	u, ok := userFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	keyID, err := uuid.Parse(strings.TrimSpace(c.Params("apiKeyID")))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid api key id")
	}

	if err := h.container.Keys.Revoke(userContext(c), u.ID, keyID); err != nil {
		if errors.Is(err, keys.ErrKeyAccess) {
			return httputil.WriteError(c, fiber.StatusNotFound, "api key not found")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"revoked": true})
}

func (h *userHandler) apiKeyUsage(c *fiber.Ctx) error {
	u, ok := userFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	keyID, err := uuid.Parse(strings.TrimSpace(c.Params("apiKeyID")))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid api key id")
	}

	// Ownership check: Get applies the same access rules as every other
	// key operation.
	if _, err := h.container.Keys.Get(userContext(c), u.ID, keyID); err != nil {
		if errors.Is(err, keys.ErrKeyAccess) {
			return httputil.WriteError(c, fiber.StatusNotFound, "api key not found")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	lookbackDays := c.QueryInt("days", 7)
	stats, err := h.container.Usage.Stats(userContext(c), keyID, lookbackDays)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	endpoints := make([]fiber.Map, 0, len(stats.Endpoints))
	for _, ep := range stats.Endpoints {
		endpoints = append(endpoints, fiber.Map{
			"endpoint":       ep.Endpoint,
			"requests":       ep.Requests,
			"errors":         ep.ErrorCount,
			"avg_latency_ms": ep.AvgLatencyMs,
		})
	}

	return c.JSON(fiber.Map{
		"lookback_days":    stats.LookbackDays,
		"total_requests":   stats.TotalRequests,
		"success_requests": stats.SuccessRequests,
		"error_requests":   stats.ErrorRequests,
		"success_rate_pct": stats.SuccessRatePct,
		"total_tokens":     stats.TotalTokens,
		"total_credits":    stats.TotalCredits.String(),
		"avg_latency_ms":   stats.AvgLatencyMs,
		"endpoints":        endpoints,
	})
}
