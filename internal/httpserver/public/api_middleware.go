package public

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/app"
	"github.com/voicepartnerai/platform/internal/httpserver/httputil"
	"github.com/voicepartnerai/platform/internal/keys"
	"github.com/voicepartnerai/platform/internal/limits"
	"github.com/voicepartnerai/platform/internal/requestctx"
	"github.com/voicepartnerai/platform/internal/store"
	"github.com/voicepartnerai/platform/internal/usagelog"
)

const authBearerPrefix = "bearer "

// apiKeyAuth validates the API key, enforces the IP allow list and rate
// limits, and injects the caller identity. Admitted requests are logged to
// the usage log after the handler runs; rejected requests never are, so a
// rejection does not consume quota.
func apiKeyAuth(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		plaintext := extractAPIKey(c)
		if plaintext == "" {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "api key required")
		}

		ctx := userContext(c)
		key, err := container.Keys.Validate(ctx, plaintext)
		if err != nil {
			if errors.Is(err, keys.ErrInvalidKey) {
				container.Observability.RecordKeyValidation("invalid")
				return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid api key")
			}
			return httputil.WriteError(c, fiber.StatusInternalServerError, "api key lookup failed")
		}

		if !container.Keys.CheckIPRestriction(key, c.IP()) {
			container.Observability.RecordKeyValidation("ip_blocked")
			return httputil.WriteError(c, fiber.StatusForbidden, "request ip not allowed")
		}

		result, err := container.RateLimiter.Check(ctx, key.ID, keys.LimitConfig(key))
		if err != nil {
			return httputil.WriteError(c, fiber.StatusInternalServerError, "rate limit check failed")
		}
		setRateLimitHeaders(c, key, result)
		if !result.Allowed {
			container.Observability.RecordKeyValidation("rate_limited")
			container.Observability.RecordRateLimitRejection(string(result.LimitType))
			c.Set(fiber.HeaderRetryAfter, retryAfter(result.LimitType))
			return httputil.WriteError(c, fiber.StatusTooManyRequests, "rate limit exceeded")
		}

		container.Observability.RecordKeyValidation("ok")

		rc := &requestctx.Context{
			APIKeyID:          key.ID,
			WorkspaceID:       key.WorkspaceID,
			UserID:            key.UserID,
			KeyPrefix:         key.KeyPrefix,
			Scopes:            key.Scopes,
			RequestsPerMinute: key.RateLimitPerMinute,
			RequestsPerHour:   key.RateLimitPerHour,
			RequestsPerDay:    key.RateLimitPerDay,
		}
		c.Locals(requestctx.FiberLocalsKey(), rc)
		c.SetUserContext(requestctx.WithContext(ctx, rc))

		start := time.Now()
		handlerErr := c.Next()

		event := usagelog.Event{
			APIKeyID:   key.ID,
			Endpoint:   routePath(c),
			Method:     c.Method(),
			StatusCode: c.Response().StatusCode(),
			IPAddress:  c.IP(),
			UserAgent:  c.Get(fiber.HeaderUserAgent),
			LatencyMs:  time.Since(start).Milliseconds(),
		}
		if handlerErr != nil {
			msg := handlerErr.Error()
			event.ErrorMessage = &msg
		}
		if err := container.Usage.Record(context.WithoutCancel(userContext(c)), event); err != nil {
			container.Observability.RecordUsageLogFailure()
			container.Logger.Error("record usage event",
				slog.String("api_key_id", key.ID.String()),
				slog.String("error", err.Error()),
			)
		}

		return handlerErr
	}
}

// requireScope gates a route on the key's scopes.
func requireScope(container *app.Container, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc, ok := requestctx.FromContext(userContext(c))
		if !ok {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "api key required")
		}
		if !container.Keys.CheckScope(store.APIKey{Scopes: rc.Scopes}, scope) {
			return httputil.WriteError(c, fiber.StatusForbidden, "api key lacks required scope")
		}
		return c.Next()
	}
}

func extractAPIKey(c *fiber.Ctx) string {
	if key := strings.TrimSpace(c.Get("X-API-Key")); key != "" {
		return key
	}
	raw := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(raw), authBearerPrefix) {
		return ""
	}
	return strings.TrimSpace(raw[len(authBearerPrefix):])
}

func setRateLimitHeaders(c *fiber.Ctx, key store.APIKey, result limits.Result) {
	c.Set("X-RateLimit-Limit-Minute", strconv.Itoa(key.RateLimitPerMinute))
	c.Set("X-RateLimit-Remaining-Minute", strconv.Itoa(result.RemainingMinute))
	c.Set("X-RateLimit-Limit-Hour", strconv.Itoa(key.RateLimitPerHour))
	c.Set("X-RateLimit-Remaining-Hour", strconv.Itoa(result.RemainingHour))
	c.Set("X-RateLimit-Limit-Day", strconv.Itoa(key.RateLimitPerDay))
	c.Set("X-RateLimit-Remaining-Day", strconv.Itoa(result.RemainingDay))
}

func retryAfter(window limits.LimitType) string {
	switch window {
	case limits.LimitTypeMinute:
		return "60"
	case limits.LimitTypeHour:
		return "3600"
	default:
		return "86400"
	}
}

func routePath(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

func userContext(c *fiber.Ctx) context.Context {
	if c == nil {
		return context.Background()
	}
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}
