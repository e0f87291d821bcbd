package public

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/app"
	"github.com/voicepartnerai/platform/internal/httpserver/httputil"
	"github.com/voicepartnerai/platform/internal/requestctx"
	"github.com/voicepartnerai/platform/internal/store"
	"github.com/voicepartnerai/platform/internal/timeutil"
)

type usageHandler struct {
	container *app.Container
}

// stats reports the calling key's own usage over a rolling period
// (?period=7d by default).
func (h *usageHandler) stats(c *fiber.Ctx) error {
	rc, ok := requestctx.FromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "api key required")
	}

	period := c.Query("period", "7d")
	window, err := timeutil.NewWindow(period, time.Now().UTC(), nil)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid period")
	}
	lookbackDays := int(math.Ceil(window.Duration().Hours() / 24))

	stats, err := h.container.Usage.Stats(userContext(c), rc.APIKeyID, lookbackDays)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"period":           window.Period(),
		"window_start":     window.StartString(),
		"window_end":       window.EndString(),
		"total_requests":   stats.TotalRequests,
		"success_requests": stats.SuccessRequests,
		"error_requests":   stats.ErrorRequests,
		"success_rate_pct": stats.SuccessRatePct,
		"total_tokens":     stats.TotalTokens,
		"total_credits":    stats.TotalCredits.String(),
		"avg_latency_ms":   stats.AvgLatencyMs,
		"endpoints":        endpointBreakdown(stats.Endpoints),
	})
}

// endpointBreakdown shapes the per-endpoint rows, error counts included.
func endpointBreakdown(rows []store.EndpointUsage) []fiber.Map {
	out := make([]fiber.Map, 0, len(rows))
	for _, ep := range rows {
		out = append(out, fiber.Map{
			"endpoint":       ep.Endpoint,
			"requests":       ep.Requests,
			"error_count":    ep.ErrorCount,
			"avg_latency_ms": ep.AvgLatencyMs,
		})
	}
	return out
}
