package user

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/httpserver/httputil"
	"github.com/voicepartnerai/platform/internal/store"
)

const maxCallPageSize = 200

func (h *userHandler) listCalls(c *fiber.Ctx) error {
	u, ok := userFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}

	limit := int32(c.QueryInt("limit", 50))
	if limit <= 0 || limit > maxCallPageSize {
		limit = 50
	}
	offset := int32(c.QueryInt("offset", 0))
	if offset < 0 {
		offset = 0
	}

	records, err := h.container.Calls.List(userContext(c), u.ID, limit, offset)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	out := make([]fiber.Map, 0, len(records))
	for _, call := range records {
		out = append(out, buildCallSummary(call))
	}
	return c.JSON(fiber.Map{"calls": out})
}

func buildCallSummary(call store.CallLog) fiber.Map {
	m := fiber.Map{
		"id":               call.ID.String(),
		"call_sid":         call.CallSID,
		"caller_number":    call.CallerNumber,
		"called_number":    call.CalledNumber,
		"direction":        string(call.Direction),
		"status":           string(call.Status),
		"country":          call.Country,
		"start_time":       call.StartTime,
		"duration_seconds": call.DurationSeconds,
		"credits_consumed": call.CreditsConsumed.String(),
		"cost_usd":         call.CostUSD.String(),
		"cost_eur":         call.CostEUR.String(),
	}
	if call.EndTime != nil {
		m["end_time"] = call.EndTime
	}
	if call.Sentiment != "" {
		m["sentiment"] = call.Sentiment
	}
	return m
}

// dailyAnalytics returns the stored aggregate for one calendar day plus a
// thirty day cost projection from that day's spend.
func (h *userHandler) dailyAnalytics(c *fiber.Ctx) error {
	u, ok := userFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}

	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		day = parsed
	}

	snapshot, err := h.container.Analytics.Day(userContext(c), u.ID, day)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httputil.WriteError(c, fiber.StatusNotFound, "no analytics for that day")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	projection := h.container.Calculator.MonthlyProjection(snapshot.CreditsConsumed)

	return c.JSON(fiber.Map{
		"day":                    snapshot.Day.Format("2006-01-02"),
		"total_calls":            snapshot.TotalCalls,
		"completed_calls":        snapshot.CompletedCalls,
		"failed_calls":           snapshot.FailedCalls,
		"total_duration_seconds": snapshot.TotalDurationSeconds,
		"avg_duration_seconds":   snapshot.AvgDurationSeconds,
		"credits_consumed":       snapshot.CreditsConsumed.String(),
		"cost_usd":               snapshot.CostUSD.String(),
		"cost_eur":               snapshot.CostEUR.String(),
		"monthly_projection": fiber.Map{
			"credits":  projection.Credits.String(),
			"cost_usd": projection.CostUSD.String(),
			"cost_eur": projection.CostEUR.String(),
		},
	})
}
