package user

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/httpserver/httputil"
	"github.com/voicepartnerai/platform/internal/store"
)

// listAuditEntries returns the caller's own audit trail, newest first.
func (h *userHandler) listAuditEntries(c *fiber.Ctx) error {
	u, ok := userFromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}

	filter := store.AuditFilter{
		UserID:    u.ID,
		EventType: c.Query("event_type"),
		Limit:     int32(c.QueryInt("limit", 50)),
		Offset:    int32(c.QueryInt("offset", 0)),
	}
	if severity := c.Query("severity"); severity != "" {
		filter.Severity = store.AuditSeverity(severity)
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid since timestamp")
		}
		filter.Since = since
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}

	entries, err := h.container.Audit.List(userContext(c), filter)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	out := make([]fiber.Map, 0, len(entries))
	for _, entry := range entries {
		m := fiber.Map{
			"id":         entry.ID.String(),
			"event_type": entry.EventType,
			"severity":   string(entry.Severity),
			"action":     entry.Action,
			"success":    entry.Success,
			"timestamp":  entry.Timestamp,
		}
		if entry.ResourceType != "" {
			m["resource_type"] = entry.ResourceType
			m["resource_id"] = entry.ResourceID
		}
		if entry.IPAddress != "" {
			m["ip_address"] = entry.IPAddress
		}
		if entry.ErrorMessage != "" {
			m["error_message"] = entry.ErrorMessage
		}
		out = append(out, m)
	}
	return c.JSON(fiber.Map{"audit_entries": out})
}
