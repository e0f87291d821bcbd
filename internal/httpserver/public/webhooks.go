package public

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/app"
	"github.com/voicepartnerai/platform/internal/calls"
	"github.com/voicepartnerai/platform/internal/httpserver/httputil"
)

type webhooksHandler struct {
	container *app.Container
}

// telephonyEvent is the carrier's status callback payload.
type telephonyEvent struct {
	EventID         string `json:"event_id"`
	CallSID         string `json:"call_sid"`
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	DurationSeconds *int64 `json:"duration_seconds"`
	HangupCause     string `json:"hangup_cause"`
	PremiumVoice    bool   `json:"premium_voice"`
	AIRequests      int64  `json:"ai_requests"`
	RecordingURL    string `json:"recording_url"`
	Transcript      string `json:"transcript"`
}

// telephony accepts carrier status callbacks. A 200 acknowledges the event;
// anything else makes the carrier redeliver, so only processing failures
// return 5xx.
func (h *webhooksHandler) telephony(c *fiber.Ctx) error {
	var payload telephonyEvent
	if err := c.BodyParser(&payload); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid webhook payload")
	}
	if strings.TrimSpace(payload.CallSID) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "call_sid required")
	}

	ts := time.Now().UTC()
	if payload.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, payload.Timestamp); err == nil {
			ts = parsed
		}
	}

	ok := h.container.Webhooks.Handle(userContext(c), calls.ProviderEvent{
		EventID:         payload.EventID,
		CallSID:         payload.CallSID,
		Status:          payload.Status,
		Timestamp:       ts,
		CallerNumber:    payload.From,
		CalledNumber:    payload.To,
		DurationSeconds: payload.DurationSeconds,
		HangupCause:     payload.HangupCause,
		PremiumVoice:    payload.PremiumVoice,
		AIRequests:      payload.AIRequests,
		RecordingURL:    payload.RecordingURL,
		Transcript:      payload.Transcript,
	})
	if !ok {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "webhook processing failed")
	}

	return c.SendStatus(fiber.StatusOK)
}
