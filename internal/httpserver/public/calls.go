package public

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voicepartnerai/platform/internal/app"
	"github.com/voicepartnerai/platform/internal/calls"
	"github.com/voicepartnerai/platform/internal/httpserver/httputil"
	"github.com/voicepartnerai/platform/internal/requestctx"
	"github.com/voicepartnerai/platform/internal/store"
)

type callsHandler struct {
	container *app.Container
}

type callResponse struct {
	ID              string     `json:"id"`
	CallSID         string     `json:"call_sid"`
	PhoneNumberID   string     `json:"phone_number_id"`
	AssistantID     *string    `json:"assistant_id,omitempty"`
	CallerNumber    string     `json:"caller_number"`
	CalledNumber    string     `json:"called_number"`
	Direction       string     `json:"direction"`
	Status          string     `json:"status"`
	Country         string     `json:"country,omitempty"`
	Region          string     `json:"region,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
	HangupCause     string     `json:"hangup_cause,omitempty"`
	CreditsConsumed string     `json:"credits_consumed"`
	CostUSD         string     `json:"cost_usd"`
	CostEUR         string     `json:"cost_eur"`
	Sentiment       string     `json:"sentiment,omitempty"`
	Intent          string     `json:"intent,omitempty"`
	RecordingKey    string     `json:"recording_key,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func buildCallResponse(call store.CallLog) callResponse {
	resp := callResponse{
		ID:              call.ID.String(),
		CallSID:         call.CallSID,
		PhoneNumberID:   call.PhoneNumberID.String(),
		CallerNumber:    call.CallerNumber,
		CalledNumber:    call.CalledNumber,
		Direction:       string(call.Direction),
		Status:          string(call.Status),
		Country:         call.Country,
		Region:          call.Region,
		StartTime:       call.StartTime,
		EndTime:         call.EndTime,
		DurationSeconds: call.DurationSeconds,
		HangupCause:     call.HangupCause,
		CreditsConsumed: call.CreditsConsumed.String(),
		CostUSD:         call.CostUSD.String(),
		CostEUR:         call.CostEUR.String(),
		Sentiment:       call.Sentiment,
		Intent:          call.Intent,
		RecordingKey:    call.RecordingKey,
		CreatedAt:       call.CreatedAt,
	}
	if call.AssistantID != nil {
		id := call.AssistantID.String()
		resp.AssistantID = &id
	}
	return resp
}

type startCallRequest struct {
	PhoneNumberID string `json:"phone_number_id"`
	AssistantID   string `json:"assistant_id"`
	CallSID       string `json:"call_sid"`
	CallerNumber  string `json:"caller_number"`
	CalledNumber  string `json:"called_number"`
	Direction     string `json:"direction"`
}

func (h *callsHandler) start(c *fiber.Ctx) error {
	rc, ok := requestctx.FromContext(userContext(c))
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "api key required")
	}

	var req startCallRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	phoneNumberID, err := uuid.Parse(strings.TrimSpace(req.PhoneNumberID))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid phone number id")
	}

	start := calls.StartCallRequest{
		PhoneNumberID: phoneNumberID,
		UserID:        rc.UserID,
		CallSID:       strings.TrimSpace(req.CallSID),
		CallerNumber:  strings.TrimSpace(req.CallerNumber),
		CalledNumber:  strings.TrimSpace(req.CalledNumber),
		Direction:     store.CallDirection(req.Direction),
	}
	if req.AssistantID != "" {
		assistantID, err := uuid.Parse(req.AssistantID)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid assistant id")
		}
		start.AssistantID = &assistantID
	}

	call, err := h.container.Calls.StartCall(userContext(c), start)
	if err != nil {
		if errors.Is(err, calls.ErrUnknownPhoneNumber) {
			return httputil.WriteError(c, fiber.StatusUnprocessableEntity, "unknown phone number")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(buildCallResponse(call))
}

func (h *callsHandler) get(c *fiber.Ctx) error {
	callSID := strings.TrimSpace(c.Params("callSID"))
	if callSID == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "call sid required")
	}

	call, err := h.container.Calls.Get(userContext(c), callSID)
	if err != nil {
		if errors.Is(err, calls.ErrCallNotFound) {
			return httputil.WriteError(c, fiber.StatusNotFound, "call not found")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(buildCallResponse(call))
}

type endCallRequest struct {
	Status          string  `json:"status"`
	HangupCause     string  `json:"hangup_cause"`
	CreditsConsumed string  `json:"credits_consumed"`
	EndTime         *string `json:"end_time"`
}

func (h *callsHandler) end(c *fiber.Ctx) error {
	callSID := strings.TrimSpace(c.Params("callSID"))
	if callSID == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "call sid required")
	}

	var req endCallRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	status := store.CallStatus(strings.TrimSpace(req.Status))
	if status == "" {
		status = store.CallStatusCompleted
	}
	if !status.IsTerminal() {
		return httputil.WriteError(c, fiber.StatusBadRequest, "status must be terminal")
	}

	endTime := time.Now().UTC()
	if req.EndTime != nil {
		parsed, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid end_time")
		}
		endTime = parsed
	}

	credits := decimal.Zero
	if strings.TrimSpace(req.CreditsConsumed) != "" {
		parsed, err := decimal.NewFromString(req.CreditsConsumed)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid credits_consumed")
		}
		credits = parsed
	}

	call, err := h.container.Calls.EndCall(userContext(c), callSID, endTime, status, req.HangupCause, credits)
	if err != nil {
		switch {
		case errors.Is(err, calls.ErrCallNotFound):
			return httputil.WriteError(c, fiber.StatusNotFound, "call not found")
		case errors.Is(err, calls.ErrTerminalCall):
			return httputil.WriteError(c, fiber.StatusConflict, "call already finalized")
		default:
			return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(buildCallResponse(call))
}
