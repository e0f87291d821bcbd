package calls

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voicepartnerai/platform/internal/credits"
	"github.com/voicepartnerai/platform/internal/store"
)

// deduper remembers whether an event id was already processed. Backed by
// Redis SETNX with a TTL; absence of a deduper disables dedup.
type deduper interface {
	FirstDelivery(ctx context.Context, eventID string) (bool, error)
}

// recordingStore fetches a provider-hosted recording and archives it,
// returning the blob key.
type recordingStore interface {
	Archive(ctx context.Context, callSID, recordingURL string) (string, error)
}

// WebhookHandler ingests provider call-status callbacks. Delivery is
// at-least-once, so handling is idempotent and failures are reported as a
// boolean rather than an error; returning an error class a provider would
// retry forever on transient faults.
type WebhookHandler struct {
	service    *Service
	dedup      deduper
	recordings recordingStore
	analyzer   *Analyzer
	logger     *slog.Logger
}

func NewWebhookHandler(service *Service, dedup deduper, recordings recordingStore, analyzer *Analyzer, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{service: service, dedup: dedup, recordings: recordings, analyzer: analyzer, logger: logger}
}

// ProviderEvent is the normalized shape of one provider callback. Caller and
// called numbers let the first event of an inbound call open its ledger
// entry; outbound calls are already in the ledger when events arrive.
type ProviderEvent struct {
	EventID         string
	CallSID         string
	Status          string
	Timestamp       time.Time
	CallerNumber    string
	CalledNumber    string
	DurationSeconds *int64
	HangupCause     string
	PremiumVoice    bool
	AIRequests      int64
	RecordingURL    string
	Transcript      string
}

// MapProviderStatus converts provider vocabulary into the local enum.
func MapProviderStatus(status string) (store.CallStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "queued", "initiated":
		return store.CallStatusQueued, true
	case "ringing":
		return store.CallStatusRinging, true
	case "in-progress", "in_progress", "answered":
		return store.CallStatusInProgress, true
	case "completed":
		return store.CallStatusCompleted, true
	case "busy":
		return store.CallStatusBusy, true
	case "no-answer", "no_answer", "noanswer":
		return store.CallStatusNoAnswer, true
	case "failed", "canceled", "cancelled":
		return store.CallStatusFailed, true
	default:
		return "", false
	}
}

// Handle processes one callback and reports success. On terminal statuses
// the final credit charge is computed from the provider-reported duration.
func (h *WebhookHandler) Handle(ctx context.Context, event ProviderEvent) bool {
	if h == nil || h.service == nil {
		return false
	}

	if h.dedup != nil && event.EventID != "" {
		first, err := h.dedup.FirstDelivery(ctx, event.EventID)
		if err != nil {
			// Dedup store outage must not drop the event; fall through and
			// rely on terminal-state idempotency instead.
			h.logger.Warn("webhook dedup check failed", "event_id", event.EventID, "error", err)
		} else if !first {
			h.logger.Debug("duplicate webhook delivery ignored", "event_id", event.EventID, "call_sid", event.CallSID)
			return true
		}
	}

	status, ok := MapProviderStatus(event.Status)
	if !ok {
		h.logger.Error("webhook carries unknown call status", "status", event.Status, "call_sid", event.CallSID)
		return false
	}

	err := h.apply(ctx, event, status)
	if errors.Is(err, ErrCallNotFound) {
		// First event of an inbound call: open the ledger entry, then
		// apply the event to it.
		if regErr := h.registerInbound(ctx, event); regErr != nil {
			h.logger.Error("inbound call registration failed",
				"call_sid", event.CallSID, "called_number", event.CalledNumber, "error", regErr)
			// A non-terminal event for a call that cannot be registered
			// carries no billing; acknowledge it so the provider stops
			// redelivering. Terminal events are billable and stay failed.
			return !status.IsTerminal()
		}
		err = h.apply(ctx, event, status)
	}
	if err != nil {
		// A duplicate delivery that raced past dedup lands here once the
		// call is already terminal; that is a success, not a failure.
		if errors.Is(err, ErrTerminalCall) {
			return true
		}
		h.logger.Error("webhook handling failed", "call_sid", event.CallSID, "status", event.Status, "error", err)
		return false
	}
	return true
}

func (h *WebhookHandler) apply(ctx context.Context, event ProviderEvent, status store.CallStatus) error {
	if status.IsTerminal() {
		return h.finalize(ctx, event, status)
	}
	_, err := h.service.UpdateCall(ctx, event.CallSID, CallUpdate{Status: &status})
	return err
}

func (h *WebhookHandler) registerInbound(ctx context.Context, event ProviderEvent) error {
	if event.CalledNumber == "" {
		return errors.New("event carries no called number")
	}
	_, err := h.service.StartInboundCall(ctx, event.CallSID, event.CallerNumber, event.CalledNumber, event.Timestamp)
	return err
}

func (h *WebhookHandler) finalize(ctx context.Context, event ProviderEvent, status store.CallStatus) error {
	var duration int64
	if event.DurationSeconds != nil {
		duration = *event.DurationSeconds
	}
	minutes := decimal.NewFromInt(duration).Div(decimal.NewFromInt(60))
	tier := credits.VoiceTierStandard
	if event.PremiumVoice {
		tier = credits.VoiceTierPremium
	}
	finalCredits := h.service.calc.CallCredits(minutes, tier, event.AIRequests)

	endTime := event.Timestamp
	if endTime.IsZero() {
		endTime = h.service.now()
	}

	update := CallUpdate{
		Status:          &status,
		EndTime:         &endTime,
		DurationSeconds: &duration,
		CreditsConsumed: &finalCredits,
	}
	if event.HangupCause != "" {
		update.HangupCause = &event.HangupCause
	}

	if event.RecordingURL != "" && h.recordings != nil {
		key, err := h.recordings.Archive(ctx, event.CallSID, event.RecordingURL)
		if err != nil {
			// The recording is best-effort; the billing update still lands.
			h.logger.Warn("recording archive failed", "call_sid", event.CallSID, "error", err)
		} else {
			update.RecordingKey = &key
		}
	}

	if _, err := h.service.UpdateCall(ctx, event.CallSID, update); err != nil {
		return err
	}
	if h.analyzer != nil && strings.TrimSpace(event.Transcript) != "" {
		h.annotate(ctx, event.CallSID, event.Transcript)
	}
	return nil
}

// annotate backfills sentiment and intent once a call is terminal. The
// classification is best-effort; a model failure never fails the webhook.
func (h *WebhookHandler) annotate(ctx context.Context, callSID, transcript string) {
	analysis, err := h.analyzer.Analyze(ctx, transcript)
	if err != nil {
		h.logger.Warn("call analysis failed", "call_sid", callSID, "error", err)
		return
	}
	update := CallUpdate{Sentiment: &analysis.Sentiment, Intent: &analysis.Intent}
	if _, err := h.service.UpdateCall(ctx, callSID, update); err != nil {
		h.logger.Warn("call analysis backfill failed", "call_sid", callSID, "error", err)
	}
}
