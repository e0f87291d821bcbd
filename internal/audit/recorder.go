// Package audit writes the append-only compliance trail. Audit writes are
// best-effort: a failed insert is logged and swallowed so the business
// operation that triggered it never aborts.
package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voicepartnerai/platform/internal/store"
)

// Event types recorded by the platform. The set is closed; handlers pick
// from these constants rather than inventing strings.
const (
	EventLogin         = "user_login"
	EventLoginFailed   = "user_login_failed"
	EventKeyCreated    = "api_key_created"
	EventKeyRevoked    = "api_key_revoked"
	EventKeyUpdated    = "api_key_updated"
	EventCallStarted   = "call_started"
	EventCallCompleted = "call_completed"
	EventGDPRExport    = "gdpr_export"
)

var ErrRecorderUnavailable = errors.New("audit recorder not initialized")

type auditStore interface {
	InsertAuditEntry(ctx context.Context, p store.InsertAuditEntryParams) error
	ListAuditEntries(ctx context.Context, f store.AuditFilter) ([]store.AuditEntry, error)
}

// Recorder persists audit entries and serves compliance listings.
type Recorder struct {
	store  auditStore
	logger *slog.Logger
}

func NewRecorder(st auditStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: st, logger: logger}
}

// Entry is the caller-facing shape of one audit event.
type Entry struct {
	EventType    string
	Severity     store.AuditSeverity
	UserID       *uuid.UUID
	UserEmail    string
	IPAddress    string
	ResourceType string
	ResourceID   string
	ResourceName string
	Action       string
	Metadata     []byte
	OldValues    []byte
	NewValues    []byte
	Success      bool
	ErrorMessage string
}

// Record writes one entry. It returns nothing: audit persistence failure
// must never propagate into the triggering operation, so the error is only
// logged. Severity picks the log level for the local mirror of the event.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.store == nil {
		return
	}
	if e.Severity == "" {
		e.Severity = store.AuditSeverityLow
	}

	err := r.store.InsertAuditEntry(ctx, store.InsertAuditEntryParams{
		EventType:    e.EventType,
		Severity:     e.Severity,
		UserID:       e.UserID,
		UserEmail:    e.UserEmail,
		IPAddress:    e.IPAddress,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		ResourceName: e.ResourceName,
		Action:       e.Action,
		Metadata:     e.Metadata,
		OldValues:    e.OldValues,
		NewValues:    e.NewValues,
		Success:      e.Success,
		ErrorMessage: e.ErrorMessage,
	})
	if err != nil {
		r.logger.Error("audit write failed",
			"event_type", e.EventType,
			"severity", string(e.Severity),
			"error", err)
		return
	}

	logFn := r.logger.Debug
	switch e.Severity {
	case store.AuditSeverityMedium:
		logFn = r.logger.Info
	case store.AuditSeverityHigh:
		logFn = r.logger.Warn
	case store.AuditSeverityCritical:
		logFn = r.logger.Error
	}
	logFn("audit event", "event_type", e.EventType, "action", e.Action, "success", e.Success)
}

// List returns audit entries matching the filter, newest first.
func (r *Recorder) List(ctx context.Context, f store.AuditFilter) ([]store.AuditEntry, error) {
	if r == nil || r.store == nil {
		return nil, ErrRecorderUnavailable
	}
	return r.store.ListAuditEntries(ctx, f)
}
