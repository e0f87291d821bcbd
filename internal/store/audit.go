package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertAuditEntryParams mirrors an append-only audit_log_entries row.
type InsertAuditEntryParams struct {
	EventType    string
	Severity     AuditSeverity
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

func (s *Store) InsertAuditEntry(ctx context.Context, p InsertAuditEntryParams) error {
	metadata := p.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_log_entries (
			event_type, severity, user_id, user_email, ip_address,
			resource_type, resource_id, resource_name, action,
			metadata, old_values, new_values, success, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.EventType, p.Severity, p.UserID, p.UserEmail, p.IPAddress,
		p.ResourceType, p.ResourceID, p.ResourceName, p.Action,
		metadata, p.OldValues, p.NewValues, p.Success, p.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// AuditFilter controls compliance listing.
type AuditFilter struct {
	UserID    uuid.UUID
	EventType string
	Severity  AuditSeverity
	Since     time.Time
	Limit     int32
	Offset    int32
}

func (s *Store) ListAuditEntries(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var userID *uuid.UUID
	if f.UserID != uuid.Nil {
		userID = &f.UserID
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, event_type, severity, user_id, user_email, ip_address,
		       resource_type, resource_id, resource_name, action,
		       metadata, old_values, new_values, success, error_message, ts
		FROM audit_log_entries
		WHERE ($1::uuid IS NULL OR user_id = $1)
		  AND ($2 = '' OR event_type = $2)
		  AND ($3 = '' OR severity = $3)
		  AND ($4::timestamptz IS NULL OR ts >= $4)
		ORDER BY ts DESC
		LIMIT $5 OFFSET $6`,
		userID, f.EventType, string(f.Severity), nullableTime(f.Since), limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0, limit)
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(
			&e.ID, &e.EventType, &e.Severity, &e.UserID, &e.UserEmail, &e.IPAddress,
			&e.ResourceType, &e.ResourceID, &e.ResourceName, &e.Action,
			&e.Metadata, &e.OldValues, &e.NewValues, &e.Success, &e.ErrorMessage, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
