package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const callColumns = `id, call_sid, phone_number_id, assistant_id, user_id,
       caller_number, called_number, direction, status, country, region,
       start_time, end_time, duration_seconds, hangup_cause,
       credits_consumed, cost_usd, cost_eur,
       ai_response_ms, ai_confidence, interruption_count, conversation_turns,
       sentiment, intent, recording_key, created_at, updated_at`

func scanCall(row interface{ Scan(dest ...any) error }) (CallLog, error) {
	var c CallLog
	err := row.Scan(
		&c.ID, &c.CallSID, &c.PhoneNumberID, &c.AssistantID, &c.UserID,
		&c.CallerNumber, &c.CalledNumber, &c.Direction, &c.Status, &c.Country, &c.Region,
		&c.StartTime, &c.EndTime, &c.DurationSeconds, &c.HangupCause,
		&c.CreditsConsumed, &c.CostUSD, &c.CostEUR,
		&c.AIResponseMs, &c.AIConfidence, &c.InterruptionCount, &c.ConversationTurns,
		&c.Sentiment, &c.Intent, &c.RecordingKey, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// InsertCallLog persists a freshly started call.
func (s *Store) InsertCallLog(ctx context.Context, c CallLog) (CallLog, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO call_logs (
			call_sid, phone_number_id, assistant_id, user_id,
			caller_number, called_number, direction, status, country, region, start_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+callColumns,
		c.CallSID, c.PhoneNumberID, c.AssistantID, c.UserID,
		c.CallerNumber, c.CalledNumber, c.Direction, c.Status, c.Country, c.Region, c.StartTime,
	)
	out, err := scanCall(row)
	if err != nil {
		return CallLog{}, fmt.Errorf("insert call log: %w", mapExecError(err))
	}
	return out, nil
}

func (s *Store) GetCallBySID(ctx context.Context, callSID string) (CallLog, error) {
	row := s.db.QueryRow(ctx, `SELECT `+callColumns+` FROM call_logs WHERE call_sid = $1`, callSID)
	call, err := scanCall(row)
	if err != nil {
		return CallLog{}, mapRowError(err)
	}
	return call, nil
}

// GetCallBySIDForUpdate locks the row for the duration of the surrounding
// transaction so concurrent webhook deliveries serialize.
func (s *Store) GetCallBySIDForUpdate(ctx context.Context, callSID string) (CallLog, error) {
	row := s.db.QueryRow(ctx, `SELECT `+callColumns+` FROM call_logs WHERE call_sid = $1 FOR UPDATE`, callSID)
	call, err := scanCall(row)
	if err != nil {
		return CallLog{}, mapRowError(err)
	}
	return call, nil
}

// SaveCallLog writes back every mutable column of an existing call row.
func (s *Store) SaveCallLog(ctx context.Context, c CallLog) (CallLog, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE call_logs SET
			status = $2, end_time = $3, duration_seconds = $4, hangup_cause = $5,
			credits_consumed = $6, cost_usd = $7, cost_eur = $8,
			ai_response_ms = $9, ai_confidence = $10,
			interruption_count = $11, conversation_turns = $12,
			sentiment = $13, intent = $14, recording_key = $15,
			updated_at = now()
		WHERE id = $1
		RETURNING `+callColumns,
		c.ID, c.Status, c.EndTime, c.DurationSeconds, c.HangupCause,
		c.CreditsConsumed, c.CostUSD, c.CostEUR,
		c.AIResponseMs, c.AIConfidence,
		c.InterruptionCount, c.ConversationTurns,
		c.Sentiment, c.Intent, c.RecordingKey,
	)
	out, err := scanCall(row)
	if err != nil {
		return CallLog{}, mapRowError(err)
	}
	return out, nil
}

func (s *Store) ListCallsByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]CallLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+callColumns+`
		FROM call_logs
		WHERE user_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	calls := make([]CallLog, 0)
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

func (s *Store) GetPhoneNumberByID(ctx context.Context, id uuid.UUID) (PhoneNumber, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, workspace_id, number, label, total_calls, total_minutes, created_at, updated_at
		FROM phone_numbers WHERE id = $1`, id)
	var n PhoneNumber
	if err := row.Scan(&n.ID, &n.WorkspaceID, &n.Number, &n.Label, &n.TotalCalls, &n.TotalMinutes, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return PhoneNumber{}, mapRowError(err)
	}
	return n, nil
}

// GetPhoneNumberByDialString resolves a registered number from the E.164
// string a provider reports as the called party.
func (s *Store) GetPhoneNumberByDialString(ctx context.Context, number string) (PhoneNumber, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, workspace_id, number, label, total_calls, total_minutes, created_at, updated_at
		FROM phone_numbers WHERE number = $1`, number)
	var n PhoneNumber
	if err := row.Scan(&n.ID, &n.WorkspaceID, &n.Number, &n.Label, &n.TotalCalls, &n.TotalMinutes, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return PhoneNumber{}, mapRowError(err)
	}
	return n, nil
}

func (s *Store) CreatePhoneNumber(ctx context.Context, workspaceID uuid.UUID, number, label string) (PhoneNumber, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO phone_numbers (workspace_id, number, label)
		VALUES ($1, $2, $3)
		RETURNING id, workspace_id, number, label, total_calls, total_minutes, created_at, updated_at`,
		workspaceID, number, label)
	var n PhoneNumber
	if err := row.Scan(&n.ID, &n.WorkspaceID, &n.Number, &n.Label, &n.TotalCalls, &n.TotalMinutes, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return PhoneNumber{}, mapExecError(err)
	}
	return n, nil
}

// AccumulatePhoneNumberUsage adds a finished call into the number's
// cumulative counters.
func (s *Store) AccumulatePhoneNumberUsage(ctx context.Context, id uuid.UUID, minutes decimal.Decimal) error {
	_, err := s.db.Exec(ctx, `
		UPDATE phone_numbers
		SET total_calls = total_calls + 1,
		    total_minutes = total_minutes + $2,
		    updated_at = now()
		WHERE id = $1`, id, minutes)
	return err
}
