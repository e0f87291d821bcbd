package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const apiKeyColumns = `id, user_id, workspace_id, name, description, key_prefix, secret_hash,
       scopes, is_active, usage_count, last_used_at,
       rate_limit_per_minute, rate_limit_per_hour, rate_limit_per_day,
       allowed_ips, expires_at, created_at, updated_at`

func scanAPIKey(row interface{ Scan(dest ...any) error }) (APIKey, error) {
	var k APIKey
	err := row.Scan(
		&k.ID, &k.UserID, &k.WorkspaceID, &k.Name, &k.Description, &k.KeyPrefix, &k.SecretHash,
		&k.Scopes, &k.IsActive, &k.UsageCount, &k.LastUsedAt,
		&k.RateLimitPerMinute, &k.RateLimitPerHour, &k.RateLimitPerDay,
		&k.AllowedIPs, &k.ExpiresAt, &k.CreatedAt, &k.UpdatedAt,
	)
	return k, err
}

// CreateAPIKeyParams carries everything needed to persist a new key.
type CreateAPIKeyParams struct {
	UserID             uuid.UUID
	WorkspaceID        uuid.UUID
	Name               string
	Description        string
	KeyPrefix          string
	SecretHash         string
	Scopes             []string
	RateLimitPerMinute int
	RateLimitPerHour   int
	RateLimitPerDay    int
	AllowedIPs         []string
	ExpiresAt          *time.Time
}

func (s *Store) CreateAPIKey(ctx context.Context, p CreateAPIKeyParams) (APIKey, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO api_keys (
			user_id, workspace_id, name, description, key_prefix, secret_hash, scopes,
			rate_limit_per_minute, rate_limit_per_hour, rate_limit_per_day,
			allowed_ips, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+apiKeyColumns,
		p.UserID, p.WorkspaceID, p.Name, p.Description, p.KeyPrefix, p.SecretHash, p.Scopes,
		p.RateLimitPerMinute, p.RateLimitPerHour, p.RateLimitPerDay,
		p.AllowedIPs, p.ExpiresAt,
	)
	key, err := scanAPIKey(row)
	if err != nil {
		return APIKey{}, fmt.Errorf("create api key: %w", mapExecError(err))
	}
	return key, nil
}

// GetAPIKeyBySecretHash looks up a key by its deterministic digest. Inactive
// and expired keys are still returned; callers decide how to reject them.
func (s *Store) GetAPIKeyBySecretHash(ctx context.Context, hash string) (APIKey, error) {
	row := s.db.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE secret_hash = $1`, hash)
	key, err := scanAPIKey(row)
	if err != nil {
		return APIKey{}, mapRowError(err)
	}
	return key, nil
}

func (s *Store) GetAPIKeyByID(ctx context.Context, id uuid.UUID) (APIKey, error) {
	row := s.db.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	key, err := scanAPIKey(row)
	if err != nil {
		return APIKey{}, mapRowError(err)
	}
	return key, nil
}

func (s *Store) ListAPIKeysByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]APIKey, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_keys
		WHERE workspace_id = $1
		ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]APIKey, 0)
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// TouchAPIKeyUsage bumps usage_count and last_used_at in a single UPDATE so
// concurrent validations of the same key never lose an increment.
func (s *Store) TouchAPIKeyUsage(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE api_keys
		SET usage_count = usage_count + 1, last_used_at = now()
		WHERE id = $1`, id)
	return err
}

// RevokeAPIKey flips is_active off. Revoking an already-revoked key is a no-op
// that still succeeds.
func (s *Store) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE api_keys
		SET is_active = FALSE, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// APIKeyUpdate carries the mutable key fields; nil pointers leave the column untouched.
type APIKeyUpdate struct {
	Name               *string
	Description        *string
	Scopes             []string
	RateLimitPerMinute *int
	RateLimitPerHour   *int
	RateLimitPerDay    *int
	AllowedIPs         []string
	ExpiresAt          *time.Time
	ClearExpiry        bool
}

func (s *Store) UpdateAPIKey(ctx context.Context, id uuid.UUID, u APIKeyUpdate) (APIKey, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE api_keys SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			scopes = COALESCE($4, scopes),
			rate_limit_per_minute = COALESCE($5, rate_limit_per_minute),
			rate_limit_per_hour = COALESCE($6, rate_limit_per_hour),
			rate_limit_per_day = COALESCE($7, rate_limit_per_day),
			allowed_ips = COALESCE($8, allowed_ips),
			expires_at = CASE WHEN $10 THEN NULL ELSE COALESCE($9, expires_at) END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+apiKeyColumns,
		id, u.Name, u.Description, u.Scopes,
		u.RateLimitPerMinute, u.RateLimitPerHour, u.RateLimitPerDay,
		u.AllowedIPs, u.ExpiresAt, u.ClearExpiry,
	)
	key, err := scanAPIKey(row)
	if err != nil {
		return APIKey{}, mapRowError(err)
	}
	return key, nil
}
