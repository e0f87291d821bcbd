// Package keys implements API key issuance, validation, and lifecycle.
package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voicepartnerai/platform/internal/audit"
	"github.com/voicepartnerai/platform/internal/auth"
	"github.com/voicepartnerai/platform/internal/limits"
	"github.com/voicepartnerai/platform/internal/rbac"
	"github.com/voicepartnerai/platform/internal/store"
)

// Scopes an API key may carry. ScopeFullAccess satisfies any requirement.
const (
	ScopeRead       = "read"
	ScopeWrite      = "write"
	ScopeCalls      = "calls"
	ScopeFullAccess = "full_access"
)

var (
	ErrServiceUnavailable = errors.New("key service not initialized")
	ErrInvalidKey         = errors.New("invalid api key")
	// ErrKeyAccess covers both "no such key" and "no permission" so callers
	// cannot probe which keys exist.
	ErrKeyAccess = errors.New("api key not found or access denied")
)

// Defaults are the rate ceilings applied when a create request leaves them unset.
type Defaults struct {
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
}

type keyStore interface {
	CreateAPIKey(ctx context.Context, p store.CreateAPIKeyParams) (store.APIKey, error)
	GetAPIKeyBySecretHash(ctx context.Context, hash string) (store.APIKey, error)
	GetAPIKeyByID(ctx context.Context, id uuid.UUID) (store.APIKey, error)
	ListAPIKeysByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]store.APIKey, error)
	TouchAPIKeyUsage(ctx context.Context, id uuid.UUID) error
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
	UpdateAPIKey(ctx context.Context, id uuid.UUID, u store.APIKeyUpdate) (store.APIKey, error)
	GetMembership(ctx context.Context, workspaceID, userID uuid.UUID) (store.WorkspaceMembership, error)
}

// Service owns the key lifecycle. All mutations check workspace permissions
// first and record an audit entry afterwards.
type Service struct {
	store    keyStore
	audit    *audit.Recorder
	defaults Defaults
	now      func() time.Time
}

func NewService(st keyStore, auditRec *audit.Recorder, defaults Defaults) *Service {
	return &Service{
		store:    st,
		audit:    auditRec,
		defaults: defaults,
		now:      time.Now,
	}
}

// CreateRequest describes a new key. Zero rate ceilings fall back to the
// service defaults.
type CreateRequest struct {
	WorkspaceID        uuid.UUID
	Name               string
	Description        string
	Scopes             []string
	RateLimitPerMinute int
	RateLimitPerHour   int
	RateLimitPerDay    int
	AllowedIPs         []string
	ExpiresAt          *time.Time
}

// CreatedKey pairs the persisted record with the one-time plaintext.
type CreatedKey struct {
	Key       store.APIKey
	Plaintext string
}

// Create issues a new key for the workspace. The plaintext secret is
// returned exactly once and never retrievable afterwards.
func (s *Service) Create(ctx context.Context, requester uuid.UUID, req CreateRequest) (CreatedKey, error) {
	if s == nil || s.store == nil {
		return CreatedKey{}, ErrServiceUnavailable
	}
	if req.Name == "" {
		return CreatedKey{}, errors.New("key name required")
	}
	if _, err := rbac.Ensure(ctx, s.store, req.WorkspaceID, requester, rbac.PermResourceCreate); err != nil {
		return CreatedKey{}, err
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = []string{ScopeRead}
	}
	for _, scope := range scopes {
		if !validScope(scope) {
			return CreatedKey{}, fmt.Errorf("unknown scope %q", scope)
		}
	}

	plaintext, displayPrefix, err := auth.GenerateAPIKey()
	if err != nil {
		return CreatedKey{}, fmt.Errorf("generate key: %w", err)
	}

	params := store.CreateAPIKeyParams{
		UserID:             requester,
		WorkspaceID:        req.WorkspaceID,
		Name:               req.Name,
		Description:        req.Description,
		KeyPrefix:          displayPrefix,
		SecretHash:         auth.HashAPIKey(plaintext),
		Scopes:             scopes,
		RateLimitPerMinute: orDefault(req.RateLimitPerMinute, s.defaults.RequestsPerMinute),
		RateLimitPerHour:   orDefault(req.RateLimitPerHour, s.defaults.RequestsPerHour),
		RateLimitPerDay:    orDefault(req.RateLimitPerDay, s.defaults.RequestsPerDay),
		AllowedIPs:         req.AllowedIPs,
		ExpiresAt:          req.ExpiresAt,
	}
	key, err := s.store.CreateAPIKey(ctx, params)
	if err != nil {
		return CreatedKey{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		EventType:    audit.EventKeyCreated,
		Severity:     store.AuditSeverityMedium,
		UserID:       &requester,
		ResourceType: "api_key",
		ResourceID:   key.ID.String(),
		ResourceName: key.Name,
		Action:       "created api key " + key.KeyPrefix,
		Success:      true,
	})
	return CreatedKey{Key: key, Plaintext: plaintext}, nil
}

// Validate resolves a plaintext secret to its key record. It rejects
// unknown, revoked, and expired keys with the same ErrInvalidKey. On
// success it bumps usage_count and last_used_at; the bump is a single
// UPDATE so concurrent validations never lose an increment.
func (s *Service) Validate(ctx context.Context, secret string) (store.APIKey, error) {
	if s == nil || s.store == nil {
		return store.APIKey{}, ErrServiceUnavailable
	}
	if !auth.LooksLikeAPIKey(secret) {
		return store.APIKey{}, ErrInvalidKey
	}

	key, err := s.store.GetAPIKeyBySecretHash(ctx, auth.HashAPIKey(secret))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.APIKey{}, ErrInvalidKey
		}
		return store.APIKey{}, err
	}
	if !key.IsActive {
		return store.APIKey{}, ErrInvalidKey
	}
	if key.ExpiresAt != nil && !key.ExpiresAt.After(s.now()) {
		return store.APIKey{}, ErrInvalidKey
	}

	if err := s.store.TouchAPIKeyUsage(ctx, key.ID); err != nil {
		return store.APIKey{}, fmt.Errorf("touch key usage: %w", err)
	}
	key.UsageCount++
	return key, nil
}

// CheckIPRestriction reports whether callerIP may use the key. An empty
// allow-list admits everyone. Matching is literal string equality; CIDR
// ranges are not supported.
func (s *Service) CheckIPRestriction(key store.APIKey, callerIP string) bool {
	if len(key.AllowedIPs) == 0 {
		return true
	}
	for _, ip := range key.AllowedIPs {
		if ip == callerIP {
			return true
		}
	}
	return false
}

// CheckScope reports whether the key can perform an operation requiring the
// given scope. full_access satisfies everything.
func (s *Service) CheckScope(key store.APIKey, required string) bool {
	for _, scope := range key.Scopes {
		if scope == ScopeFullAccess || scope == required {
			return true
		}
	}
	return false
}

// LimitConfig extracts the key's three window ceilings for the limiter.
func LimitConfig(key store.APIKey) limits.LimitConfig {
	return limits.LimitConfig{
		RequestsPerMinute: key.RateLimitPerMinute,
		RequestsPerHour:   key.RateLimitPerHour,
		RequestsPerDay:    key.RateLimitPerDay,
	}
}

// Revoke deactivates a key. Permitted for the key's owner or a workspace
// member with remove permission. Revoking an already-revoked key succeeds.
func (s *Service) Revoke(ctx context.Context, requester, keyID uuid.UUID) error {
	if s == nil || s.store == nil {
		return ErrServiceUnavailable
	}
	key, err := s.authorize(ctx, requester, keyID, rbac.PermMemberRemove)
	if err != nil {
		return err
	}
	if err := s.store.RevokeAPIKey(ctx, key.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		EventType:    audit.EventKeyRevoked,
		Severity:     store.AuditSeverityHigh,
		UserID:       &requester,
		ResourceType: "api_key",
		ResourceID:   key.ID.String(),
		ResourceName: key.Name,
		Action:       "revoked api key " + key.KeyPrefix,
		Success:      true,
	})
	return nil
}

// Update applies the supplied fields. Permitted for the key's owner or an
// edit-all permission holder.
func (s *Service) Update(ctx context.Context, requester, keyID uuid.UUID, u store.APIKeyUpdate) (store.APIKey, error) {
	if s == nil || s.store == nil {
		return store.APIKey{}, ErrServiceUnavailable
	}
	if _, err := s.authorize(ctx, requester, keyID, rbac.PermResourceEditAll); err != nil {
		return store.APIKey{}, err
	}
	if u.Scopes != nil {
		for _, scope := range u.Scopes {
			if !validScope(scope) {
				return store.APIKey{}, fmt.Errorf("unknown scope %q", scope)
			}
		}
	}
	updated, err := s.store.UpdateAPIKey(ctx, keyID, u)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.APIKey{}, ErrKeyAccess
		}
		return store.APIKey{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		EventType:    audit.EventKeyUpdated,
		Severity:     store.AuditSeverityMedium,
		UserID:       &requester,
		ResourceType: "api_key",
		ResourceID:   updated.ID.String(),
		ResourceName: updated.Name,
		Action:       "updated api key " + updated.KeyPrefix,
		Success:      true,
	})
	return updated, nil
}

// Get returns a key's metadata to its owner or a workspace viewer.
func (s *Service) Get(ctx context.Context, requester, keyID uuid.UUID) (store.APIKey, error) {
	if s == nil || s.store == nil {
		return store.APIKey{}, ErrServiceUnavailable
	}
	return s.authorize(ctx, requester, keyID, rbac.PermResourceView)
}

// List returns the workspace's keys to any member with view permission.
func (s *Service) List(ctx context.Context, requester, workspaceID uuid.UUID) ([]store.APIKey, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceUnavailable
	}
	if _, err := rbac.Ensure(ctx, s.store, workspaceID, requester, rbac.PermResourceView); err != nil {
		return nil, err
	}
	return s.store.ListAPIKeysByWorkspace(ctx, workspaceID)
}

// authorize loads the key and checks that the requester is its owner or
// holds the workspace permission. Not-found and no-permission collapse into
// ErrKeyAccess.
func (s *Service) authorize(ctx context.Context, requester, keyID uuid.UUID, perm rbac.Permission) (store.APIKey, error) {
	key, err := s.store.GetAPIKeyByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.APIKey{}, ErrKeyAccess
		}
		return store.APIKey{}, err
	}
	if key.UserID == requester {
		return key, nil
	}
	if _, err := rbac.Ensure(ctx, s.store, key.WorkspaceID, requester, perm); err != nil {
		if errors.Is(err, rbac.ErrForbidden) {
			return store.APIKey{}, ErrKeyAccess
		}
		return store.APIKey{}, err
	}
	return key, nil
}

func validScope(scope string) bool {
	switch scope {
	case ScopeRead, ScopeWrite, ScopeCalls, ScopeFullAccess:
		return true
	}
	return false
}

func orDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
