package keys

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voicepartnerai/platform/internal/auth"
	"github.com/voicepartnerai/platform/internal/store"
)

type fakeKeyStore struct {
	keys        map[uuid.UUID]store.APIKey
	byHash      map[string]uuid.UUID
	memberships map[uuid.UUID]store.WorkspaceMembership
	touched     map[uuid.UUID]int
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{
		keys:        make(map[uuid.UUID]store.APIKey),
		byHash:      make(map[string]uuid.UUID),
		memberships: make(map[uuid.UUID]store.WorkspaceMembership),
		touched:     make(map[uuid.UUID]int),
	}
}

func (f *fakeKeyStore) CreateAPIKey(ctx context.Context, p store.CreateAPIKeyParams) (store.APIKey, error) {
	key := store.APIKey{
		ID:                 uuid.New(),
		UserID:             p.UserID,
		WorkspaceID:        p.WorkspaceID,
		Name:               p.Name,
		Description:        p.Description,
		KeyPrefix:          p.KeyPrefix,
		SecretHash:         p.SecretHash,
		Scopes:             p.Scopes,
		IsActive:           true,
		RateLimitPerMinute: p.RateLimitPerMinute,
		RateLimitPerHour:   p.RateLimitPerHour,
		RateLimitPerDay:    p.RateLimitPerDay,
		AllowedIPs:         p.AllowedIPs,
		ExpiresAt:          p.ExpiresAt,
		CreatedAt:          time.Now(),
	}
	f.keys[key.ID] = key
	f.byHash[key.SecretHash] = key.ID
	return key, nil
}

func (f *fakeKeyStore) GetAPIKeyBySecretHash(ctx context.Context, hash string) (store.APIKey, error) {
	id, ok := f.byHash[hash]
	if !ok {
		return store.APIKey{}, store.ErrNotFound
	}
	return f.keys[id], nil
}

func (f *fakeKeyStore) GetAPIKeyByID(ctx context.Context, id uuid.UUID) (store.APIKey, error) {
	key, ok := f.keys[id]
	if !ok {
		return store.APIKey{}, store.ErrNotFound
	}
	return key, nil
}

func (f *fakeKeyStore) ListAPIKeysByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]store.APIKey, error) {
	var out []store.APIKey
	for _, key := range f.keys {
		if key.WorkspaceID == workspaceID {
			out = append(out, key)
		}
	}
	return out, nil
}

func (f *fakeKeyStore) TouchAPIKeyUsage(ctx context.Context, id uuid.UUID) error {
	key, ok := f.keys[id]
	if !ok {
		return store.ErrNotFound
	}
	key.UsageCount++
	f.keys[id] = key
	f.touched[id]++
	return nil
}

func (f *fakeKeyStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	key, ok := f.keys[id]
	if !ok {
		return store.ErrNotFound
	}
	key.IsActive = false
	f.keys[id] = key
	return nil
}

func (f *fakeKeyStore) UpdateAPIKey(ctx context.Context, id uuid.UUID, u store.APIKeyUpdate) (store.APIKey, error) {
	key, ok := f.keys[id]
	if !ok {
		return store.APIKey{}, store.ErrNotFound
	}
	if u.Name != nil {
		key.Name = *u.Name
	}
	if u.Description != nil {
		key.Description = *u.Description
	}
	if u.Scopes != nil {
		key.Scopes = u.Scopes
	}
	if u.RateLimitPerMinute != nil {
		key.RateLimitPerMinute = *u.RateLimitPerMinute
	}
	if u.AllowedIPs != nil {
		key.AllowedIPs = u.AllowedIPs
	}
	if u.ClearExpiry {
		key.ExpiresAt = nil
	} else if u.ExpiresAt != nil {
		key.ExpiresAt = u.ExpiresAt
	}
	f.keys[id] = key
	return key, nil
}

func (f *fakeKeyStore) GetMembership(ctx context.Context, workspaceID, userID uuid.UUID) (store.WorkspaceMembership, error) {
	m, ok := f.memberships[userID]
	if !ok || m.WorkspaceID != workspaceID {
		return store.WorkspaceMembership{}, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeKeyStore) addMember(workspaceID, userID uuid.UUID, role store.MembershipRole) {
	f.memberships[userID] = store.WorkspaceMembership{WorkspaceID: workspaceID, UserID: userID, Role: role}
}

func newTestService(st *fakeKeyStore) *Service {
	return NewService(st, nil, Defaults{RequestsPerMinute: 60, RequestsPerHour: 1000, RequestsPerDay: 10000})
}

func TestCreateReturnsPlaintextOnce(t *testing.T) {
	st := newFakeKeyStore()
	workspaceID := uuid.New()
	owner := uuid.New()
	st.addMember(workspaceID, owner, store.MembershipRoleOwner)

	svc := newTestService(st)
	created, err := svc.Create(context.Background(), owner, CreateRequest{
		WorkspaceID: workspaceID,
		Name:        "production",
		Scopes:      []string{ScopeCalls},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(created.Plaintext, "vpa_") {
		t.Fatalf("plaintext %q missing prefix", created.Plaintext)
	}
	if created.Key.SecretHash != auth.HashAPIKey(created.Plaintext) {
		t.Fatal("stored hash does not match plaintext digest")
	}
	if created.Key.KeyPrefix != created.Plaintext[:8] {
		t.Fatalf("display prefix = %q", created.Key.KeyPrefix)
	}
	if created.Key.RateLimitPerMinute != 60 {
		t.Fatalf("minute ceiling = %d, want default 60", created.Key.RateLimitPerMinute)
	}
}

func TestCreateRequiresPermission(t *testing.T) {
	st := newFakeKeyStore()
	workspaceID := uuid.New()
	viewer := uuid.New()
	st.addMember(workspaceID, viewer, store.MembershipRoleViewer)

	svc := newTestService(st)
	_, err := svc.Create(context.Background(), viewer, CreateRequest{WorkspaceID: workspaceID, Name: "k"})
	if err == nil {
		t.Fatal("viewer created a key")
	}

	_, err = svc.Create(context.Background(), uuid.New(), CreateRequest{WorkspaceID: workspaceID, Name: "k"})
	if err == nil {
		t.Fatal("non-member created a key")
	}
}

func TestCreateRejectsUnknownScope(t *testing.T) {
	st := newFakeKeyStore()
	workspaceID := uuid.New()
	owner := uuid.New()
	st.addMember(workspaceID, owner, store.MembershipRoleOwner)

	svc := newTestService(st)
	_, err := svc.Create(context.Background(), owner, CreateRequest{
		WorkspaceID: workspaceID,
		Name:        "bad",
		Scopes:      []string{"superpowers"},
	})
	if err == nil {
		t.Fatal("unknown scope accepted")
	}
}

func createKey(t *testing.T, st *fakeKeyStore, svc *Service, workspaceID, owner uuid.UUID, req CreateRequest) CreatedKey {
	t.Helper()
	req.WorkspaceID = workspaceID
	if req.Name == "" {
		req.Name = "test key"
	}
	created, err := svc.Create(context.Background(), owner, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return created
}

func TestValidate(t *testing.T) {
	st := newFakeKeyStore()
	workspaceID := uuid.New()
	owner := uuid.New()
	st.addMember(workspaceID, owner, store.MembershipRoleOwner)
	svc := newTestService(st)

	created := createKey(t, st, svc, workspaceID, owner, CreateRequest{})

	key, err := svc.Validate(context.Background(), created.Plaintext)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if key.ID != created.Key.ID {
		t.Fatal("validated wrong key")
	}
	if st.touched[key.ID] != 1 {
		t.Fatalf("usage touched %d times, want 1", st.touched[key.ID])
	}
	if key.UsageCount != 1 {
		t.Fatalf("returned usage count = %d, want 1", key.UsageCount)
	}

	if _, err := svc.Validate(context.Background(), "vpa_"+strings.Repeat("x", 36)); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("unknown secret: got %v", err)
	}
	if _, err := svc.Validate(context.Background(), "not-a-key"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("malformed secret: got %v", err)
	}
}

func TestValidateRejectsRevokedAndExpired(t *testing.T) {
	st := newFakeKeyStore()
	workspaceID := uuid.New()
	owner := uuid.New()
	st.addMember(workspaceID, owner, store.MembershipRoleOwner)
	svc := newTestService(st)

	revoked := createKey(t, st, svc, workspaceID, owner, CreateRequest{Name: "revoked"})
	if err := svc.Revoke(context.Background(), owner, revoked.Key.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Validate(context.Background(), revoked.Plaintext); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("revoked key validated: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	expired := createKey(t, st, svc, workspaceID, owner, CreateRequest{Name: "expired", ExpiresAt: &past})
	if _, err := svc.Validate(context.Background(), expired.Plaintext); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expired key validated: %v", err)
	}

	future := time.Now().Add(time.Hour)
	fresh := createKey(t, st, svc, workspaceID, owner, CreateRequest{Name: "fresh", ExpiresAt: &future})
	if _, err := svc.Validate(context.Background(), fresh.Plaintext); err != nil {
		t.Fatalf("unexpired key rejected: %v", err)
	}
}

func TestCheckIPRestriction(t *testing.T) {
	svc := newTestService(newFakeKeyStore())

	open := store.APIKey{}
	if !svc.CheckIPRestriction(open, "203.0.113.7") {
		t.Fatal("empty allow-list should admit any IP")
	}

	restricted := store.APIKey{AllowedIPs: []string{"203.0.113.7", "198.51.100.2"}}
	if !svc.CheckIPRestriction(restricted, "198.51.100.2") {
		t.Fatal("listed IP rejected")
	}
	if svc.CheckIPRestriction(restricted, "198.51.100.3") {
		t.Fatal("unlisted IP admitted")
	}
	// Exact string match only; no CIDR interpretation.
	cidr := store.APIKey{AllowedIPs: []string{"198.51.100.0/24"}}
	if svc.CheckIPRestriction(cidr, "198.51.100.2") {
		t.Fatal("CIDR entry must not match member addresses")
	}
}

func TestCheckScope(t *testing.T) {
	svc := newTestService(newFakeKeyStore())

	key := store.APIKey{Scopes: []string{ScopeRead, ScopeCalls}}
	if !svc.CheckScope(key, ScopeCalls) {
		t.Fatal("granted scope rejected")
	}
	if svc.CheckScope(key, ScopeWrite) {
		t.Fatal("missing scope admitted")
	}
	full := store.APIKey{Scopes: []string{ScopeFullAccess}}
	if !svc.CheckScope(full, ScopeWrite) {
		t.Fatal("full_access should satisfy any scope")
	}
}

func TestRevokeIdempotent(t *testing.T) {
	st := newFakeKeyStore()
	workspaceID := uuid.New()
	owner := uuid.New()
	st.addMember(workspaceID, owner, store.MembershipRoleOwner)
	svc := newTestService(st)

	created := createKey(t, st, svc, workspaceID, owner, CreateRequest{})
	if err := svc.Revoke(context.Background(), owner, created.Key.ID); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := svc.Revoke(context.Background(), owner, created.Key.ID); err != nil {
		t.Fatalf("second revoke should succeed: %v", err)
	}
}

func TestRevokePermissions(t *testing.T) {
	st := newFakeKeyStore()
	workspaceID := uuid.New()
	owner := uuid.New()
	member := uuid.New()
	st.addMember(workspaceID, owner, store.MembershipRoleOwner)
	st.addMember(workspaceID, member, store.MembershipRoleMember)
	svc := newTestService(st)

	created := createKey(t, st, svc, workspaceID, owner, CreateRequest{})

	// A plain member may not revoke someone else's key, and the failure is
	// indistinguishable from the key not existing.
	if err := svc.Revoke(context.Background(), member, created.Key.ID); !errors.Is(err, ErrKeyAccess) {
		t.Fatalf("member revoke: got %v, want ErrKeyAccess", err)
	}
	if err := svc.Revoke(context.Background(), member, uuid.New()); !errors.Is(err, ErrKeyAccess) {
		t.Fatalf("missing key revoke: got %v, want ErrKeyAccess", err)
	}
}

func TestUpdateAppliesOnlySuppliedFields(t *testing.T) {
	st := newFakeKeyStore()
	workspaceID := uuid.New()
	owner := uuid.New()
	st.addMember(workspaceID, owner, store.MembershipRoleOwner)
	svc := newTestService(st)

	created := createKey(t, st, svc, workspaceID, owner, CreateRequest{Name: "before", Description: "desc"})

	newName := "after"
	updated, err := svc.Update(context.Background(), owner, created.Key.ID, store.APIKeyUpdate{Name: &newName})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "after" {
		t.Fatalf("name = %q", updated.Name)
	}
	if updated.Description != "desc" {
		t.Fatalf("description changed: %q", updated.Description)
	}
}
