package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string) (User, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, name, password_hash, created_at, updated_at, last_login_at`,
		email, name, passwordHash)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt); err != nil {
		return User{}, fmt.Errorf("create user: %w", mapExecError(err))
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at, last_login_at
		FROM users WHERE email = $1`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt); err != nil {
		return User{}, mapRowError(err)
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at, last_login_at
		FROM users WHERE id = $1`, id)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt); err != nil {
		return User{}, mapRowError(err)
	}
	return u, nil
}

func (s *Store) UpdateUserLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, id)
	return err
}

func (s *Store) CreateWorkspace(ctx context.Context, name string) (Workspace, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO workspaces (name)
		VALUES ($1)
		RETURNING id, name, status, created_at, updated_at`, name)
	var w Workspace
	if err := row.Scan(&w.ID, &w.Name, &w.Status, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	return w, nil
}

func (s *Store) GetWorkspaceByID(ctx context.Context, id uuid.UUID) (Workspace, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, status, created_at, updated_at
		FROM workspaces WHERE id = $1`, id)
	var w Workspace
	if err := row.Scan(&w.ID, &w.Name, &w.Status, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Workspace{}, mapRowError(err)
	}
	return w, nil
}

func (s *Store) UpsertMembership(ctx context.Context, workspaceID, userID uuid.UUID, role MembershipRole) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO workspace_memberships (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		workspaceID, userID, role)
	return err
}

// GetWorkspaceOwner returns the user id of the workspace's owner. When
// several owners exist the longest-standing one wins.
func (s *Store) GetWorkspaceOwner(ctx context.Context, workspaceID uuid.UUID) (uuid.UUID, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id
		FROM workspace_memberships
		WHERE workspace_id = $1 AND role = $2
		ORDER BY created_at
		LIMIT 1`, workspaceID, MembershipRoleOwner)
	var userID uuid.UUID
	if err := row.Scan(&userID); err != nil {
		return uuid.Nil, mapRowError(err)
	}
	return userID, nil
}

func (s *Store) GetMembership(ctx context.Context, workspaceID, userID uuid.UUID) (WorkspaceMembership, error) {
	row := s.db.QueryRow(ctx, `
		SELECT workspace_id, user_id, role, created_at
		FROM workspace_memberships
		WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID)
	var m WorkspaceMembership
	if err := row.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
		return WorkspaceMembership{}, mapRowError(err)
	}
	return m, nil
}
