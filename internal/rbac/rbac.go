// Package rbac maps workspace roles onto the capabilities the key and call
// services check before mutating anything.
package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/voicepartnerai/platform/internal/store"
)

// Permission is a single workspace capability.
type Permission string

const (
	PermResourceCreate  Permission = "resource_create"
	PermResourceEditAll Permission = "resource_edit_all"
	PermResourceView    Permission = "resource_view"
	PermMemberRemove    Permission = "member_remove"
)

var rolePermissions = map[store.MembershipRole]map[Permission]bool{
	store.MembershipRoleOwner: {
		PermResourceCreate:  true,
		PermResourceEditAll: true,
		PermResourceView:    true,
		PermMemberRemove:    true,
	},
	store.MembershipRoleAdmin: {
		PermResourceCreate:  true,
		PermResourceEditAll: true,
		PermResourceView:    true,
		PermMemberRemove:    true,
	},
	store.MembershipRoleMember: {
		PermResourceCreate: true,
		PermResourceView:   true,
	},
	store.MembershipRoleViewer: {
		PermResourceView: true,
	},
}

// ParseRole converts a case-insensitive string to MembershipRole.
func ParseRole(value string) (store.MembershipRole, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "owner":
		return store.MembershipRoleOwner, true
	case "admin":
		return store.MembershipRoleAdmin, true
	case "member":
		return store.MembershipRoleMember, true
	case "viewer":
		return store.MembershipRoleViewer, true
	default:
		return "", false
	}
}

// HasPermission reports whether a role carries the capability.
func HasPermission(role store.MembershipRole, perm Permission) bool {
	return rolePermissions[role][perm]
}

var ErrForbidden = errors.New("forbidden")

type membershipStore interface {
	GetMembership(ctx context.Context, workspaceID, userID uuid.UUID) (store.WorkspaceMembership, error)
}

// Ensure loads the user's membership in the workspace and checks the
// capability. A missing membership returns ErrForbidden rather than a
// not-found error so callers cannot probe workspace existence.
func Ensure(ctx context.Context, memberships membershipStore, workspaceID, userID uuid.UUID, perm Permission) (store.WorkspaceMembership, error) {
	membership, err := memberships.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.WorkspaceMembership{}, ErrForbidden
		}
		return store.WorkspaceMembership{}, err
	}
	if !HasPermission(membership.Role, perm) {
		return store.WorkspaceMembership{}, ErrForbidden
	}
	return membership, nil
}
