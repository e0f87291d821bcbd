package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/voicepartnerai/platform/internal/store"
)

func TestHasPermission(t *testing.T) {
	cases := []struct {
		role store.MembershipRole
		perm Permission
		want bool
	}{
		{store.MembershipRoleOwner, PermMemberRemove, true},
		{store.MembershipRoleAdmin, PermResourceEditAll, true},
		{store.MembershipRoleMember, PermResourceCreate, true},
		{store.MembershipRoleMember, PermResourceEditAll, false},
		{store.MembershipRoleMember, PermMemberRemove, false},
		{store.MembershipRoleViewer, PermResourceView, true},
		{store.MembershipRoleViewer, PermResourceCreate, false},
		{store.MembershipRole("unknown"), PermResourceView, false},
	}
	for _, tc := range cases {
		if got := HasPermission(tc.role, tc.perm); got != tc.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	if role, ok := ParseRole(" Admin "); !ok || role != store.MembershipRoleAdmin {
		t.Fatalf("ParseRole(Admin) = %q, %v", role, ok)
	}
	if _, ok := ParseRole("superuser"); ok {
		t.Fatal("unknown role should not parse")
	}
}

type fakeMemberships struct {
	membership store.WorkspaceMembership
	err        error
}

func (f *fakeMemberships) GetMembership(ctx context.Context, workspaceID, userID uuid.UUID) (store.WorkspaceMembership, error) {
	return f.membership, f.err
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	userID := uuid.New()

	t.Run("missing membership is forbidden", func(t *testing.T) {
		_, err := Ensure(ctx, &fakeMemberships{err: store.ErrNotFound}, workspaceID, userID, PermResourceView)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("insufficient role is forbidden", func(t *testing.T) {
		ms := &fakeMemberships{membership: store.WorkspaceMembership{Role: store.MembershipRoleViewer}}
		_, err := Ensure(ctx, ms, workspaceID, userID, PermResourceCreate)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("sufficient role passes", func(t *testing.T) {
		ms := &fakeMemberships{membership: store.WorkspaceMembership{Role: store.MembershipRoleMember}}
		got, err := Ensure(ctx, ms, workspaceID, userID, PermResourceCreate)
		if err != nil {
			t.Fatalf("Ensure: %v", err)
		}
		if got.Role != store.MembershipRoleMember {
			t.Fatalf("role = %s", got.Role)
		}
	})
}
