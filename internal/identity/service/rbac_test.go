package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermissionsUnionCoarseRoleAndGrants(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &RBACService{Store: st}
	user := createTestUser(t, st, "rbac@example.com")

	// The user row carries the client role even before any explicit grant.
	perms, err := svc.PermissionsFor(ctx, user.ID)
	require.NoError(t, err)
	require.Contains(t, perms, "profile:read")
	require.Contains(t, perms, "mfa:manage")
	require.NotContains(t, perms, "clients:read")

	require.NoError(t, svc.Assign(ctx, user.ID, "therapist"))

	perms, err = svc.PermissionsFor(ctx, user.ID)
	require.NoError(t, err)
	require.Contains(t, perms, "clients:read")

	// Overlapping permissions appear once.
	seen := map[string]int{}
	for _, p := range perms {
		seen[p]++
	}
	require.Equal(t, 1, seen["profile:read"])
}

func TestHasHonorsWildcard(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &RBACService{Store: st}
	user := createTestUser(t, st, "admin@example.com")

	require.NoError(t, svc.Assign(ctx, user.ID, "admin"))

	ok, err := svc.Has(ctx, user.ID, "roles:write")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Has(ctx, user.ID, "anything:at:all")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHasDeniesMissingPermission(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &RBACService{Store: st}
	user := createTestUser(t, st, "plain@example.com")

	ok, err := svc.Has(ctx, user.ID, "roles:write")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAssignAndRemoveRole(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &RBACService{Store: st}
	user := createTestUser(t, st, "grants@example.com")

	require.NoError(t, svc.Assign(ctx, user.ID, "therapist"))

	roles, err := svc.RolesFor(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, "therapist", roles[0].Name)

	require.NoError(t, svc.Remove(ctx, user.ID, "therapist"))

	roles, err = svc.RolesFor(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, roles)
}

func TestAssignUnknownRole(t *testing.T) {
	st := newTestStore(t)
	svc := &RBACService{Store: st}
	user := createTestUser(t, st, "unknown-role@example.com")

	err := svc.Assign(context.Background(), user.ID, "superuser")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListRolesIncludesSeeds(t *testing.T) {
	st := newTestStore(t)
	svc := &RBACService{Store: st}

	roles, err := svc.ListRoles(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	require.Contains(t, names, "client")
	require.Contains(t, names, "therapist")
	require.Contains(t, names, "admin")
}
