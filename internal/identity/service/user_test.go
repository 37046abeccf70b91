package service

import (
	"context"
	"testing"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/provider"
	"github.com/stretchr/testify/require"
)

func TestReconcileProvisionsNewUser(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st}

	p := provider.Principal{
		UID:           "pool-uid-1",
		Email:         "Alice@Example.COM",
		Name:          "Alice Smith",
		EmailVerified: true,
	}

	user, err := svc.Reconcile(ctx, p, provider.TypeUserPool)
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, "Alice", user.FirstName)
	require.Equal(t, "Smith", user.LastName)
	require.Equal(t, domain.StatusActive, user.Status)
	require.Equal(t, "userpool", user.CurrentAuthProvider)
	require.Equal(t, "client", user.Role)

	// The primary mapping exists.
	m, err := st.ProviderMappings().GetByProviderUID(ctx, "userpool", "pool-uid-1")
	require.NoError(t, err)
	require.Equal(t, user.ID, m.UserID)
	require.True(t, m.IsPrimary)

	// The seeded role is granted as a row too, not just the coarse column.
	roles, err := st.Roles().ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, "client", roles[0].Name)
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st}

	p := provider.Principal{UID: "pool-uid-1", Email: "alice@example.com", EmailVerified: true}

	first, err := svc.Reconcile(ctx, p, provider.TypeUserPool)
	require.NoError(t, err)

	second, err := svc.Reconcile(ctx, p, provider.TypeUserPool)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestReconcileUnverifiedPrincipalIsPending(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st}

	p := provider.Principal{UID: "pool-uid-2", Email: "pending@example.com", EmailVerified: false}

	user, err := svc.Reconcile(ctx, p, provider.TypeUserPool)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPendingVerification, user.Status)
	require.False(t, user.EmailVerified)
}

func TestReconcileAttachesMappingByEmail(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st}

	// A user already exists, provisioned via the local provider.
	local := provider.Principal{UID: "local-uid-1", Email: "alice@example.com", EmailVerified: true}
	existing, err := svc.Reconcile(ctx, local, provider.TypeLocal)
	require.NoError(t, err)

	// The same person now arrives through the hosted pool. The account
	// follows the migration instead of duplicating.
	pool := provider.Principal{UID: "pool-uid-1", Email: "alice@example.com", EmailVerified: true}
	migrated, err := svc.Reconcile(ctx, pool, provider.TypeUserPool)
	require.NoError(t, err)
	require.Equal(t, existing.ID, migrated.ID)
	require.Equal(t, "userpool", migrated.CurrentAuthProvider)

	mappings, err := st.ProviderMappings().ListByUser(ctx, existing.ID)
	require.NoError(t, err)
	require.Len(t, mappings, 2)
}

func TestReconcileHonorsRoleHint(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st}

	p := provider.Principal{
		UID:           "pool-uid-3",
		Email:         "dr@example.com",
		RoleHint:      "therapist",
		EmailVerified: true,
	}

	user, err := svc.Reconcile(ctx, p, provider.TypeUserPool)
	require.NoError(t, err)
	require.Equal(t, "therapist", user.Role)
}

func TestDeactivateRevokesEverything(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st}
	user := createTestUser(t, st, "alice@example.com")
	createTestSession(t, st, user.ID, "sess-1")

	require.NoError(t, svc.Deactivate(ctx, user.ID))

	got, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDeactivated, got.Status)

	sessions, err := st.Sessions().ListActiveForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)
}
