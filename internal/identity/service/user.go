package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/provider"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/pkg/idx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

const defaultRole = "client"

type UserService struct {
	Store store.Store
}

// Reconcile maps a provider-verified principal onto a local user,
// provisioning one just in time when no mapping exists. It is idempotent:
// running it twice for the same principal converges on the same user.
//
// Resolution order:
//  1. an existing (provider, uid) mapping wins outright;
//  2. an existing user with the same email gets the mapping attached,
//     which is how accounts follow a provider migration;
//  3. otherwise a fresh user plus mapping are created atomically.
func (s *UserService) Reconcile(ctx context.Context, p provider.Principal, ptype provider.Type) (domain.User, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)
	email := normalizeEmail(p.Email)

	mapping, err := s.Store.ProviderMappings().GetByProviderUID(ctx, string(ptype), p.UID)
	switch {
	case err == nil:
		user, err := s.Store.Users().GetByID(ctx, mapping.UserID)
		if err != nil {
			return domain.User{}, err
		}
		return s.markProvider(ctx, user, ptype)

	case errors.Is(err, store.ErrNotFound):
		// fall through to email match / provision

	default:
		return domain.User{}, err
	}

	user, err := s.Store.Users().GetByEmail(ctx, email)
	switch {
	case err == nil:
		newMapping := domain.ProviderMapping{
			ID:            idx.NewID(),
			UserID:        user.ID,
			ProviderType:  string(ptype),
			ProviderUID:   p.UID,
			ProviderEmail: email,
			CreatedAt:     now,
		}
		if err := s.Store.ProviderMappings().Create(ctx, newMapping); err != nil {
			// A concurrent reconcile may have attached it first.
			if !errors.Is(err, store.ErrAlreadyExists) {
				return domain.User{}, err
			}
		}
		l.Info("provider mapping attached",
			"user_id", user.ID,
			"provider", ptype,
		)
		return s.markProvider(ctx, user, ptype)

	case errors.Is(err, store.ErrNotFound):
		return s.provision(ctx, p, ptype, email, now)

	default:
		return domain.User{}, err
	}
}

// provision creates the user and its first provider mapping atomically.
func (s *UserService) provision(ctx context.Context, p provider.Principal, ptype provider.Type, email string, now time.Time) (domain.User, error) {
	l := slogx.FromContext(ctx)

	first, last := splitName(p.Name)
	role := p.RoleHint
	if role == "" {
		role = defaultRole
	}

	status := domain.StatusPendingVerification
	if p.EmailVerified {
		status = domain.StatusActive
	}

	user := domain.User{
		ID:                  idx.NewID(),
		Email:               email,
		FirstName:           first,
		LastName:            last,
		Role:                role,
		Status:              status,
		CurrentAuthProvider: string(ptype),
		EmailVerified:       p.EmailVerified,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	mapping := domain.ProviderMapping{
		ID:            idx.NewID(),
		UserID:        user.ID,
		ProviderType:  string(ptype),
		ProviderUID:   p.UID,
		ProviderEmail: email,
		IsPrimary:     true,
		CreatedAt:     now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		if err := tx.ProviderMappings().Create(ctx, mapping); err != nil {
			return err
		}
		// Grant the matching fine-grained role when one is seeded.
		if r, err := tx.Roles().GetByName(ctx, role); err == nil {
			return tx.Roles().AssignToUser(ctx, user.ID, r.ID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a provisioning race; the other writer's user wins.
			return s.Reconcile(ctx, p, ptype)
		}
		return domain.User{}, err
	}

	l.Info("user provisioned",
		"user_id", user.ID,
		"provider", ptype,
		"role", role,
	)
	return user, nil
}

// markProvider records ptype as the provider that last authenticated the
// user.
func (s *UserService) markProvider(ctx context.Context, user domain.User, ptype provider.Type) (domain.User, error) {
	if user.CurrentAuthProvider != string(ptype) {
		if err := s.Store.Users().SetCurrentAuthProvider(ctx, user.ID, string(ptype)); err != nil {
			return domain.User{}, err
		}
		user.CurrentAuthProvider = string(ptype)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.Store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id int64, firstName, lastName string) error {
	return s.Store.Users().UpdateProfile(ctx, id, firstName, lastName)
}

// Deactivate soft-deletes the account and burns its credentials.
func (s *UserService) Deactivate(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateStatus(ctx, id, domain.StatusDeactivated); err != nil {
			return err
		}
		if _, err := tx.RefreshTokens().RevokeAllForUser(ctx, id, now); err != nil {
			return err
		}
		_, err := tx.Sessions().DeactivateAllForUser(ctx, id, "")
		return err
	})
}

// Providers lists the identity providers linked to a user.
func (s *UserService) Providers(ctx context.Context, userID int64) ([]domain.ProviderMapping, error) {
	return s.Store.ProviderMappings().ListByUser(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// splitName breaks a display name into first/last on the final space.
func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	i := strings.LastIndex(name, " ")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}
