package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/pkg/cryptox"
	"github.com/clearmind-health/identity/pkg/idx"
	"github.com/clearmind-health/identity/pkg/jwtx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// AMR values stamped into access tokens.
const (
	AMRPassword = "pwd"
	AMRMFA      = "mfa"
	AMRRefresh  = "refresh"
	AMRFederate = "fed"
)

type TokenService struct {
	Signer        *jwtx.Signer
	Store         store.Store
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration
}

// IssueInput carries everything a token issuance needs besides the user.
type IssueInput struct {
	SessionID    string
	DeviceID     string
	ProviderType string
	AMR          []string
	Device       domain.DeviceInfo
	RememberMe   bool
}

// Issue signs a fresh access token and mints the opaque refresh token that
// anchors the rotation chain. Only the refresh fingerprint is persisted.
func (s *TokenService) Issue(ctx context.Context, user domain.User, in IssueInput) (*domain.TokenPair, error) {
	now := time.Now().UTC()

	accessToken, err := s.signAccess(user, in.SessionID, in.ProviderType, in.AMR, now)
	if err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	rt := domain.RefreshToken{
		ID:        idx.NewHandle(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		SessionID: in.SessionID,
		DeviceID:  in.DeviceID,
		IP:        in.Device.IP,
		UserAgent: in.Device.UserAgent,
		ExpiresAt: now.Add(s.refreshTTL(in.RememberMe)),
		CreatedAt: now,
	}

	if err := s.Store.RefreshTokens().Create(ctx, rt); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// Rotate exchanges a refresh token for a new pair. A token may be redeemed
// exactly once: the old row is revoked and a successor inserted in one
// transaction. Presenting an already-revoked token is treated as theft and
// burns every token the user holds.
func (s *TokenService) Rotate(ctx context.Context, refreshOpaque string, d domain.DeviceInfo) (*domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	if rt.RevokedAt != nil {
		// Replay of a consumed token. Someone, possibly the legitimate
		// client, holds stolen material; the whole family dies.
		return nil, s.handleReuse(ctx, rt, d, now)
	}
	if now.After(rt.ExpiresAt) {
		return nil, ErrInvalidRefresh
	}

	user, err := s.Store.Users().GetByID(ctx, rt.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status != domain.StatusActive {
		return nil, ErrAccountNotActive
	}

	accessToken, err := s.signAccess(user, rt.SessionID, user.CurrentAuthProvider, []string{AMRRefresh}, now)
	if err != nil {
		return nil, err
	}

	newOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	newRT := domain.RefreshToken{
		ID:        idx.NewHandle(),
		UserID:    rt.UserID,
		TokenHash: cryptox.FingerprintToken(newOpaque),
		SessionID: rt.SessionID, // lineage survives rotation
		DeviceID:  rt.DeviceID,
		IP:        d.IP,
		UserAgent: d.UserAgent,
		// Sliding window: the successor gets the predecessor's full lifetime
		// measured from now, so an actively-used chain never expires mid-use.
		ExpiresAt: now.Add(rt.ExpiresAt.Sub(rt.CreatedAt)),
		CreatedAt: now,
	}

	// Revoke-then-insert atomically. Revoke only matches live rows, so the
	// loser of a concurrent double-redeem sees revoked=false and we treat
	// that exactly like a replay.
	var lost bool
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		revoked, err := tx.RefreshTokens().Revoke(ctx, rt.ID, now)
		if err != nil {
			return err
		}
		if !revoked {
			lost = true
			return ErrTokenReuse
		}
		return tx.RefreshTokens().Create(ctx, newRT)
	})
	if lost {
		return nil, s.handleReuse(ctx, rt, d, now)
	}
	if err != nil {
		return nil, err
	}

	// Keep the session's activity clock moving with the chain.
	if err := s.Store.Sessions().Touch(ctx, rt.SessionID, now); err != nil {
		l.Warn("failed to touch session on rotation", "session_id", rt.SessionID, "err", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// Revoke retires a single refresh token, e.g. on logout.
func (s *TokenService) Revoke(ctx context.Context, refreshOpaque string) error {
	now := time.Now().UTC()
	fp := cryptox.FingerprintToken(refreshOpaque)

	rt, err := s.Store.RefreshTokens().GetByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil // revoking an unknown token is not an error
		}
		return err
	}
	_, err = s.Store.RefreshTokens().Revoke(ctx, rt.ID, now)
	return err
}

// RevokeAllForUser burns every live token a user holds.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	return s.Store.RefreshTokens().RevokeAllForUser(ctx, userID, time.Now().UTC())
}

// handleReuse is the theft response: revoke the user's whole token family,
// end their sessions and write a security audit entry.
func (s *TokenService) handleReuse(ctx context.Context, rt domain.RefreshToken, d domain.DeviceInfo, now time.Time) error {
	l := slogx.FromContext(ctx)

	burned, err := s.Store.RefreshTokens().RevokeAllForUser(ctx, rt.UserID, now)
	if err != nil {
		l.Error("failed to revoke token family after reuse", "user_id", rt.UserID, slog.Any("err", err))
	}
	if _, err := s.Store.Sessions().DeactivateAllForUser(ctx, rt.UserID, ""); err != nil {
		l.Error("failed to end sessions after reuse", "user_id", rt.UserID, slog.Any("err", err))
	}

	audit := domain.AuditRecord{
		ID:              idx.NewID(),
		UserID:          &rt.UserID,
		Action:          "refresh_token_reuse_detected",
		Resource:        "refresh_tokens",
		IP:              d.IP,
		UserAgent:       d.UserAgent,
		ComplianceLevel: domain.ComplianceSecurity,
		CreatedAt:       now,
	}
	if err := s.Store.Audit().Append(ctx, audit); err != nil {
		l.Error("failed to audit token reuse", "user_id", rt.UserID, slog.Any("err", err))
	}

	l.Warn("refresh token reuse detected",
		"user_id", rt.UserID,
		"session_id", rt.SessionID,
		"tokens_revoked", burned,
	)
	return ErrTokenReuse
}

func (s *TokenService) signAccess(user domain.User, sessionID, providerType string, amr []string, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(
		user.ID, user.Email, user.Role, sessionID, providerType,
		amr, s.AccessTTL, s.Signer.Issuer(), now,
	)
	return s.Signer.Sign(claims)
}

func (s *TokenService) refreshTTL(rememberMe bool) time.Duration {
	if rememberMe && s.RememberMeTTL > 0 {
		return s.RememberMeTTL
	}
	return s.RefreshTTL
}
