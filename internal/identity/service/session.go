package service

import (
	"context"
	"errors"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/store"
)

type SessionService struct {
	Store store.Store
	Audit *AuditService
}

// List returns the user's live sessions, most recently active first.
func (s *SessionService) List(ctx context.Context, userID int64) ([]domain.Session, error) {
	return s.Store.Sessions().ListActiveForUser(ctx, userID)
}

// Revoke ends one session and the refresh-token chain behind it. Callers
// may only revoke their own sessions; ownership is checked here, not at
// the handler.
func (s *SessionService) Revoke(ctx context.Context, userID int64, sessionID string, d domain.DeviceInfo) error {
	now := time.Now().UTC()

	session, err := s.Store.Sessions().Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if session.UserID != userID {
		return ErrNotFound // do not leak other users' session IDs
	}

	if _, err := s.Store.Sessions().Deactivate(ctx, sessionID); err != nil {
		return err
	}
	if err := s.Store.RefreshTokens().RevokeAllForSession(ctx, sessionID, now); err != nil {
		return err
	}

	s.Audit.Record(ctx, Event{
		UserID:    &userID,
		Action:    "session_revoked",
		Resource:  "sessions",
		OldValues: map[string]string{"session_id": sessionID},
		Device:    d,
	})
	return nil
}

// RevokeOthers ends every session except the caller's current one.
func (s *SessionService) RevokeOthers(ctx context.Context, userID int64, currentSessionID string, d domain.DeviceInfo) (int64, error) {
	now := time.Now().UTC()

	sessions, err := s.Store.Sessions().ListActiveForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, sess := range sessions {
		if sess.ID == currentSessionID {
			continue
		}
		if err := s.Store.RefreshTokens().RevokeAllForSession(ctx, sess.ID, now); err != nil {
			return 0, err
		}
	}

	ended, err := s.Store.Sessions().DeactivateAllForUser(ctx, userID, currentSessionID)
	if err != nil {
		return 0, err
	}

	s.Audit.Record(ctx, Event{
		UserID:   &userID,
		Action:   "sessions_revoked_others",
		Resource: "sessions",
		Level:    domain.ComplianceSecurity,
		Device:   d,
	})
	return ended, nil
}

// Stats aggregates the user's session activity.
func (s *SessionService) Stats(ctx context.Context, userID int64) (domain.SessionStats, error) {
	return s.Store.Sessions().Stats(ctx, userID)
}

// Devices lists the devices the user has logged in from.
func (s *SessionService) Devices(ctx context.Context, userID int64) ([]domain.DeviceFingerprint, error) {
	return s.Store.Devices().ListForUser(ctx, userID)
}

// TrustDevice flags a device as trusted.
func (s *SessionService) TrustDevice(ctx context.Context, userID int64, deviceID string, trusted bool) error {
	err := s.Store.Devices().SetTrusted(ctx, userID, deviceID, trusted)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// ForgetDevice removes a device record and ends any sessions tied to it.
func (s *SessionService) ForgetDevice(ctx context.Context, userID int64, deviceID string, d domain.DeviceInfo) error {
	now := time.Now().UTC()

	sessions, err := s.Store.Sessions().ListActiveForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if sess.DeviceID != deviceID {
			continue
		}
		if _, err := s.Store.Sessions().Deactivate(ctx, sess.ID); err != nil {
			return err
		}
		if err := s.Store.RefreshTokens().RevokeAllForSession(ctx, sess.ID, now); err != nil {
			return err
		}
	}

	if err := s.Store.Devices().Delete(ctx, userID, deviceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.Audit.Record(ctx, Event{
		UserID:    &userID,
		Action:    "device_forgotten",
		Resource:  "devices",
		OldValues: map[string]string{"device_id": deviceID},
		Device:    d,
	})
	return nil
}
