package service

import (
	"context"
	"errors"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/pkg/idx"
)

// ComplianceService covers consent tracking, data export and account
// erasure. Everything here writes to the audit trail at HIPAA level.
type ComplianceService struct {
	Store store.Store
	Audit *AuditService
	Users *UserService
}

func (s *ComplianceService) RecordConsent(ctx context.Context, userID int64, consentType string, granted bool, d domain.DeviceInfo) error {
	consent := domain.Consent{
		ID:          idx.NewID(),
		UserID:      userID,
		ConsentType: consentType,
		Granted:     granted,
		IP:          d.IP,
		GrantedAt:   time.Now().UTC(),
	}
	if err := s.Store.Compliance().RecordConsent(ctx, consent); err != nil {
		return err
	}

	action := "consent_granted"
	if !granted {
		action = "consent_withdrawn"
	}
	s.Audit.Record(ctx, Event{
		UserID:    &userID,
		Action:    action,
		Resource:  "consents",
		NewValues: map[string]any{"type": consentType, "granted": granted},
		Level:     domain.ComplianceHIPAA,
		Device:    d,
	})
	return nil
}

func (s *ComplianceService) ListConsents(ctx context.Context, userID int64) ([]domain.Consent, error) {
	return s.Store.Compliance().ListConsents(ctx, userID)
}

// RequestExport files a data export request. Fulfilment is asynchronous;
// the request row tracks progress.
func (s *ComplianceService) RequestExport(ctx context.Context, userID int64, d domain.DeviceInfo) (domain.DataExportRequest, error) {
	req := domain.DataExportRequest{
		ID:          idx.NewID(),
		UserID:      userID,
		Status:      "pending",
		RequestedAt: time.Now().UTC(),
	}
	if err := s.Store.Compliance().CreateExportRequest(ctx, req); err != nil {
		return domain.DataExportRequest{}, err
	}

	s.Audit.Record(ctx, Event{
		UserID:   &userID,
		Action:   "data_export_requested",
		Resource: "data_export_requests",
		Level:    domain.ComplianceHIPAA,
		Device:   d,
	})
	return req, nil
}

// Export assembles the user's data bundle: profile, provider links,
// sessions, devices, consents and audit trail.
func (s *ComplianceService) Export(ctx context.Context, userID int64) (map[string]any, error) {
	user, err := s.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	mappings, err := s.Store.ProviderMappings().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.Store.Sessions().ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	devices, err := s.Store.Devices().ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	consents, err := s.Store.Compliance().ListConsents(ctx, userID)
	if err != nil {
		return nil, err
	}
	trail, err := s.Store.Audit().ListForUser(ctx, userID, 1000, 0)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"user": map[string]any{
			"id":        user.ID,
			"email":     user.Email,
			"firstName": user.FirstName,
			"lastName":  user.LastName,
			"role":      user.Role,
			"status":    user.Status,
			"createdAt": user.CreatedAt,
		},
		"providers": mappings,
		"sessions":  sessions,
		"devices":   devices,
		"consents":  consents,
		"auditTrail": trail,
	}, nil
}

// Erase deactivates the account and strips credentials, keeping the audit
// trail for the retention window the trail itself enforces.
func (s *ComplianceService) Erase(ctx context.Context, userID int64, d domain.DeviceInfo) error {
	if err := s.Users.Deactivate(ctx, userID); err != nil {
		return err
	}

	s.Audit.Record(ctx, Event{
		UserID:   &userID,
		Action:   "account_erased",
		Resource: "users",
		Level:    domain.ComplianceHIPAA,
		Device:   d,
	})
	return nil
}
