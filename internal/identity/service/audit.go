package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/pkg/idx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// AuditService writes the append-only trail. Recording is deliberately
// forgiving: a failed audit write is logged, never surfaced, so the flow
// that triggered it still completes.
type AuditService struct {
	Store store.Store
}

// Event is one auditable action.
type Event struct {
	UserID    *int64
	Action    string
	Resource  string
	OldValues any
	NewValues any
	Level     string // defaults to ComplianceStandard
	Device    domain.DeviceInfo
}

func (s *AuditService) Record(ctx context.Context, ev Event) {
	l := slogx.FromContext(ctx)

	level := ev.Level
	if level == "" {
		level = domain.ComplianceStandard
	}

	rec := domain.AuditRecord{
		ID:              idx.NewID(),
		UserID:          ev.UserID,
		Action:          ev.Action,
		Resource:        ev.Resource,
		OldValues:       marshalValues(ev.OldValues),
		NewValues:       marshalValues(ev.NewValues),
		IP:              ev.Device.IP,
		UserAgent:       ev.Device.UserAgent,
		ComplianceLevel: level,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.Store.Audit().Append(ctx, rec); err != nil {
		l.Error("failed to write audit record",
			"action", ev.Action,
			"err", err,
		)
	}
}

func (s *AuditService) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]domain.AuditRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.Store.Audit().ListForUser(ctx, userID, limit, offset)
}

func (s *AuditService) ListRecent(ctx context.Context, limit, offset int) ([]domain.AuditRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.Store.Audit().ListRecent(ctx, limit, offset)
}

func marshalValues(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
