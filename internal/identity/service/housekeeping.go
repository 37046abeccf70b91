package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/clearmind-health/identity/internal/identity/store"
)

// HousekeepingService periodically deletes expired rows so refresh tokens,
// sessions, MFA state, rate windows and the audit trail don't grow without
// bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// AuditRetention is how long audit records are kept. Zero disables
	// trail pruning.
	AuditRetention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. If interval is 0
// or negative it defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, auditRetention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:          st,
		Logger:         logger,
		Interval:       interval,
		AuditRetention: auditRetention,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop() for a
// graceful shutdown.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress cleanup
// finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup deletes expired records. Each deletion is independent; a failure
// in one doesn't stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	now := time.Now().UTC()
	s.Logger.Info("starting housekeeping cleanup")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"refresh_tokens", func() error { return s.Store.RefreshTokens().DeleteExpired(ctx, now) }},
		{"sessions", func() error { return s.Store.Sessions().DeleteExpired(ctx, now) }},
		{"mfa_challenges", func() error { return s.Store.MFA().DeleteExpiredChallenges(ctx, now) }},
		{"mfa_sms_codes", func() error { return s.Store.MFA().DeleteExpiredSMSCodes(ctx, now) }},
		{"rate_windows", func() error { return s.Store.Lockouts().DeleteExpiredWindows(ctx, now.Add(-24*time.Hour)) }},
		{"failed_logins", func() error { return s.Store.Lockouts().DeleteOldFailures(ctx, now.Add(-7*24*time.Hour)) }},
	}
	if s.AuditRetention > 0 {
		steps = append(steps, struct {
			name string
			fn   func() error
		}{"audit_log", func() error { return s.Store.Audit().DeleteOlderThan(ctx, now.Add(-s.AuditRetention)) }})
	}

	var ok int
	for _, step := range steps {
		if err := step.fn(); err != nil {
			s.Logger.Error("housekeeping step failed", "step", step.name, "error", err)
			continue
		}
		ok++
	}

	s.Logger.Info("housekeeping cleanup completed", "successful_cleanups", ok)
}
