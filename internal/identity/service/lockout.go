package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clearmind-health/identity/internal/identity/domain"
	"github.com/clearmind-health/identity/internal/identity/store"
	"github.com/clearmind-health/identity/pkg/idx"
	"github.com/clearmind-health/identity/pkg/slogx"
)

// RatePolicy is a fixed-window request budget for one action class.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

type LockoutService struct {
	Store store.Store

	// MaxFailures within Window trips a lockout episode.
	MaxFailures int
	Window      time.Duration

	// BaseLockDuration doubles per episode, capped at MaxExponent doublings.
	BaseLockDuration time.Duration
	MaxExponent      int
}

func NewLockoutService(st store.Store) *LockoutService {
	return &LockoutService{
		Store:            st,
		MaxFailures:      5,
		Window:           15 * time.Minute,
		BaseLockDuration: 15 * time.Minute,
		MaxExponent:      6,
	}
}

// CheckRate enforces a fixed-window budget keyed by identity (or
// "anonymous"), action and caller IP. The counter lives in the store so
// enforcement holds across process restarts and replicas.
func (s *LockoutService) CheckRate(ctx context.Context, identity, action, ip string, policy RatePolicy) error {
	if policy.Limit <= 0 {
		return nil
	}
	if identity == "" {
		identity = "anonymous"
	}

	now := time.Now().UTC()
	windowStart := now.Truncate(policy.Window)
	key := fmt.Sprintf("%s|%s|%s", identity, action, ip)

	count, err := s.Store.Lockouts().IncrementRateWindow(ctx, key, windowStart)
	if err != nil {
		return err
	}
	if count > policy.Limit {
		retry := windowStart.Add(policy.Window).Sub(now)
		return &RateLimitedError{RetryAfter: retry}
	}
	return nil
}

// Check reports whether the identity is currently locked out.
func (s *LockoutService) Check(ctx context.Context, email string) error {
	lock, err := s.Store.Lockouts().GetLockout(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if lock.Locked(time.Now().UTC()) {
		return &LockedError{Until: lock.LockedUntil, LockCount: lock.LockCount}
	}
	return nil
}

// RecordFailure appends a failed attempt and, once the window fills, starts
// the next lockout episode. The episode count never resets, so each new
// lockout lasts twice as long as the one before, up to the cap.
func (s *LockoutService) RecordFailure(ctx context.Context, email, ip, userAgent, reason string) error {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	attempt := domain.FailedLoginAttempt{
		ID:          idx.NewID(),
		Email:       email,
		IP:          ip,
		UserAgent:   userAgent,
		Reason:      reason,
		AttemptedAt: now,
	}
	if err := s.Store.Lockouts().RecordFailedAttempt(ctx, attempt); err != nil {
		return err
	}

	count, err := s.Store.Lockouts().CountRecentFailures(ctx, email, now.Add(-s.Window))
	if err != nil {
		return err
	}
	if count < s.MaxFailures {
		return nil
	}

	// Window filled; escalate.
	lockCount := 1
	if prev, err := s.Store.Lockouts().GetLockout(ctx, email); err == nil {
		lockCount = prev.LockCount + 1
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	until := now.Add(s.lockDuration(lockCount))
	lock := domain.AccountLockout{
		Email:       email,
		LockedUntil: until,
		LockCount:   lockCount,
		UpdatedAt:   now,
	}
	if err := s.Store.Lockouts().UpsertLockout(ctx, lock); err != nil {
		return err
	}
	// Wipe the window so the next episode needs a fresh run of failures.
	if err := s.Store.Lockouts().DeleteFailures(ctx, email); err != nil {
		return err
	}

	l.Warn("account locked",
		"email", email,
		"lock_count", lockCount,
		"locked_until", until,
	)
	return &LockedError{Until: until, LockCount: lockCount}
}

// RecordSuccess clears failure history. The lockout row, and with it the
// episode count, survives so repeat offenders keep escalating.
func (s *LockoutService) RecordSuccess(ctx context.Context, email string) error {
	return s.Store.Lockouts().DeleteFailures(ctx, email)
}

// Unlock lifts an active lockout early, for admin intervention.
func (s *LockoutService) Unlock(ctx context.Context, email string) error {
	now := time.Now().UTC()
	if err := s.Store.Lockouts().ClearLockout(ctx, email, now); err != nil {
		return err
	}
	return s.Store.Lockouts().DeleteFailures(ctx, email)
}

// lockDuration is base * 2^(episode-1), with the episode capped so the
// duration stops growing after MaxExponent episodes.
func (s *LockoutService) lockDuration(lockCount int) time.Duration {
	if lockCount > s.MaxExponent {
		lockCount = s.MaxExponent
	}
	if lockCount < 1 {
		lockCount = 1
	}
	return s.BaseLockDuration * (1 << (lockCount - 1))
}
