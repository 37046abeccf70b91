package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrTokenReuse         = errors.New("refresh_token_reuse")
	ErrNotConfirmed       = errors.New("account_not_confirmed")
	ErrAccountNotActive   = errors.New("account_not_active")
	ErrAlreadyExists      = errors.New("already_exists")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrTooManyAttempts    = errors.New("too_many_attempts")
	ErrNotFound           = errors.New("not_found")
	ErrWeakPassword       = errors.New("weak_password")
	ErrMFANotEnabled      = errors.New("mfa_not_enabled")
	ErrProviderDown       = errors.New("provider_unavailable")
)

// LockedError reports an account lockout in force. The handler maps it to
// 423 with a Retry-After.
type LockedError struct {
	Until     time.Time
	LockCount int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s (episode %d)", e.Until.Format(time.RFC3339), e.LockCount)
}

// RetryAfter is the remaining lock duration, never negative.
func (e *LockedError) RetryAfter() time.Duration {
	d := time.Until(e.Until)
	if d < 0 {
		return 0
	}
	return d
}

// RateLimitedError reports a tripped fixed-window counter.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
