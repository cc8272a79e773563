package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the window budgets. A zero MaxRefreshAttempts disables
// refresh throttling entirely.
type Config struct {
	Prefix             string
	MaxLoginAttempts   int
	LoginWindow        time.Duration
	EnableIPThrottle   bool
	MaxRefreshAttempts int
	RefreshWindow      time.Duration
}

// A LimitError carries how long the caller should back off. It unwraps to
// ErrLimited.
type LimitError struct {
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *LimitError) Is(target error) bool { return target == ErrLimited }

// Limiter maintains per-identifier and per-IP fixed-window counters in
// Redis. Safe for concurrent use.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  client,
		config: cfg,
	}
}

func (l *Limiter) loginKey(identifier string) string {
	return l.config.Prefix + ":rl:login:" + identifier
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.Prefix + ":rl:loginip:" + ip
}

func (l *Limiter) refreshKey(principalID string) string {
	return l.config.Prefix + ":rl:refresh:" + principalID
}

// CheckLogin reports, without consuming budget, whether the identifier (and
// the IP, when throttled) is already over the login budget. Returns a
// *LimitError when the budget is spent.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if err := l.checkCounter(ctx, l.loginKey(identifier), l.config.MaxLoginAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}

	return nil
}

// RecordLoginFailure charges one failed attempt to the identifier (and the
// IP, when throttled). Returns a *LimitError when this failure exhausts the
// budget.
func (l *Limiter) RecordLoginFailure(ctx context.Context, identifier, ip string) error {
	count, err := l.incrementWindow(ctx, l.loginKey(identifier), l.config.LoginWindow)
	if err != nil {
		return err
	}
	if count >= int64(l.config.MaxLoginAttempts) {
		return l.limitError(ctx, l.loginKey(identifier))
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWindow(ctx, l.loginIPKey(ip), l.config.LoginWindow)
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			return l.limitError(ctx, l.loginIPKey(ip))
		}
	}

	return nil
}

// ResetLogin clears the failure counters after a successful login or
// password change.
func (l *Limiter) ResetLogin(ctx context.Context, identifier, ip string) error {
	keys := []string{l.loginKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.loginIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// AllowRefresh charges one refresh attempt to the principal and reports
// whether it is within budget. Every attempt counts, successful or not, so
// a stolen refresh token cannot be hammered.
func (l *Limiter) AllowRefresh(ctx context.Context, principalID string) error {
	if l.config.MaxRefreshAttempts <= 0 {
		return nil
	}

	count, err := l.incrementWindow(ctx, l.refreshKey(principalID), l.config.RefreshWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return l.limitError(ctx, l.refreshKey(principalID))
	}

	return nil
}

// LoginAttempts returns the current failure count for an identifier.
// Missing keys read as zero and do not reveal account existence.
func (l *Limiter) LoginAttempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.loginKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return l.limitError(ctx, key)
	}
	return nil
}

func (l *Limiter) incrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set only by the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) limitError(ctx context.Context, key string) error {
	retryAfter, err := l.redis.PTTL(ctx, key).Result()
	if err != nil || retryAfter < 0 {
		// The window expired between the check and the PTTL read, or the
		// read failed. The caller is still limited this round.
		retryAfter = 0
	}
	return &LimitError{RetryAfter: retryAfter}
}
