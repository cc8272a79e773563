package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg.Prefix = "ac"
	return New(rdb, cfg), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestLoginBudgetExhaustion(t *testing.T) {
	limiter, _, done := newLimiterTest(t, Config{
		MaxLoginAttempts: 3,
		LoginWindow:      time.Minute,
	})
	defer done()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("CheckLogin before exhaustion: %v", err)
		}
		if err := limiter.RecordLoginFailure(ctx, "alice", ""); err != nil {
			t.Fatalf("RecordLoginFailure %d: %v", i, err)
		}
	}

	// Third failure spends the budget.
	err := limiter.RecordLoginFailure(ctx, "alice", "")
	if !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited on third failure, got %v", err)
	}

	// Check now rejects even before another attempt is recorded.
	err = limiter.CheckLogin(ctx, "alice", "")
	if !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited from CheckLogin, got %v", err)
	}

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected *LimitError, got %T", err)
	}
	if limitErr.RetryAfter <= 0 || limitErr.RetryAfter > time.Minute {
		t.Fatalf("unexpected RetryAfter: %s", limitErr.RetryAfter)
	}

	// Other identifiers are unaffected.
	if err := limiter.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("CheckLogin(bob): %v", err)
	}
}

func TestLoginWindowExpires(t *testing.T) {
	limiter, mr, done := newLimiterTest(t, Config{
		MaxLoginAttempts: 1,
		LoginWindow:      time.Minute,
	})
	defer done()
	ctx := context.Background()

	if err := limiter.RecordLoginFailure(ctx, "alice", ""); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited, got %v", err)
	}

	mr.FastForward(61 * time.Second)

	if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("CheckLogin after window: %v", err)
	}
}

func TestResetLoginClearsBudget(t *testing.T) {
	limiter, _, done := newLimiterTest(t, Config{
		MaxLoginAttempts: 1,
		LoginWindow:      time.Minute,
	})
	defer done()
	ctx := context.Background()

	if err := limiter.RecordLoginFailure(ctx, "alice", ""); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited, got %v", err)
	}
	if err := limiter.ResetLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	if err := limiter.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("CheckLogin after reset: %v", err)
	}
}

func TestIPThrottle(t *testing.T) {
	limiter, _, done := newLimiterTest(t, Config{
		MaxLoginAttempts: 2,
		LoginWindow:      time.Minute,
		EnableIPThrottle: true,
	})
	defer done()
	ctx := context.Background()

	// Two different identifiers from the same address share the IP budget.
	if err := limiter.RecordLoginFailure(ctx, "alice", "10.0.0.9"); err != nil {
		t.Fatalf("RecordLoginFailure(alice): %v", err)
	}
	if err := limiter.RecordLoginFailure(ctx, "bob", "10.0.0.9"); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected IP budget exhaustion, got %v", err)
	}
	if err := limiter.CheckLogin(ctx, "carol", "10.0.0.9"); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected CheckLogin rejection by IP, got %v", err)
	}
	if err := limiter.CheckLogin(ctx, "carol", "10.0.0.10"); err != nil {
		t.Fatalf("CheckLogin from clean IP: %v", err)
	}
}

func TestRefreshThrottle(t *testing.T) {
	limiter, _, done := newLimiterTest(t, Config{
		MaxLoginAttempts:   5,
		LoginWindow:        time.Minute,
		MaxRefreshAttempts: 2,
		RefreshWindow:      time.Minute,
	})
	defer done()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.AllowRefresh(ctx, "p-1"); err != nil {
			t.Fatalf("AllowRefresh %d: %v", i, err)
		}
	}
	if err := limiter.AllowRefresh(ctx, "p-1"); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited on third refresh, got %v", err)
	}
}

func TestRefreshThrottleDisabled(t *testing.T) {
	limiter, _, done := newLimiterTest(t, Config{
		MaxLoginAttempts: 5,
		LoginWindow:      time.Minute,
	})
	defer done()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := limiter.AllowRefresh(ctx, "p-1"); err != nil {
			t.Fatalf("AllowRefresh with throttle disabled: %v", err)
		}
	}
}

func TestLoginAttemptsMissingKeyIsZero(t *testing.T) {
	limiter, _, done := newLimiterTest(t, Config{
		MaxLoginAttempts: 5,
		LoginWindow:      time.Minute,
	})
	defer done()

	n, err := limiter.LoginAttempts(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("LoginAttempts: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 attempts, got %d", n)
	}
}

func TestLimiterUnavailable(t *testing.T) {
	limiter, mr, done := newLimiterTest(t, Config{
		MaxLoginAttempts: 5,
		LoginWindow:      time.Minute,
	})
	defer done()
	mr.Close()

	if err := limiter.CheckLogin(context.Background(), "alice", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
