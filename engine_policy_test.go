package authcore

import (
	"context"
	"errors"
	"testing"
)

// With the counter store down, FailClosed rejects before credentials are
// even read, while FailOpen lets credential verification proceed and only
// the limiter is skipped. Revocation writes still fail closed in both
// modes, so a full outage can never mint tokens.
func TestLimiterPolicyOnStoreOutage(t *testing.T) {
	ctx := context.Background()

	closed := newTestEngine(t, testConfig())
	closed.createAccount(t, "alice@example.com", "correct-password")
	closed.redis.Close()

	if _, err := closed.engine.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("fail-closed: expected ErrStoreUnavailable, got %v", err)
	}

	cfg := testConfig()
	cfg.Security.LimiterPolicy = FailOpen
	open := newTestEngine(t, cfg)
	open.createAccount(t, "alice@example.com", "correct-password")
	open.redis.Close()

	// The limiter outage is swallowed; the wrong secret is still the wrong
	// secret.
	if _, err := open.engine.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("fail-open: expected ErrInvalidCredentials, got %v", err)
	}

	// Correct credentials cannot produce tokens: indexing the refresh token
	// needs the store and that path never fails open.
	if _, err := open.engine.Login(ctx, "alice@example.com", "correct-password"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("fail-open issuance: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRefreshFailsClosedOnStoreOutage(t *testing.T) {
	cfg := testConfig()
	cfg.Security.LimiterPolicy = FailOpen
	h := newTestEngine(t, cfg)
	h.createAccount(t, "alice@example.com", "correct-password")
	pair := h.login(t, "alice@example.com", "correct-password")

	h.redis.Close()

	if _, err := h.engine.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestValidateOfflineInJWTOnlyMode(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.createAccount(t, "alice@example.com", "correct-password")
	pair := h.login(t, "alice@example.com", "correct-password")

	h.redis.Close()

	// ModeJWTOnly never touches the store.
	if _, err := h.engine.Validate(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("offline Validate: %v", err)
	}
}
