package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestLoginSuccess(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.createAccount(t, "alice@example.com", "correct-password")

	pair := h.login(t, "alice@example.com", "correct-password")
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected non-empty token pair")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	claims, err := h.engine.Validate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Role != "user" {
		t.Fatalf("Role = %q, want user", claims.Role)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.createAccount(t, "alice@example.com", "correct-password")

	ctx := context.Background()

	_, errWrong := h.engine.Login(ctx, "alice@example.com", "wrong-password")
	_, errGhost := h.engine.Login(ctx, "ghost@example.com", "whatever-password")

	for name, err := range map[string]error{"wrong secret": errWrong, "unknown identifier": errGhost} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized match, got %v", name, err)
		}
	}
	if errWrong.Error() != errGhost.Error() {
		t.Fatalf("failure messages differ: %q vs %q", errWrong, errGhost)
	}
}

func TestLoginRateLimitBlocksCorrectCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Security.MaxLoginAttempts = 5
	cfg.Security.LoginWindow = time.Minute
	h := newTestEngine(t, cfg)
	h.createAccount(t, "alice@example.com", "correct-password")

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := h.engine.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	// Budget spent: the correct secret is rejected too.
	_, err := h.engine.Login(ctx, "alice@example.com", "correct-password")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	var limitErr *RateLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected *RateLimitError, got %T", err)
	}
	if limitErr.RetryAfter <= 0 || limitErr.RetryAfter > time.Minute {
		t.Fatalf("RetryAfter = %s", limitErr.RetryAfter)
	}

	// The window expires and the account works again.
	h.redis.FastForward(61 * time.Second)
	h.login(t, "alice@example.com", "correct-password")
}

func TestLoginSuccessResetsBudget(t *testing.T) {
	cfg := testConfig()
	cfg.Security.MaxLoginAttempts = 3
	h := newTestEngine(t, cfg)
	h.createAccount(t, "alice@example.com", "correct-password")

	ctx := context.Background()
	for round := 0; round < 3; round++ {
		for i := 0; i < 2; i++ {
			if _, err := h.engine.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("round %d attempt %d: %v", round, i, err)
			}
		}
		h.login(t, "alice@example.com", "correct-password")
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	h := newTestEngine(t, testConfig())
	p := h.createAccount(t, "alice@example.com", "correct-password")

	if err := h.store.UpdateStatus(context.Background(), p.ID, StatusDisabled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	_, err := h.engine.Login(context.Background(), "alice@example.com", "correct-password")
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestLoginBannedIP(t *testing.T) {
	cfg := testConfig()
	cfg.Security.BannedIPs = []string{"203.0.113.7"}
	h := newTestEngine(t, cfg)
	h.createAccount(t, "alice@example.com", "correct-password")

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if _, err := h.engine.Login(ctx, "alice@example.com", "correct-password"); !errors.Is(err, ErrIPBanned) {
		t.Fatalf("expected ErrIPBanned, got %v", err)
	}

	ctx = WithClientIP(context.Background(), "198.51.100.4")
	if _, err := h.engine.Login(ctx, "alice@example.com", "correct-password"); err != nil {
		t.Fatalf("clean address login: %v", err)
	}
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	h := newTestEngine(t, testConfig())
	p := h.createAccount(t, "alice@example.com", "migrated-password")

	legacy, err := bcrypt.GenerateFromPassword([]byte("migrated-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword: %v", err)
	}
	if err := h.store.UpdateSecretHash(context.Background(), p.ID, string(legacy)); err != nil {
		t.Fatalf("UpdateSecretHash: %v", err)
	}

	h.login(t, "alice@example.com", "migrated-password")

	upgraded := h.store.hashFor(t, p.ID)
	if !strings.HasPrefix(upgraded, "$argon2id$") {
		t.Fatalf("hash not upgraded: %s", upgraded)
	}

	// The upgraded hash still verifies.
	h.login(t, "alice@example.com", "migrated-password")

	if got := h.engine.MetricsSnapshot().Counters[MetricPasswordUpgraded]; got != 0 {
		t.Fatalf("metrics disabled by default, counter = %d", got)
	}
}
