package authcore

import (
	"errors"
	"time"
)

// Config is the immutable process-wide configuration injected into the
// engine at construction. It is cloned by the [Builder]; mutating a Config
// after Build has no effect on a running engine.
type Config struct {
	JWT          JWTConfig
	Password     PasswordConfig
	Revocation   RevocationConfig
	Security     SecurityConfig
	Account      AccountConfig
	Verification VerificationConfig
	Cache        CacheConfig
	Audit        AuditConfig
	Metrics      MetricsConfig

	// ValidationMode controls whether Validate consults the ban store.
	// ModeJWTOnly verifies offline; ModeStrict adds one Redis round-trip to
	// reject revoked access tokens before their natural expiry.
	ValidationMode ValidationMode
}

// JWTConfig carries the signing key material and token lifetimes. The key is
// loaded once at startup and treated as read-only afterwards.
type JWTConfig struct {
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	SigningMethod   string // "hs256" (default) or "ed25519"
	PrivateKey      []byte
	PublicKey       []byte // ed25519 only
	Issuer          string
	Audience        string
	Leeway          time.Duration
}

// PasswordConfig holds the argon2id parameters. Memory is in KB.
// UpgradeOnLogin rehashes credentials stored with weaker parameters (or
// with the legacy bcrypt scheme) after a successful login.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// RevocationConfig tunes the Redis-backed ban store.
type RevocationConfig struct {
	RedisPrefix string
	// StoreTimeout bounds every Redis call made by the ban store and the
	// rate limiter. Zero means no per-call deadline beyond the caller's ctx.
	StoreTimeout time.Duration
}

// LimiterPolicy selects the behavior when the rate limiter's backing store
// is unreachable: deny the request (fail closed) or let it through with a
// warning (fail open). Revocation checks always fail closed; the policy
// applies to rate limiting only.
type LimiterPolicy int

const (
	FailClosed LimiterPolicy = iota
	FailOpen
)

// SecurityConfig bounds request frequency and gates login.
type SecurityConfig struct {
	MaxLoginAttempts      int
	LoginWindow           time.Duration
	EnableIPThrottle      bool
	MaxRefreshAttempts    int
	RefreshWindow         time.Duration
	EnableRefreshThrottle bool
	LimiterPolicy         LimiterPolicy

	// ReuseRevokesAll revokes every outstanding refresh token for the
	// principal when an already-consumed refresh token is presented again,
	// on the assumption that the token leaked.
	ReuseRevokesAll bool

	// BannedIPs is a static deny list of source addresses rejected before
	// any credential processing.
	BannedIPs []string
}

// AccountConfig controls CreateAccount.
type AccountConfig struct {
	Enabled     bool
	AutoLogin   bool
	DefaultRole string
}

// VerificationConfig controls the identifier-verification token flow. When
// RequireForLogin is set, principals in pending state cannot log in or
// refresh until ConfirmVerification succeeds.
type VerificationConfig struct {
	Enabled         bool
	RequireForLogin bool
}

// CacheConfig tunes the optional principal cache (package cache).
type CacheConfig struct {
	PrincipalTTL time.Duration
}

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// ValidationMode selects how Engine.Validate treats the ban store.
type ValidationMode int

const (
	ModeJWTOnly ValidationMode = iota
	ModeStrict
)

// DefaultConfig returns the development baseline: HS256, short access
// tokens, fail-closed limiter, verification off.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:       15 * time.Minute,
			RefreshTTL:      7 * 24 * time.Hour,
			VerificationTTL: 48 * time.Hour,
			SigningMethod:   "hs256",
			Leeway:          30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Revocation: RevocationConfig{
			RedisPrefix:  "ac",
			StoreTimeout: 2 * time.Second,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:      5,
			LoginWindow:           time.Minute,
			EnableIPThrottle:      false,
			MaxRefreshAttempts:    20,
			RefreshWindow:         time.Minute,
			EnableRefreshThrottle: true,
			LimiterPolicy:         FailClosed,
			ReuseRevokesAll:       true,
		},
		Account: AccountConfig{
			Enabled:     true,
			AutoLogin:   false,
			DefaultRole: "user",
		},
		Verification: VerificationConfig{
			Enabled:         false,
			RequireForLogin: false,
		},
		Cache: CacheConfig{
			PrincipalTTL: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		ValidationMode: ModeJWTOnly,
	}
}

// ProductionConfig hardens the defaults: strict validation, IP throttling,
// verification required, audit and metrics on.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.Security.EnableIPThrottle = true
	cfg.Security.LoginWindow = 15 * time.Minute
	cfg.Verification.Enabled = true
	cfg.Verification.RequireForLogin = true
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.ValidationMode = ModeStrict
	return cfg
}

// Validate checks the configuration for internal consistency. Build calls
// it; callers constructing Configs by hand can call it early to fail fast.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	if c.Revocation.RedisPrefix == "" {
		return errors.New("Revocation RedisPrefix must not be empty")
	}
	if c.Revocation.StoreTimeout < 0 {
		return errors.New("Revocation StoreTimeout must be >= 0")
	}

	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginWindow <= 0 {
		return errors.New("Security LoginWindow must be > 0")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0")
		}
		if c.Security.RefreshWindow <= 0 {
			return errors.New("Security RefreshWindow must be > 0")
		}
	}

	if c.Account.Enabled && c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole must not be empty")
	}

	if c.Verification.Enabled && c.JWT.VerificationTTL <= 0 {
		return errors.New("JWT VerificationTTL must be > 0 when verification is enabled")
	}
	if c.Verification.RequireForLogin && !c.Verification.Enabled {
		return errors.New("Verification RequireForLogin requires Verification Enabled")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	switch c.ValidationMode {
	case ModeJWTOnly, ModeStrict:
	default:
		return errors.New("invalid validation mode")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if len(cfg.Security.BannedIPs) > 0 {
		out.Security.BannedIPs = append([]string(nil), cfg.Security.BannedIPs...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
