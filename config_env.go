package authcore

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig is the flat environment-variable surface read by FromEnv. Only
// the knobs that deployments commonly override are exposed; everything else
// keeps the DefaultConfig value and can be adjusted in code.
type envConfig struct {
	SigningMethod string        `env:"AUTHCORE_JWT_METHOD" env-default:"hs256"`
	SigningKey    string        `env:"AUTHCORE_JWT_KEY"`
	PublicKey     string        `env:"AUTHCORE_JWT_PUBLIC_KEY"`
	Issuer        string        `env:"AUTHCORE_JWT_ISSUER"`
	AccessTTL     time.Duration `env:"AUTHCORE_ACCESS_TTL" env-default:"15m"`
	RefreshTTL    time.Duration `env:"AUTHCORE_REFRESH_TTL" env-default:"168h"`

	RedisPrefix  string        `env:"AUTHCORE_REDIS_PREFIX" env-default:"ac"`
	StoreTimeout time.Duration `env:"AUTHCORE_STORE_TIMEOUT" env-default:"2s"`

	MaxLoginAttempts int           `env:"AUTHCORE_MAX_LOGIN_ATTEMPTS" env-default:"5"`
	LoginWindow      time.Duration `env:"AUTHCORE_LOGIN_WINDOW" env-default:"1m"`
	IPThrottle       bool          `env:"AUTHCORE_IP_THROTTLE" env-default:"false"`
	LimiterPolicy    string        `env:"AUTHCORE_LIMITER_POLICY" env-default:"closed"`
	BannedIPs        []string      `env:"AUTHCORE_BANNED_IPS"`

	RequireVerified bool   `env:"AUTHCORE_REQUIRE_VERIFIED" env-default:"false"`
	ValidationMode  string `env:"AUTHCORE_VALIDATION_MODE" env-default:"jwt"`
}

// FromEnv builds a Config from AUTHCORE_* environment variables layered over
// DefaultConfig. The result is validated; the signing key is required.
func FromEnv() (Config, error) {
	var ec envConfig
	if err := cleanenv.ReadEnv(&ec); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = ec.SigningMethod
	cfg.JWT.PrivateKey = []byte(ec.SigningKey)
	if ec.PublicKey != "" {
		cfg.JWT.PublicKey = []byte(ec.PublicKey)
	}
	cfg.JWT.Issuer = ec.Issuer
	cfg.JWT.AccessTTL = ec.AccessTTL
	cfg.JWT.RefreshTTL = ec.RefreshTTL

	cfg.Revocation.RedisPrefix = ec.RedisPrefix
	cfg.Revocation.StoreTimeout = ec.StoreTimeout

	cfg.Security.MaxLoginAttempts = ec.MaxLoginAttempts
	cfg.Security.LoginWindow = ec.LoginWindow
	cfg.Security.EnableIPThrottle = ec.IPThrottle
	cfg.Security.BannedIPs = ec.BannedIPs

	switch strings.ToLower(ec.LimiterPolicy) {
	case "closed":
		cfg.Security.LimiterPolicy = FailClosed
	case "open":
		cfg.Security.LimiterPolicy = FailOpen
	default:
		return Config{}, fmt.Errorf("invalid AUTHCORE_LIMITER_POLICY %q", ec.LimiterPolicy)
	}

	if ec.RequireVerified {
		cfg.Verification.Enabled = true
		cfg.Verification.RequireForLogin = true
	}

	switch strings.ToLower(ec.ValidationMode) {
	case "jwt":
		cfg.ValidationMode = ModeJWTOnly
	case "strict":
		cfg.ValidationMode = ModeStrict
	default:
		return Config{}, fmt.Errorf("invalid AUTHCORE_VALIDATION_MODE %q", ec.ValidationMode)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
