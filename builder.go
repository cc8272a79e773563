package authcore

import (
	"errors"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"authcore/internal/rate"
	"authcore/jwt"
	"authcore/password"
	"authcore/session"
)

// Builder assembles an [Engine]. All dependencies are injected here; the
// engine never reaches for globals.
type Builder struct {
	config     Config
	redis      redis.UniversalClient
	principals PrincipalStore
	auditSink  AuditSink
	logger     *slog.Logger

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing revocation records and rate counters.
// Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPrincipalStore sets the credential source of record. Required.
func (b *Builder) WithPrincipalStore(store PrincipalStore) *Builder {
	b.principals = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to a discard logger; the
// engine never writes to the process-default logger on its own.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, constructs every component, and
// returns a ready Engine. A Builder is single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.principals == nil {
		return nil, errors.New("principal store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:       cfg.JWT.AccessTTL,
		RefreshTTL:      cfg.JWT.RefreshTTL,
		VerificationTTL: cfg.JWT.VerificationTTL,
		SigningMethod:   jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:      cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:       cloneBytes(cfg.JWT.PublicKey),
		Issuer:          cfg.JWT.Issuer,
		Audience:        cfg.JWT.Audience,
		Leeway:          cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		principals:  b.principals,
		hasher:      hasher,
		tokens:      tokens,
		revocations: session.NewStore(b.redis, cfg.Revocation.RedisPrefix, cfg.Revocation.StoreTimeout),
		limiter: rate.New(b.redis, rate.Config{
			Prefix:             cfg.Revocation.RedisPrefix,
			MaxLoginAttempts:   cfg.Security.MaxLoginAttempts,
			LoginWindow:        cfg.Security.LoginWindow,
			EnableIPThrottle:   cfg.Security.EnableIPThrottle,
			MaxRefreshAttempts: refreshBudget(cfg.Security),
			RefreshWindow:      cfg.Security.RefreshWindow,
		}),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
	}

	if len(cfg.Security.BannedIPs) > 0 {
		engine.bannedIPs = make(map[string]struct{}, len(cfg.Security.BannedIPs))
		for _, ip := range cfg.Security.BannedIPs {
			engine.bannedIPs[ip] = struct{}{}
		}
	}

	b.built = true

	return engine, nil
}

func refreshBudget(sec SecurityConfig) int {
	if !sec.EnableRefreshThrottle {
		return 0
	}
	return sec.MaxRefreshAttempts
}
