package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"authcore/internal/rate"
	"authcore/jwt"
	"authcore/password"
	"authcore/session"
)

// Engine is the authentication core. Construct it with [Builder.Build];
// the zero value is not usable. All methods are safe for concurrent use.
type Engine struct {
	config      Config
	principals  PrincipalStore
	hasher      *password.Hasher
	tokens      *jwt.Manager
	revocations *session.Store
	limiter     *rate.Limiter
	audit       *auditDispatcher
	metrics     *Metrics
	logger      *slog.Logger
	bannedIPs   map[string]struct{}
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Ping verifies connectivity to the revocation store.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.revocations == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.revocations.Ping(ctx)
	if err != nil {
		return d, failAuth(ErrStoreUnavailable, err)
	}
	return d, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Validate checks an access token and returns its claims. In ModeJWTOnly
// this is fully offline; ModeStrict adds one revocation-store read that
// always fails closed.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*jwt.Claims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.checkBannedIP(ctx); err != nil {
		e.metricInc(MetricValidateRejected)
		return nil, err
	}

	claims, err := e.tokens.Verify(accessToken, jwt.ScopeAccess)
	if err != nil {
		e.metricInc(MetricValidateRejected)
		return nil, mapTokenError(err)
	}

	if e.config.ValidationMode == ModeStrict {
		revoked, err := e.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			e.metricInc(MetricStoreFailure)
			e.logger.ErrorContext(ctx, "revocation check failed", "error", err)
			return nil, failAuth(ErrStoreUnavailable, err)
		}
		if revoked {
			e.metricInc(MetricValidateRejected)
			return nil, failAuth(ErrTokenRevoked, nil)
		}
	}

	e.metricInc(MetricValidateSuccess)
	return claims, nil
}

// checkBannedIP rejects requests whose context carries a statically banned
// source address. Contexts without an address pass; the ban list is an
// edge-layer concern and absence of attribution is not a failure.
func (e *Engine) checkBannedIP(ctx context.Context) error {
	if len(e.bannedIPs) == 0 {
		return nil
	}
	ip := clientIPFromContext(ctx)
	if ip == "" {
		return nil
	}
	if _, banned := e.bannedIPs[ip]; banned {
		e.metricInc(MetricIPBanned)
		return failAuth(ErrIPBanned, nil)
	}
	return nil
}

// limiterErr folds a limiter failure into the configured availability
// policy. Budget exhaustion is always surfaced; transport failures are
// surfaced or swallowed per LimiterPolicy.
func (e *Engine) limiterErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var limitErr *rate.LimitError
	if errors.As(err, &limitErr) {
		return &RateLimitError{RetryAfter: limitErr.RetryAfter}
	}
	if errors.Is(err, rate.ErrLimited) {
		return &RateLimitError{}
	}

	e.metricInc(MetricStoreFailure)
	if e.config.Security.LimiterPolicy == FailOpen {
		e.logger.WarnContext(ctx, "rate limiter unavailable, failing open", "error", err)
		return nil
	}
	return failAuth(ErrStoreUnavailable, err)
}

// issuePair mints a fresh access+refresh pair and indexes the refresh token
// for logout-all.
func (e *Engine) issuePair(ctx context.Context, p *Principal) (*TokenPair, *jwt.Claims, error) {
	access, _, err := e.tokens.Issue(p.ID, p.Role, jwt.ScopeAccess)
	if err != nil {
		return nil, nil, err
	}

	refresh, refreshClaims, err := e.tokens.Issue(p.ID, p.Role, jwt.ScopeRefresh)
	if err != nil {
		return nil, nil, err
	}

	if err := e.revocations.IndexRefresh(ctx, p.ID, refreshClaims.ID, e.config.JWT.RefreshTTL); err != nil {
		e.metricInc(MetricStoreFailure)
		return nil, nil, failAuth(ErrStoreUnavailable, err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, refreshClaims, nil
}

// gateStatus maps a principal's account state onto the login gate.
func (e *Engine) gateStatus(p *Principal) error {
	switch p.Status {
	case StatusActive:
		return nil
	case StatusPendingVerification:
		if e.config.Verification.RequireForLogin {
			return failAuth(ErrAccountUnverified, nil)
		}
		return nil
	case StatusDisabled:
		return failAuth(ErrAccountDisabled, nil)
	default:
		return failAuth(ErrAccountDisabled, nil)
	}
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return failAuth(ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrBadSignature):
		return failAuth(ErrBadSignature, err)
	case errors.Is(err, jwt.ErrWrongScope):
		return failAuth(ErrWrongTokenType, err)
	case errors.Is(err, jwt.ErrMalformed):
		return failAuth(ErrTokenMalformed, err)
	default:
		return failAuth(ErrUnauthorized, err)
	}
}
