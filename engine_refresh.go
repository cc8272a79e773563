package authcore

import (
	"context"
	"errors"
	"time"

	"authcore/jwt"
)

// Refresh rotates a refresh token: the presented token is consumed and a
// fresh pair is issued. Each refresh token grants exactly one rotation;
// under concurrent presentation exactly one caller wins and every other
// caller gets ErrTokenRevoked. A consumed token presented again counts as
// reuse and, with ReuseRevokesAll, revokes the principal's entire refresh
// fleet.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.checkBannedIP(ctx); err != nil {
		e.auditFailure(ctx, auditEventIPBanned, "", err)
		return nil, err
	}

	claims, err := e.tokens.Verify(refreshToken, jwt.ScopeRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.auditFailure(ctx, auditEventRefreshInvalid, "", err)
		return nil, mapTokenError(err)
	}

	if err := e.limiterErr(ctx, e.limiter.AllowRefresh(ctx, claims.Subject)); err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			e.auditFailure(ctx, auditEventRefreshRateLimited, claims.Subject, err)
		}
		return nil, err
	}

	// Revocation and consumption both fail closed: with the store down a
	// rotated token cannot be distinguished from a fresh one.
	revoked, err := e.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.ErrorContext(ctx, "revocation check failed", "error", err)
		return nil, failAuth(ErrStoreUnavailable, err)
	}
	if revoked {
		e.metricInc(MetricRefreshFailure)
		e.auditFailure(ctx, auditEventRefreshInvalid, claims.Subject, ErrTokenRevoked)
		return nil, failAuth(ErrTokenRevoked, nil)
	}

	remaining := jwt.RemainingValidity(claims, time.Now())
	won, err := e.revocations.Consume(ctx, claims.ID, remaining)
	if err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.ErrorContext(ctx, "refresh consume failed", "error", err)
		return nil, failAuth(ErrStoreUnavailable, err)
	}
	if !won {
		return nil, e.refreshReuse(ctx, claims, remaining)
	}

	principal, err := e.principals.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.auditFailure(ctx, auditEventRefreshInvalid, claims.Subject, err)
			return nil, failAuth(ErrInvalidCredentials, err)
		}
		e.metricInc(MetricStoreFailure)
		e.logger.ErrorContext(ctx, "principal lookup failed", "error", err)
		return nil, failAuth(ErrStoreUnavailable, err)
	}

	if err := e.gateStatus(&principal); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.auditFailure(ctx, auditEventRefreshInvalid, principal.ID, err)
		return nil, err
	}

	if err := e.revocations.Unindex(ctx, principal.ID, claims.ID); err != nil {
		// The consumed jti stays in the index until it expires; harmless.
		e.logger.WarnContext(ctx, "refresh unindex failed", "error", err)
	}

	pair, refreshClaims, err := e.issuePair(ctx, &principal)
	if err != nil {
		e.auditFailure(ctx, auditEventRefreshInvalid, principal.ID, err)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.auditSuccess(ctx, auditEventRefreshSuccess, principal.ID, refreshClaims.ID)

	return pair, nil
}

// refreshReuse handles a refresh token presented after it was already
// consumed: either a replayed leak or a benign double-submit. Both get
// ErrTokenRevoked; with ReuseRevokesAll the whole fleet is revoked on the
// leak assumption.
func (e *Engine) refreshReuse(ctx context.Context, claims *jwt.Claims, remaining time.Duration) error {
	e.metricInc(MetricRefreshReuseDetected)
	e.emitAudit(ctx, AuditEvent{
		EventType:   auditEventRefreshReuseDetected,
		PrincipalID: claims.Subject,
		TokenID:     claims.ID,
	})

	if e.config.Security.ReuseRevokesAll {
		n, err := e.revocations.RevokeAllForPrincipal(ctx, claims.Subject, e.config.JWT.RefreshTTL)
		if err != nil {
			e.metricInc(MetricStoreFailure)
			e.logger.ErrorContext(ctx, "reuse fleet revocation failed", "principal", claims.Subject, "error", err)
		} else if n > 0 {
			e.metricInc(MetricTokenRevoked)
			e.logger.WarnContext(ctx, "refresh reuse detected, fleet revoked",
				"principal", claims.Subject, "revoked", n)
		}
	}

	// Ensure the replayed jti itself carries a revocation record for strict
	// validation paths.
	if err := e.revocations.Revoke(ctx, claims.ID, remaining); err != nil {
		e.logger.WarnContext(ctx, "replayed token revocation failed", "error", err)
	}

	return failAuth(ErrTokenRevoked, nil)
}
