package authcore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"authcore/jwt"
)

// Logout revokes the presented pair. The refresh token is required and is
// revoked and unindexed; the access token is optional (pass "") and is
// revoked for the strict validation path. Expired tokens are treated as
// already dead, not as errors: logout is idempotent.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	refreshClaims, err := e.tokens.Verify(refreshToken, jwt.ScopeRefresh)
	switch {
	case err == nil:
		now := time.Now()
		if err := e.revocations.Revoke(ctx, refreshClaims.ID, jwt.RemainingValidity(refreshClaims, now)); err != nil {
			e.metricInc(MetricStoreFailure)
			return failAuth(ErrStoreUnavailable, err)
		}
		if err := e.revocations.Unindex(ctx, refreshClaims.Subject, refreshClaims.ID); err != nil {
			e.logger.WarnContext(ctx, "logout unindex failed", "error", err)
		}
	case errors.Is(err, jwt.ErrExpired):
		// Already dead; nothing to revoke.
	default:
		return mapTokenError(err)
	}

	if accessToken != "" {
		accessClaims, err := e.tokens.Verify(accessToken, jwt.ScopeAccess)
		switch {
		case err == nil:
			if err := e.revocations.Revoke(ctx, accessClaims.ID, jwt.RemainingValidity(accessClaims, time.Now())); err != nil {
				e.metricInc(MetricStoreFailure)
				return failAuth(ErrStoreUnavailable, err)
			}
		case errors.Is(err, jwt.ErrExpired):
		default:
			return mapTokenError(err)
		}
	}

	principalID := ""
	tokenID := ""
	if refreshClaims != nil {
		principalID = refreshClaims.Subject
		tokenID = refreshClaims.ID
	}

	e.metricInc(MetricLogout)
	e.auditSuccess(ctx, auditEventLogout, principalID, tokenID)

	return nil
}

// LogoutAll revokes every indexed refresh token for the principal. Already
// issued access tokens stay valid until expiry unless validation runs in
// ModeStrict; keeping access TTLs short bounds that exposure.
func (e *Engine) LogoutAll(ctx context.Context, principalID string) (int, error) {
	if e == nil || e.revocations == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.revocations.RevokeAllForPrincipal(ctx, principalID, e.config.JWT.RefreshTTL)
	if err != nil {
		e.metricInc(MetricStoreFailure)
		return 0, failAuth(ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, AuditEvent{
		EventType:   auditEventLogoutAll,
		PrincipalID: principalID,
		Success:     true,
		Metadata:    map[string]string{"revoked": strconv.Itoa(n)},
	})

	return n, nil
}
