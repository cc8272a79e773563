package authcore

import (
	"context"
	"errors"
)

// dummyHash is verified against when the identifier is unknown so that
// unknown-identifier and wrong-secret failures cost roughly the same time.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$" +
	"AAAAAAAAAAAAAAAAAAAAAA==$" +
	"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="

// Login verifies the identifier/secret pair and issues a fresh token pair.
// Unknown identifier and wrong secret both return ErrInvalidCredentials;
// exhausting the attempt budget returns a *RateLimitError even when the
// credentials would have been correct.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (*TokenPair, error) {
	if e == nil || e.principals == nil {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)

	if err := e.checkBannedIP(ctx); err != nil {
		e.auditFailure(ctx, auditEventIPBanned, "", err)
		return nil, err
	}

	if err := e.limiterErr(ctx, e.limiter.CheckLogin(ctx, identifier, ip)); err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.auditFailure(ctx, auditEventLoginRateLimited, "", err)
		}
		return nil, err
	}

	principal, err := e.principals.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			_, _ = e.hasher.Verify(secret, dummyHash)
			return nil, e.loginFailed(ctx, identifier, "", ip, nil)
		}
		e.metricInc(MetricStoreFailure)
		e.logger.ErrorContext(ctx, "principal lookup failed", "error", err)
		return nil, failAuth(ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(secret, principal.SecretHash)
	if err != nil {
		// Malformed stored hash: fail closed, but charge the attempt like any
		// other failure so the identifier cannot be probed.
		e.logger.ErrorContext(ctx, "stored hash unverifiable", "principal", principal.ID, "error", err)
		return nil, e.loginFailed(ctx, identifier, principal.ID, ip, err)
	}
	if !ok {
		return nil, e.loginFailed(ctx, identifier, principal.ID, ip, nil)
	}

	if err := e.gateStatus(&principal); err != nil {
		e.metricInc(MetricLoginFailure)
		e.auditFailure(ctx, auditEventLoginFailure, principal.ID, err)
		return nil, err
	}

	e.maybeUpgradeHash(ctx, &principal, secret)

	if err := e.limiter.ResetLogin(ctx, identifier, ip); err != nil {
		// Stale counters only shorten the window for real failures.
		e.logger.WarnContext(ctx, "login counter reset failed", "error", err)
	}

	pair, refreshClaims, err := e.issuePair(ctx, &principal)
	if err != nil {
		e.auditFailure(ctx, auditEventLoginFailure, principal.ID, err)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.auditSuccess(ctx, auditEventLoginSuccess, principal.ID, refreshClaims.ID)

	return pair, nil
}

// loginFailed charges the failed attempt and collapses the cause to
// ErrInvalidCredentials. A limiter denial takes precedence so the caller
// backs off instead of retrying.
func (e *Engine) loginFailed(ctx context.Context, identifier, principalID, ip string, cause error) error {
	e.metricInc(MetricLoginFailure)
	e.auditFailure(ctx, auditEventLoginFailure, principalID, cause)

	if err := e.limiterErr(ctx, e.limiter.RecordLoginFailure(ctx, identifier, ip)); err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.auditFailure(ctx, auditEventLoginRateLimited, principalID, err)
		}
		return err
	}

	return failAuth(ErrInvalidCredentials, cause)
}

// maybeUpgradeHash rehashes the stored credential after a successful
// verification when the stored hash uses the legacy scheme or weaker
// parameters. Best effort: the login proceeds either way.
func (e *Engine) maybeUpgradeHash(ctx context.Context, p *Principal, secret string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}

	needsUpgrade, err := e.hasher.NeedsUpgrade(p.SecretHash)
	if err != nil || !needsUpgrade {
		return
	}

	newHash, err := e.hasher.Hash(secret)
	if err != nil {
		e.logger.WarnContext(ctx, "credential rehash failed", "principal", p.ID, "error", err)
		return
	}
	if err := e.principals.UpdateSecretHash(ctx, p.ID, newHash); err != nil {
		e.logger.WarnContext(ctx, "credential upgrade write failed", "principal", p.ID, "error", err)
		return
	}

	p.SecretHash = newHash
	e.metricInc(MetricPasswordUpgraded)
}
