package authcore

import (
	"context"
	"errors"

	"authcore/jwt"
)

// CreateAccount registers a new principal. The secret is hashed with the
// configured parameters before it reaches the store. When verification is
// enabled the principal starts in pending state and the result carries a
// one-time verification token for the caller to deliver; when auto-login is
// enabled (and verification does not gate login) the result carries a fresh
// token pair.
func (e *Engine) CreateAccount(ctx context.Context, identifier, secret string) (*CreateAccountResult, error) {
	if e == nil || e.principals == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Account.Enabled {
		return nil, ErrAccountCreationDisabled
	}

	if err := e.checkBannedIP(ctx); err != nil {
		e.auditFailure(ctx, auditEventIPBanned, "", err)
		return nil, err
	}

	hash, err := e.hasher.Hash(secret)
	if err != nil {
		return nil, failAuth(ErrPasswordPolicy, err)
	}

	status := StatusActive
	if e.config.Verification.Enabled {
		status = StatusPendingVerification
	}

	principal, err := e.principals.Create(ctx, CreatePrincipalInput{
		Identifier: identifier,
		SecretHash: hash,
		Role:       e.config.Account.DefaultRole,
		Status:     status,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			e.metricInc(MetricAccountDuplicate)
			e.auditFailure(ctx, auditEventAccountDuplicate, "", nil)
			return nil, failAuth(ErrAccountExists, err)
		}
		e.metricInc(MetricStoreFailure)
		e.logger.ErrorContext(ctx, "principal create failed", "error", err)
		return nil, failAuth(ErrStoreUnavailable, err)
	}

	result := &CreateAccountResult{Principal: principal}

	if e.config.Verification.Enabled {
		token, _, err := e.tokens.Issue(principal.ID, principal.Role, jwt.ScopeVerification)
		if err != nil {
			return nil, err
		}
		result.VerificationToken = token
		e.metricInc(MetricVerificationIssued)
	}

	if e.config.Account.AutoLogin && e.gateStatus(&principal) == nil {
		pair, _, err := e.issuePair(ctx, &principal)
		if err != nil {
			return nil, err
		}
		result.Tokens = pair
	}

	e.metricInc(MetricAccountCreated)
	e.auditSuccess(ctx, auditEventAccountCreated, principal.ID, "")

	return result, nil
}

// ChangePassword rotates a principal's secret after verifying the current
// one, then revokes the principal's whole refresh fleet so stolen sessions
// do not survive the change. The caller re-authenticates with the new
// secret.
func (e *Engine) ChangePassword(ctx context.Context, principalID, currentSecret, newSecret string) error {
	if e == nil || e.principals == nil {
		return ErrEngineNotReady
	}

	principal, err := e.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return failAuth(ErrInvalidCredentials, err)
		}
		e.metricInc(MetricStoreFailure)
		return failAuth(ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(currentSecret, principal.SecretHash)
	if err != nil || !ok {
		e.auditFailure(ctx, auditEventPasswordChangeDenied, principalID, err)
		return failAuth(ErrInvalidCredentials, err)
	}

	if newSecret == currentSecret {
		e.auditFailure(ctx, auditEventPasswordChangeDenied, principalID, ErrPasswordReuse)
		return failAuth(ErrPasswordReuse, nil)
	}

	newHash, err := e.hasher.Hash(newSecret)
	if err != nil {
		return failAuth(ErrPasswordPolicy, err)
	}

	if err := e.principals.UpdateSecretHash(ctx, principalID, newHash); err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.ErrorContext(ctx, "secret hash update failed", "principal", principalID, "error", err)
		return failAuth(ErrStoreUnavailable, err)
	}

	if _, err := e.revocations.RevokeAllForPrincipal(ctx, principalID, e.config.JWT.RefreshTTL); err != nil {
		// The secret already changed; surviving refresh tokens still verify
		// against nothing at next rotation, but report the degraded state.
		e.metricInc(MetricStoreFailure)
		e.logger.ErrorContext(ctx, "post-change fleet revocation failed", "principal", principalID, "error", err)
		return failAuth(ErrStoreUnavailable, err)
	}

	if err := e.limiter.ResetLogin(ctx, principal.Identifier, clientIPFromContext(ctx)); err != nil {
		e.logger.WarnContext(ctx, "login counter reset failed", "error", err)
	}

	e.metricInc(MetricPasswordChanged)
	e.metricInc(MetricTokenRevoked)
	e.auditSuccess(ctx, auditEventPasswordChanged, principalID, "")

	return nil
}
