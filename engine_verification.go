package authcore

import (
	"context"
	"errors"
	"time"

	"authcore/jwt"
)

// IssueVerification mints a fresh verification token for a principal still
// in pending state. Delivery (mail, SMS) is the caller's job; the engine
// never sees addresses.
func (e *Engine) IssueVerification(ctx context.Context, principalID string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	if !e.config.Verification.Enabled {
		return "", ErrVerificationDisabled
	}

	principal, err := e.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return "", failAuth(ErrInvalidCredentials, err)
		}
		e.metricInc(MetricStoreFailure)
		return "", failAuth(ErrStoreUnavailable, err)
	}

	if principal.Status != StatusPendingVerification {
		// Already verified or disabled; a new token would be a no-op or a
		// backdoor respectively.
		return "", failAuth(ErrInvalidCredentials, nil)
	}

	token, _, err := e.tokens.Issue(principal.ID, principal.Role, jwt.ScopeVerification)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricVerificationIssued)
	e.auditSuccess(ctx, auditEventVerificationIssued, principal.ID, "")

	return token, nil
}

// ConfirmVerification consumes a verification token and activates the
// principal. Each token confirms at most once; replaying one returns
// ErrTokenRevoked even while it is still within its lifetime.
func (e *Engine) ConfirmVerification(ctx context.Context, verificationToken string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if !e.config.Verification.Enabled {
		return ErrVerificationDisabled
	}

	claims, err := e.tokens.Verify(verificationToken, jwt.ScopeVerification)
	if err != nil {
		e.auditFailure(ctx, auditEventVerificationRejected, "", err)
		return mapTokenError(err)
	}

	won, err := e.revocations.Consume(ctx, claims.ID, jwt.RemainingValidity(claims, time.Now()))
	if err != nil {
		e.metricInc(MetricStoreFailure)
		return failAuth(ErrStoreUnavailable, err)
	}
	if !won {
		e.auditFailure(ctx, auditEventVerificationRejected, claims.Subject, ErrTokenRevoked)
		return failAuth(ErrTokenRevoked, nil)
	}

	principal, err := e.principals.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return failAuth(ErrInvalidCredentials, err)
		}
		e.metricInc(MetricStoreFailure)
		return failAuth(ErrStoreUnavailable, err)
	}

	switch principal.Status {
	case StatusPendingVerification:
	case StatusActive:
		// Confirming twice via two distinct tokens; nothing to do.
		return nil
	default:
		return failAuth(ErrAccountDisabled, nil)
	}

	if err := e.principals.UpdateStatus(ctx, principal.ID, StatusActive); err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.ErrorContext(ctx, "status update failed", "principal", principal.ID, "error", err)
		return failAuth(ErrStoreUnavailable, err)
	}

	e.metricInc(MetricVerificationConfirmed)
	e.auditSuccess(ctx, auditEventVerificationConfirmed, principal.ID, "")

	return nil
}
