package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is the generic failure that callers should surface to
	// end users. Every authentication failure below matches it via errors.Is,
	// so transport layers can collapse the taxonomy without switching on each
	// sentinel and without leaking which check failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned by Login when the identifier is
	// unknown or the secret does not match. The two cases are deliberately
	// indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenExpired is returned when a token's expiry has passed,
	// regardless of signature validity.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked is returned when a token's ID has a revocation record
	// in the ban store, including the case of a refresh token presented a
	// second time after rotation.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrBadSignature is returned when a token's signature does not verify
	// against the configured key material.
	ErrBadSignature = errors.New("bad token signature")

	// ErrTokenMalformed is returned when a token cannot be parsed at all.
	ErrTokenMalformed = errors.New("malformed token")

	// ErrWrongTokenType is returned when a structurally valid token carries
	// the wrong scope for the operation, for example an access token
	// presented to Refresh.
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrRateLimited is returned when an identity has exhausted its request
	// budget for the current window. Denials carry a retry-after hint via
	// [RateLimitError].
	ErrRateLimited = errors.New("rate limited")

	// ErrStoreUnavailable is returned when the ban store or rate limiter
	// backend cannot be reached within the configured timeout and the
	// fail-closed policy is active.
	ErrStoreUnavailable = errors.New("token store unavailable")

	// ErrIPBanned is returned when the caller's address appears in the
	// configured deny list.
	ErrIPBanned = errors.New("source address banned")

	// ErrAccountUnverified is returned when verification is required and the
	// principal has not confirmed ownership of their identifier.
	ErrAccountUnverified = errors.New("account unverified")

	// ErrAccountDisabled is returned for principals that have been
	// deactivated. Principals are never deleted, only disabled.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrAccountExists is returned by CreateAccount for a duplicate
	// identifier.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountCreationDisabled is returned by CreateAccount when the
	// account feature is switched off in config.
	ErrAccountCreationDisabled = errors.New("account creation disabled")

	// ErrVerificationDisabled is returned by the verification operations
	// when the feature is switched off in config.
	ErrVerificationDisabled = errors.New("verification disabled")

	// ErrPasswordPolicy is returned when a new secret does not satisfy the
	// minimum length enforced by the credential hasher.
	ErrPasswordPolicy = errors.New("password policy violation")

	// ErrPasswordReuse is returned by ChangePassword when the new secret
	// equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")

	// ErrPrincipalNotFound is the sentinel a [PrincipalStore] must return
	// (possibly wrapped) when no principal matches the lookup.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrDuplicateIdentifier is the sentinel a [PrincipalStore] must return
	// from Create when the identifier is already taken.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrEngineNotReady is returned when an Engine method is invoked on a
	// nil or incompletely constructed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// authFailures are the sentinels that collapse to ErrUnauthorized for
// callers matching with errors.Is.
var authFailures = []error{
	ErrInvalidCredentials,
	ErrTokenExpired,
	ErrTokenRevoked,
	ErrBadSignature,
	ErrTokenMalformed,
	ErrWrongTokenType,
	ErrAccountUnverified,
	ErrAccountDisabled,
}

// IsAuthFailure reports whether err is one of the authentication failures
// that must be presented to end users as a bare unauthorized signal.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	for _, sentinel := range authFailures {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// RateLimitError is the concrete error returned on rate-limit denials. It
// matches both ErrRateLimited and ErrUnauthorized under errors.Is and carries
// the remaining window time as a retry-after hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Is makes errors.Is(err, ErrRateLimited) and errors.Is(err, ErrUnauthorized)
// succeed for RateLimitError values.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited || target == ErrUnauthorized
}

// unauthorized wraps an internal failure so that errors.Is(err, sentinel)
// and errors.Is(err, ErrUnauthorized) both hold, while the internal detail
// stays available for logging and audit.
type unauthorizedError struct {
	sentinel error
	cause    error
}

func (e *unauthorizedError) Error() string {
	if e.cause == nil {
		return e.sentinel.Error()
	}
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *unauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized || target == e.sentinel
}

func (e *unauthorizedError) Unwrap() error {
	return e.cause
}

func failAuth(sentinel, cause error) error {
	return &unauthorizedError{sentinel: sentinel, cause: cause}
}
