package authcore

import (
	"context"
	"time"
)

// Status is the lifecycle state of a principal. Principals are created
// active (or pending verification when the verification feature is on) and
// are deactivated rather than deleted.
type Status uint8

const (
	StatusActive Status = iota
	StatusPendingVerification
	StatusDisabled
)

// Principal is an authenticated identity: a stable ID, the identifier used
// to log in (email or username), and the stored credential hash. The hash is
// only ever read by the engine; plaintext secrets are never persisted or
// logged.
type Principal struct {
	ID         string
	Identifier string
	SecretHash string
	Role       string
	Status     Status
	CreatedAt  time.Time
}

// CreatePrincipalInput is the input for [PrincipalStore.Create]. SecretHash
// is already hashed by the engine; stores must treat it as opaque.
type CreatePrincipalInput struct {
	Identifier string
	SecretHash string
	Role       string
	Status     Status
}

// PrincipalStore is the interface callers implement to connect the engine to
// their relational store. The engine consumes it only as the source of the
// principal record and its stored hash; schema, pooling, and migrations stay
// on the caller's side. Lookups that match nothing must return (a wrapped)
// [ErrPrincipalNotFound]; Create must return [ErrDuplicateIdentifier] for a
// taken identifier.
type PrincipalStore interface {
	GetByIdentifier(ctx context.Context, identifier string) (Principal, error)
	GetByID(ctx context.Context, id string) (Principal, error)
	Create(ctx context.Context, input CreatePrincipalInput) (Principal, error)
	UpdateSecretHash(ctx context.Context, id, secretHash string) error
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// TokenPair is the result of a successful Login, Refresh, or auto-login
// CreateAccount: a short-lived access token and a one-time-use refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// CreateAccountResult is returned by [Engine.CreateAccount]. Tokens is
// non-nil only when auto-login is enabled. VerificationToken is non-empty
// when the verification feature is enabled; delivering it to the user (mail,
// SMS) is the caller's job.
type CreateAccountResult struct {
	Principal         Principal
	Tokens            *TokenPair
	VerificationToken string
}
