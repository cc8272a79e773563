// Package jwt wraps github.com/golang-jwt/jwt/v5 behind a Manager that
// mints and verifies the three token scopes used by authcore: access,
// refresh, and verification. Tokens are verifiable offline; revocation is
// layered on top by package session using the jti claim.
//
// The Manager is immutable after construction and safe for concurrent use.
// Key material comes from the configuration injected at construction, never
// from ambient process state.
package jwt
