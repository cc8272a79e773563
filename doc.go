// Package authcore is a token-based authentication core: credential
// verification, JWT issuance with per-scope lifetimes, refresh rotation with
// single-use enforcement, Redis-backed revocation, and fixed-window rate
// limiting.
//
// The package is a library, not a service. Callers inject a
// [PrincipalStore] (their relational store), a Redis client, and a [Config]
// through [Builder], and get back an [Engine] whose methods are safe for
// concurrent use.
//
// # Architecture boundaries
//
// authcore is the public surface: [Engine], [Builder], [Config], the error
// taxonomy, and value types. Token mechanics live in authcore/jwt,
// credential hashing in authcore/password, revocation records in
// authcore/session, and window counters in authcore/internal/rate. HTTP
// adapters live in authcore/middleware and are optional.
//
// # Performance contract
//
// Validate is the hot path: in ModeJWTOnly it is fully offline, in
// ModeStrict it costs exactly one Redis round-trip. Login and Refresh are
// allowed a handful of Redis round-trips; the argon2id hash dominates Login
// regardless.
package authcore
