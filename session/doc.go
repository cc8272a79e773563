// Package session is the Redis-backed revocation layer under the stateless
// tokens. It stores three kinds of keys, all namespaced by a configurable
// prefix:
//
//	<prefix>:rvk:<jti>   revocation record, TTL = remaining token validity
//	<prefix>:use:<jti>   one-time consumption marker (refresh, verification)
//	<prefix>:idx:<id>    set of live refresh jtis per principal
//
// Records expire together with the tokens they shadow, so the keyspace is
// self-cleaning and never needs a sweep.
//
// Every method maps transport failures to [ErrUnavailable]; callers decide
// whether that fails the request open or closed. Reads and writes are bounded
// by the configured per-call timeout on top of the caller's context.
package session
