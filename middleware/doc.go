// Package middleware adapts net/http requests onto authcore engine calls.
//
//   - [Guard] reads the Authorization bearer token, calls Engine.Validate,
//     and injects the validated claims into the request context.
//   - [AttachClientIP] records the request's source address in the context so
//     the engine can apply IP throttling, the ban list, and audit
//     attribution.
//   - [DenyBannedIPs] rejects statically banned addresses before any handler
//     runs.
//
// This package translates HTTP semantics only; every authentication decision
// is delegated to the engine. It never parses tokens or touches Redis
// itself.
package middleware
