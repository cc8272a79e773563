// Package rate implements the Redis fixed-window counters behind login and
// refresh throttling.
//
// # Window semantics
//
// INCR + conditional EXPIRE on the first hit of the window. Key layout under
// the configured prefix:
//
//	<prefix>:rl:login:<identifier>
//	<prefix>:rl:loginip:<ip>
//	<prefix>:rl:refresh:<principal-id>
//
// When a caller is over budget the limiter reads PTTL so the rejection can
// carry a retry-after hint.
//
// The limiter only reports; whether a Redis outage fails the request open or
// closed is the engine's decision.
package rate
