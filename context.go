package authcore

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's source address to ctx. The engine uses
// it for the banned-address check, per-IP login throttling, and audit
// events. Transport adapters (see package middleware) are expected to set it
// once per request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
