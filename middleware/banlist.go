package middleware

import (
	"net"
	"net/http"

	"authcore"
)

// AttachClientIP records the request's source address in the context via
// [authcore.WithClientIP] so the engine can throttle per IP and attribute
// audit events. The address is taken from RemoteAddr; deployments behind a
// trusted proxy should wrap this with their own forwarded-header resolution
// before it runs.
func AttachClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := remoteIP(r); ip != "" {
			r = r.WithContext(authcore.WithClientIP(r.Context(), ip))
		}
		next.ServeHTTP(w, r)
	})
}

// DenyBannedIPs rejects requests from the given addresses with 403 before
// any handler runs. The engine applies the same list on its own operations;
// this adapter just saves the round-trip into the handler stack.
func DenyBannedIPs(banned []string) func(http.Handler) http.Handler {
	denied := make(map[string]struct{}, len(banned))
	for _, ip := range banned {
		denied[ip] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := remoteIP(r); ip != "" {
				if _, ok := denied[ip]; ok {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port, e.g. in tests.
		return r.RemoteAddr
	}
	return host
}
