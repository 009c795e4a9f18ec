package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

// runContext tags a request context with the trigger that starts a run.
// The client IP is already on the context from TrustedRealIP.
func runContext(r *http.Request, trigger string) context.Context {
	return core.ContextWithTrigger(r.Context(), trigger)
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
