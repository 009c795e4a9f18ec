package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

// CronSecretHeader carries the shared secret of scheduled callers.
const CronSecretHeader = "X-Cron-Secret"

var (
	ErrCronSecretMissing = errors.New("cron secret not configured")
	ErrCronSecretInvalid = errors.New("invalid cron secret")
	ErrAdminRequired     = errors.New("admin role required")
)

// CronSecret returns middleware that admits requests whose X-Cron-Secret
// header equals secret. With no secret configured every request is refused
// with 503, so an unset CRON_SECRET can never open the endpoint.
func CronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeAuthError(w, r, ErrCronSecretMissing, http.StatusServiceUnavailable)
				return
			}

			got := r.Header.Get(CronSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeAuthError(w, r, ErrCronSecretInvalid, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole returns middleware that admits requests whose role header
// canonicalizes to role. A missing header counts as the default role.
func RequireRole(header string, role core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if core.RoleToCanonical(r.Header.Get(header)) != role {
				writeAuthError(w, r, ErrAdminRequired, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)
	slog.Warn("auth: request rejected",
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
		"code", msg.Code,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   msg.Message,
		"message": msg.Message,
		"action":  msg.Action,
		"code":    msg.Code,
	})
}
