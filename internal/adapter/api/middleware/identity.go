package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/V4T54L/notification-service/internal/pkg/token"
)

// UserIDHeader carries the acting user id, either set by the gateway or
// derived here from a bearer token.
const UserIDHeader = "X-Auth-User-Id"

// Identity is a middleware factory that resolves the acting user.
// When secret is set and the request carries a bearer token, the token's
// subject overrides X-Auth-User-Id; an invalid token is rejected with 401.
// Requests without a token pass through unchanged.
func Identity(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok || secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := token.Validate(raw, secret)
			if err != nil {
				logger.Warn("invalid bearer token", "remote_addr", r.RemoteAddr, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Invalid token"})
				return
			}

			r.Header.Set(UserIDHeader, claims.Subject)
			next.ServeHTTP(w, r)
		})
	}
}

// UserID returns the acting user id resolved by Identity, or "".
func UserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(h[7:])
	return t, t != ""
}
