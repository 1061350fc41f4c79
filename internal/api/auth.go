package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/FocuswithJustin/bdoc/internal/logging"
)

// AuthMiddleware requires an X-API-Key header matching apiKey. An empty
// apiKey disables authentication. Public endpoints always pass.
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || isPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				logging.WarnContext(r.Context(), "unauthorized_request", "path", r.URL.Path, "reason", "missing API key")
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-API-Key header")
				return
			}
			if !constantTimeCompare(key, apiKey) {
				logging.WarnContext(r.Context(), "unauthorized_request", "path", r.URL.Path, "reason", "invalid API key")
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isPublicEndpoint reports whether path skips authentication.
func isPublicEndpoint(path string) bool {
	return path == "/health"
}

func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
