package middleware

import (
	"net/http"
	"strings"

	"github.com/noaione/klibrarian/internal/handler/http/response"
)

// TokenAuth guards the admin endpoints with the shared bearer token from the
// configuration.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authValue := r.Header.Get("Authorization")
			if authValue == "" {
				response.Unauthorized(w, "Unauthorized access. No authorization header provided.")
				return
			}

			bearer, ok := strings.CutPrefix(authValue, "Bearer ")
			if !ok {
				response.Unauthorized(w, "Invalid authorization format. Expected 'Bearer <token>'")
				return
			}

			if bearer != token {
				response.Unauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
