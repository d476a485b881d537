package auth

import (
	"context"
	"net/http"
	"strings"

	"resultdb/pkg/logger"
	"resultdb/pkg/utils"
)

type claimsKey struct{}

// ClaimsFromContext returns the verified claims the middleware attached.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// Middleware rejects requests without a valid bearer token. Failure
// responses stay deliberately generic; the precise reason is only logged.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				utils.JSONError(w, http.StatusUnauthorized, "Missing Authorization header")
				logger.Warn("auth_rejected", "reason", "missing_header", "path", r.URL.Path)
				return
			}

			parts := strings.Fields(header)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				utils.JSONError(w, http.StatusUnauthorized, "Invalid authorization header format")
				logger.Warn("auth_rejected", "reason", "malformed_header", "path", r.URL.Path)
				return
			}

			claims, err := v.Verify(parts[1])
			if err != nil {
				utils.JSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				logger.Warn("auth_rejected", "reason", "invalid_token", "path", r.URL.Path, "error", err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
