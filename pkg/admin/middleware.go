package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/txn2/storefront/pkg/auth"
)

// Authenticator validates operator credentials on a request.
type Authenticator interface {
	AuthenticateRequest(r *http.Request) (*auth.Operator, error)
}

// RequireAdmin creates middleware that enforces admin authentication.
func RequireAdmin(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, err := authn.AuthenticateRequest(r)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidAPIKey) {
					writeError(w, http.StatusUnauthorized, "authentication required")
					return
				}
				slog.Error("admin authentication failed", "error", err)
				writeError(w, http.StatusInternalServerError, "authentication error")
				return
			}
			if op == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !op.HasRole(auth.RoleAdmin) {
				writeError(w, http.StatusForbidden, "admin role required")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithOperator(r.Context(), op)))
		})
	}
}

// operatorName returns the authenticated operator's name for logs.
func operatorName(r *http.Request) string {
	if op := auth.GetOperator(r.Context()); op != nil {
		return op.Name
	}
	return ""
}
