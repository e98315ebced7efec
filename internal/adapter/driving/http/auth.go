package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/infrapanel/internal/application"
	"github.com/ericfisherdev/infrapanel/internal/domain/model"
)

// Authenticator verifies a username and password. *application.AuthService
// satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (model.Principal, error)
}

const basicRealm = `Basic realm="infrapanel", charset="UTF-8"`

// RequireAuth returns middleware that authenticates every request with HTTP
// Basic credentials and stores the resulting principal in the request context.
func RequireAuth(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				challenge(w)
				return
			}

			principal, err := auth.Authenticate(r.Context(), username, password)
			if errors.Is(err, application.ErrInvalidCredentials) {
				logger.Warn("authentication failed", "username", username, "path", r.URL.Path)
				challenge(w)
				return
			}
			if err != nil {
				logger.Error("authentication error", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(application.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin rejects requests whose principal is not an admin. It must run
// behind RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := application.PrincipalFromContext(r.Context())
		if !ok {
			challenge(w)
			return
		}
		if !principal.IsAdmin() {
			writeError(w, http.StatusForbidden, msgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", basicRealm)
	writeError(w, http.StatusUnauthorized, msgUnauthenticated)
}
