package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/labsnap/internal/auth"
)

// IdentityMiddleware resolves the caller account for every request.
//
// Requests without a token, or with one that fails verification, continue as
// the demo account; they are never rejected here.
type IdentityMiddleware struct {
	provider auth.Provider
	logger   *slog.Logger
}

// NewIdentityMiddleware creates a new IdentityMiddleware.
func NewIdentityMiddleware(provider auth.Provider, logger *slog.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{provider: provider, logger: logger}
}

// Handler stores the resolved auth.Identity in the request context.
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.provider.Identify(r)
		if err != nil && !errors.Is(err, auth.ErrNoToken) {
			m.logger.Debug("continuing as demo user", "path", r.URL.Path, "error", err)
		}
		next.ServeHTTP(w, r.WithContext(auth.SetIdentity(r.Context(), id)))
	})
}
