package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

// Authenticator resolves the user behind a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*User, error)
}

// Middleware enforces authentication for incoming requests.
type Middleware struct {
	Authenticator Authenticator
	LoginURL      string
	BypassPaths   []string
}

// DefaultBypassPaths returns default unauthenticated endpoints.
func DefaultBypassPaths() []string {
	return []string{"/healthz", "/login", "/auth/*"}
}

// NewMiddleware creates an auth middleware.
func NewMiddleware(authenticator Authenticator, loginURL string, bypassPaths []string) *Middleware {
	return &Middleware{Authenticator: authenticator, LoginURL: loginURL, BypassPaths: bypassPaths}
}

// Wrap wraps an HTTP handler with auth enforcement.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil || m.Authenticator == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.shouldBypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.Authenticator.Authenticate(r)
		if err == nil && user != nil {
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
			return
		}

		if isAPIRequest(r.URL.Path) || m.LoginURL == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		http.Redirect(w, r, m.LoginURL, http.StatusFound)
	})
}

// WithUser attaches user to ctx.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated user if present.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(contextKey{}).(*User)
	return user, ok
}

func (m *Middleware) shouldBypass(path string) bool {
	for _, bypass := range m.BypassPaths {
		if bypass == path {
			return true
		}
		if strings.HasSuffix(bypass, "*") {
			prefix := strings.TrimSuffix(bypass, "*")
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}
	return false
}

func isAPIRequest(path string) bool {
	if path == "/api" {
		return true
	}
	return strings.HasPrefix(path, "/api/")
}
