package auth

import (
	"errors"
	"net/http"

	"github.com/gwlsn/thingiverse-auth/internal/logger"
)

// LoginHandler starts the handshake for the strategy named by the {provider} path value.
func LoginHandler(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		strategy, err := registry.Strategy(r.PathValue("provider"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if err := strategy.HandleLogin(w, r); err != nil {
			logger.Error("auth login failed", "strategy", strategy.Name(), "error", err)
			http.Error(w, "failed to start login", http.StatusBadGateway)
		}
	}
}

// CallbackHandler completes the handshake, issues a session and redirects to successURL.
func CallbackHandler(registry *Registry, sessions *Sessions, successURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		strategy, err := registry.Strategy(r.PathValue("provider"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		user, err := strategy.HandleCallback(w, r)
		if err != nil {
			logger.Warn("auth callback failed", "strategy", strategy.Name(), "error", err)
			http.Error(w, http.StatusText(callbackStatus(err)), callbackStatus(err))
			return
		}

		if err := sessions.Issue(w, r, user); err != nil {
			logger.Error("issue session failed", "strategy", strategy.Name(), "error", err)
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}

		logger.Info("user authenticated", "strategy", strategy.Name(), "user_id", user.ID)
		http.Redirect(w, r, successURL, http.StatusFound)
	}
}

// LogoutHandler clears the session cookie.
func LogoutHandler(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sessions.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func callbackStatus(err error) int {
	var oauthErr *InternalOAuthError
	switch {
	case errors.Is(err, ErrAuthorizationDenied), errors.Is(err, ErrVerificationFailed):
		return http.StatusUnauthorized
	case errors.As(err, &oauthErr):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
