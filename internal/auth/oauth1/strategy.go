package oauth1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gwlsn/thingiverse-auth/internal/auth"
	"github.com/gwlsn/thingiverse-auth/internal/auth/tokenstore"
	"github.com/gwlsn/thingiverse-auth/internal/logger"
)

// ProfileFunc loads the provider profile for an access token pair.
type ProfileFunc func(ctx context.Context, token, tokenSecret string, params auth.Params) (*auth.Profile, error)

// Strategy runs the OAuth 1.0a redirect/callback handshake for a provider.
// Provider packages hold a *Strategy and supply the ProfileFunc.
type Strategy struct {
	name            string
	engine          *Engine
	sessionKey      string
	store           tokenstore.Store
	skipUserProfile bool
	profile         ProfileFunc
	verify          auth.VerifyFunc
}

// NewStrategy builds a strategy named name. A nil profile func yields a
// profile carrying only the provider name.
func NewStrategy(name string, opts Options, verify auth.VerifyFunc, profile ProfileFunc) (*Strategy, error) {
	if name == "" {
		return nil, errors.New("oauth1: strategy requires a name")
	}
	if verify == nil {
		return nil, errors.New("oauth1: strategy requires a verify callback")
	}
	engine, err := NewEngine(opts)
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		store = tokenstore.NewMemoryStore(0)
	}
	if profile == nil {
		profile = func(context.Context, string, string, auth.Params) (*auth.Profile, error) {
			return &auth.Profile{Provider: name}, nil
		}
	}

	return &Strategy{
		name:            name,
		engine:          engine,
		sessionKey:      opts.SessionKey,
		store:           store,
		skipUserProfile: opts.SkipUserProfile,
		profile:         profile,
		verify:          verify,
	}, nil
}

// Name returns the strategy identifier.
func (s *Strategy) Name() string { return s.name }

// SessionKey returns the key request tokens are stored under.
func (s *Strategy) SessionKey() string { return s.sessionKey }

// Engine exposes the underlying protocol engine.
func (s *Strategy) Engine() *Engine { return s.engine }

// HandleLogin obtains a request token, stores it and redirects to the provider.
func (s *Strategy) HandleLogin(w http.ResponseWriter, r *http.Request) error {
	token, secret, err := s.engine.RequestToken()
	if err != nil {
		return auth.NewInternalOAuthError("failed to obtain request token", err)
	}

	if err := s.store.Save(r.Context(), w, r, s.sessionKey, tokenstore.RequestToken{Token: token, Secret: secret}); err != nil {
		return fmt.Errorf("store request token: %w", err)
	}

	authURL, err := s.engine.AuthorizationURL(token)
	if err != nil {
		return err
	}

	logger.Debug("redirecting to provider", "strategy", s.name)
	http.Redirect(w, r, authURL.String(), http.StatusFound)
	return nil
}

// HandleCallback exchanges the authorized request token, loads the profile
// and runs the verify callback.
func (s *Strategy) HandleCallback(w http.ResponseWriter, r *http.Request) (*auth.User, error) {
	ctx := r.Context()
	query := r.URL.Query()

	if query.Get("denied") != "" {
		s.clearRequestToken(ctx, w, r)
		return nil, auth.ErrAuthorizationDenied
	}

	oauthToken := query.Get("oauth_token")
	if oauthToken == "" {
		return nil, auth.ErrMissingToken
	}

	stored, err := s.store.Load(ctx, r, s.sessionKey)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, auth.ErrRequestTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load request token: %w", err)
	}
	if stored.Token != oauthToken {
		return nil, auth.ErrRequestTokenNotFound
	}
	s.clearRequestToken(ctx, w, r)

	token, tokenSecret, err := s.engine.AccessToken(stored.Token, stored.Secret, query.Get("oauth_verifier"))
	if err != nil {
		return nil, auth.NewInternalOAuthError("failed to obtain access token", err)
	}

	var profile *auth.Profile
	if !s.skipUserProfile {
		profile, err = s.UserProfile(ctx, token, tokenSecret, auth.Params{})
		if err != nil {
			return nil, err
		}
	}

	user, err := s.verify(ctx, token, tokenSecret, profile)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, auth.ErrVerificationFailed
	}
	return user, nil
}

// UserProfile delegates to the provider's profile func.
func (s *Strategy) UserProfile(ctx context.Context, token, tokenSecret string, params auth.Params) (*auth.Profile, error) {
	return s.profile(ctx, token, tokenSecret, params)
}

func (s *Strategy) clearRequestToken(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(ctx, w, r, s.sessionKey); err != nil {
		logger.Warn("failed to clear request token", "strategy", s.name, "error", err)
	}
}
