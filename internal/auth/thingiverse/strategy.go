// Package thingiverse authenticates users against Thingiverse by delegating to
// its OAuth endpoints and normalizing the account returned by /users/me.
package thingiverse

import (
	"context"
	"fmt"
	"net/http"

	"github.com/creasty/defaults"
	"github.com/gwlsn/thingiverse-auth/internal/auth"
	"github.com/gwlsn/thingiverse-auth/internal/auth/oauth1"
	"github.com/gwlsn/thingiverse-auth/internal/auth/tokenstore"
)

const (
	// Name is the identifier the strategy registers under.
	Name = "thingiverse"

	DefaultAccessTokenURL       = "https://www.thingiverse.com/login/oauth/access_token"
	DefaultUserAuthorizationURL = "https://www.thingiverse.com/login/oauth/authorize"
	DefaultSessionKey           = "oauth:thingiverse"

	// ProfileURL returns the account owning the access token.
	ProfileURL = "https://api.thingiverse.com/users/me"
)

// Options configures the strategy. Empty endpoint and session key fields take
// the Thingiverse defaults. Client credentials are checked by the OAuth engine.
type Options struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string

	// RequestTokenURL has no default; login fails until it is set.
	RequestTokenURL      string
	AccessTokenURL       string `default:"https://www.thingiverse.com/login/oauth/access_token"`
	UserAuthorizationURL string `default:"https://www.thingiverse.com/login/oauth/authorize"`
	SessionKey           string `default:"oauth:thingiverse"`

	SkipUserProfile bool
	Store           tokenstore.Store
	HTTPClient      *http.Client
}

// Getter is the signed-request capability consumed from the OAuth layer.
type Getter interface {
	Get(ctx context.Context, rawURL, token, tokenSecret string) ([]byte, error)
}

// Strategy is the Thingiverse authentication strategy. The embedded OAuth
// strategy runs the handshake; this type supplies the profile.
type Strategy struct {
	*oauth1.Strategy

	options    Options
	getter     Getter
	profileURL string
}

// Option customizes a Strategy.
type Option func(*Strategy)

// WithGetter replaces the transport used for profile requests.
func WithGetter(getter Getter) Option {
	return func(s *Strategy) {
		s.getter = getter
	}
}

// New builds the strategy. verify maps the fetched profile to an application user.
func New(opts Options, verify auth.VerifyFunc, options ...Option) (*Strategy, error) {
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("thingiverse: apply defaults: %w", err)
	}

	s := &Strategy{options: opts, profileURL: ProfileURL}
	base, err := oauth1.NewStrategy(Name, oauth1.Options{
		RequestTokenURL:      opts.RequestTokenURL,
		AccessTokenURL:       opts.AccessTokenURL,
		UserAuthorizationURL: opts.UserAuthorizationURL,
		ClientID:             opts.ClientID,
		ClientSecret:         opts.ClientSecret,
		CallbackURL:          opts.CallbackURL,
		SessionKey:           opts.SessionKey,
		SkipUserProfile:      opts.SkipUserProfile,
		Store:                opts.Store,
		HTTPClient:           opts.HTTPClient,
	}, verify, s.UserProfile)
	if err != nil {
		return nil, fmt.Errorf("thingiverse: %w", err)
	}
	s.Strategy = base
	s.getter = base.Engine()

	for _, option := range options {
		option(s)
	}
	return s, nil
}

// Options returns the configuration with defaults applied.
func (s *Strategy) Options() Options {
	return s.options
}

// UserProfile fetches the authenticated account and normalizes it. Any failure
// is returned once and not retried.
func (s *Strategy) UserProfile(ctx context.Context, token, tokenSecret string, _ auth.Params) (*auth.Profile, error) {
	return fetchProfile(ctx, s.getter, s.profileURL, token, tokenSecret)
}

// FetchProfile loads the account for token through getter without a configured
// strategy, e.g. with a bearer transport.
func FetchProfile(ctx context.Context, getter Getter, token, tokenSecret string) (*auth.Profile, error) {
	return fetchProfile(ctx, getter, ProfileURL, token, tokenSecret)
}

func fetchProfile(ctx context.Context, getter Getter, profileURL, token, tokenSecret string) (*auth.Profile, error) {
	body, err := getter.Get(ctx, profileURL, token, tokenSecret)
	if err != nil {
		return nil, auth.NewInternalOAuthError("failed to fetch user profile", err)
	}
	return parseProfile(body)
}
