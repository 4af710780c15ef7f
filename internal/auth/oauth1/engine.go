// Package oauth1 wraps an OAuth 1.0a client library into the engine used by
// provider strategies: request tokens, authorization redirects, access-token
// exchange and signed GET requests.
package oauth1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dghubble/oauth1"
	"github.com/go-playground/validator/v10"
	"github.com/gwlsn/thingiverse-auth/internal/auth"
	"github.com/gwlsn/thingiverse-auth/internal/auth/tokenstore"
)

// ErrNoRequestTokenURL is returned when a handshake starts without a request-token endpoint.
var ErrNoRequestTokenURL = errors.New("oauth1: request token URL is not configured")

// Options configures an engine and the strategy built on it.
type Options struct {
	RequestTokenURL      string `validate:"omitempty,url"`
	AccessTokenURL       string `validate:"required,url"`
	UserAuthorizationURL string `validate:"required,url"`

	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	CallbackURL  string `validate:"required,url"`

	// SessionKey names the slot the request token is stored under.
	SessionKey string `validate:"required"`

	// SkipUserProfile completes the handshake without fetching a profile.
	SkipUserProfile bool

	// Store defaults to an in-memory store.
	Store tokenstore.Store `validate:"-"`

	// HTTPClient is used for signed API requests. Nil means http.DefaultClient.
	HTTPClient *http.Client `validate:"-"`
}

// Validate reports missing or malformed options.
func (o Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("oauth1: invalid options: %w", err)
	}
	return nil
}

// Engine performs the protocol side of OAuth 1.0a.
type Engine struct {
	config     *oauth1.Config
	httpClient *http.Client
}

// NewEngine validates opts and builds an engine.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config: &oauth1.Config{
			ConsumerKey:    opts.ClientID,
			ConsumerSecret: opts.ClientSecret,
			CallbackURL:    opts.CallbackURL,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: opts.RequestTokenURL,
				AuthorizeURL:    opts.UserAuthorizationURL,
				AccessTokenURL:  opts.AccessTokenURL,
			},
		},
		httpClient: opts.HTTPClient,
	}, nil
}

// RequestToken obtains temporary credentials from the provider.
func (e *Engine) RequestToken() (token, secret string, err error) {
	if e.config.Endpoint.RequestTokenURL == "" {
		return "", "", ErrNoRequestTokenURL
	}
	return e.config.RequestToken()
}

// AuthorizationURL returns where the user approves requestToken.
func (e *Engine) AuthorizationURL(requestToken string) (*url.URL, error) {
	return e.config.AuthorizationURL(requestToken)
}

// AccessToken exchanges an authorized request token for token credentials.
func (e *Engine) AccessToken(requestToken, requestSecret, verifier string) (token, secret string, err error) {
	return e.config.AccessToken(requestToken, requestSecret, verifier)
}

// Get issues a GET to rawURL signed with token and tokenSecret and returns the body.
// Responses outside 2xx yield *auth.StatusError.
func (e *Engine) Get(ctx context.Context, rawURL, token, tokenSecret string) ([]byte, error) {
	clientCtx := ctx
	if e.httpClient != nil {
		clientCtx = context.WithValue(ctx, oauth1.HTTPClient, e.httpClient)
	}
	client := e.config.Client(clientCtx, oauth1.NewToken(token, tokenSecret))
	return get(ctx, client, rawURL)
}

func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &auth.StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}
