package auth

import (
	"context"
	"net/http"
)

// User represents an authenticated user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Profile is the provider-agnostic shape of an account returned by an identity provider.
type Profile struct {
	Provider string
	ID       string
	Name     string
	Email    string

	// Raw is the response body exactly as the provider sent it.
	Raw string
	// JSON is Raw decoded into generic maps.
	JSON map[string]any
}

// Params carries extra values returned alongside an access token.
type Params map[string]string

// VerifyFunc maps a provider profile to an application user. Returning a nil
// user with a nil error rejects the login.
type VerifyFunc func(ctx context.Context, token, tokenSecret string, profile *Profile) (*User, error)

// Strategy is a pluggable authentication method registered with the host.
type Strategy interface {
	// Name returns the identifier used for lookup and routing (e.g. "thingiverse").
	Name() string

	// HandleLogin starts the delegated handshake, usually by redirecting.
	HandleLogin(w http.ResponseWriter, r *http.Request) error

	// HandleCallback completes the handshake and returns the verified user.
	HandleCallback(w http.ResponseWriter, r *http.Request) (*User, error)
}

// ProfileFetcher is implemented by strategies that can load a profile for a credential pair.
type ProfileFetcher interface {
	UserProfile(ctx context.Context, token, tokenSecret string, params Params) (*Profile, error)
}
