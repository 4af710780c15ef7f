package oauth1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gwlsn/thingiverse-auth/internal/auth"
	"github.com/gwlsn/thingiverse-auth/internal/auth/tokenstore"
)

// fakeProvider is a minimal OAuth 1.0a provider: it hands out a fixed request
// token, exchanges it for a fixed access token and serves a profile document.
type fakeProvider struct {
	server          *httptest.Server
	accessStatus    int
	profileRequests atomic.Int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{accessStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /request_token", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Authorization"), "oauth_callback=") {
			http.Error(w, "missing callback", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		fmt.Fprint(w, "oauth_token=req-token&oauth_token_secret=req-secret&oauth_callback_confirmed=true")
	})
	mux.HandleFunc("POST /access_token", func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.Contains(header, `oauth_token="req-token"`) || !strings.Contains(header, `oauth_verifier="the-verifier"`) {
			http.Error(w, "bad request token", http.StatusUnauthorized)
			return
		}
		if p.accessStatus != http.StatusOK {
			http.Error(w, "nope", p.accessStatus)
			return
		}
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		fmt.Fprint(w, "oauth_token=access-token&oauth_token_secret=access-secret")
	})
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		p.profileRequests.Add(1)
		if !strings.Contains(r.Header.Get("Authorization"), `oauth_token="access-token"`) {
			http.Error(w, "unsigned", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"99"}`)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) options(store tokenstore.Store) Options {
	return Options{
		RequestTokenURL:      p.server.URL + "/request_token",
		AccessTokenURL:       p.server.URL + "/access_token",
		UserAuthorizationURL: p.server.URL + "/authorize",
		ClientID:             "client-id",
		ClientSecret:         "client-secret",
		CallbackURL:          "http://app.example/auth/test/callback",
		SessionKey:           "oauth:test",
		Store:                store,
	}
}

// profileFrom returns a profile func that reads /me through the strategy's own engine.
func profileFrom(p *fakeProvider, s **Strategy) ProfileFunc {
	return func(ctx context.Context, token, tokenSecret string, _ auth.Params) (*auth.Profile, error) {
		if _, err := (*s).Engine().Get(ctx, p.server.URL+"/me", token, tokenSecret); err != nil {
			return nil, err
		}
		return &auth.Profile{Provider: "test", ID: "99"}, nil
	}
}

func acceptProfile(_ context.Context, token, _ string, profile *auth.Profile) (*auth.User, error) {
	if profile == nil {
		return &auth.User{ID: "anonymous:" + token}, nil
	}
	return &auth.User{ID: profile.Provider + ":" + profile.ID}, nil
}

func newTestStrategy(t *testing.T, p *fakeProvider, store tokenstore.Store, verify auth.VerifyFunc) *Strategy {
	t.Helper()
	var s *Strategy
	s, err := NewStrategy("test", p.options(store), verify, profileFrom(p, &s))
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}
	return s
}

// login runs HandleLogin and returns the recorder holding the token cookie.
func login(t *testing.T, s *Strategy) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/test/login", nil)
	if err := s.HandleLogin(rec, req); err != nil {
		t.Fatalf("HandleLogin: %v", err)
	}
	return rec
}

func callbackRequest(query string, from *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/test/callback?"+query, nil)
	if from != nil {
		for _, c := range from.Result().Cookies() {
			req.AddCookie(c)
		}
	}
	return req
}

func TestHandleLoginRedirects(t *testing.T) {
	p := newFakeProvider(t)
	store := tokenstore.NewMemoryStore(0)
	s := newTestStrategy(t, p, store, acceptProfile)

	rec := login(t, s)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, p.server.URL+"/authorize?") || !strings.Contains(location, "oauth_token=req-token") {
		t.Errorf("Location = %q", location)
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d tokens, want 1", store.Len())
	}

	stored, err := store.Load(context.Background(), callbackRequest("", rec), "oauth:test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stored.Token != "req-token" || stored.Secret != "req-secret" {
		t.Errorf("stored %+v", stored)
	}
}

func TestHandleCallbackCompletesHandshake(t *testing.T) {
	p := newFakeProvider(t)
	store := tokenstore.NewMemoryStore(0)
	s := newTestStrategy(t, p, store, acceptProfile)

	loginRec := login(t, s)
	rec := httptest.NewRecorder()
	user, err := s.HandleCallback(rec, callbackRequest("oauth_token=req-token&oauth_verifier=the-verifier", loginRec))
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if user.ID != "test:99" {
		t.Errorf("user = %+v", user)
	}
	if p.profileRequests.Load() != 1 {
		t.Errorf("profile requested %d times, want 1", p.profileRequests.Load())
	}
	if store.Len() != 0 {
		t.Errorf("request token not cleared; store holds %d", store.Len())
	}
}

func TestHandleCallbackWithCookieStore(t *testing.T) {
	p := newFakeProvider(t)
	store, err := tokenstore.NewCookieStore("0123456789abcdef0123456789abcdef", 0)
	if err != nil {
		t.Fatalf("NewCookieStore: %v", err)
	}
	s := newTestStrategy(t, p, store, acceptProfile)

	loginRec := login(t, s)
	rec := httptest.NewRecorder()
	if _, err := s.HandleCallback(rec, callbackRequest("oauth_token=req-token&oauth_verifier=the-verifier", loginRec)); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	// The token cookie is expired on the way out.
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokenstore.CookieName("oauth:test") && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("request token cookie was not cleared")
	}
}

func TestHandleCallbackErrors(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		withLogin bool
		verify    auth.VerifyFunc
		want      error
	}{
		{
			name:      "denied",
			query:     "denied=req-token",
			withLogin: true,
			want:      auth.ErrAuthorizationDenied,
		},
		{
			name:      "missing token",
			query:     "oauth_verifier=the-verifier",
			withLogin: true,
			want:      auth.ErrMissingToken,
		},
		{
			name:  "no stored token",
			query: "oauth_token=req-token&oauth_verifier=the-verifier",
			want:  auth.ErrRequestTokenNotFound,
		},
		{
			name:      "token mismatch",
			query:     "oauth_token=other-token&oauth_verifier=the-verifier",
			withLogin: true,
			want:      auth.ErrRequestTokenNotFound,
		},
		{
			name:      "verify rejects",
			query:     "oauth_token=req-token&oauth_verifier=the-verifier",
			withLogin: true,
			verify: func(context.Context, string, string, *auth.Profile) (*auth.User, error) {
				return nil, nil
			},
			want: auth.ErrVerificationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider(t)
			verify := tt.verify
			if verify == nil {
				verify = acceptProfile
			}
			s := newTestStrategy(t, p, tokenstore.NewMemoryStore(0), verify)

			var loginRec *httptest.ResponseRecorder
			if tt.withLogin {
				loginRec = login(t, s)
			}
			user, err := s.HandleCallback(httptest.NewRecorder(), callbackRequest(tt.query, loginRec))
			if user != nil {
				t.Errorf("expected no user, got %+v", user)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHandleCallbackDeniedClearsToken(t *testing.T) {
	p := newFakeProvider(t)
	store := tokenstore.NewMemoryStore(0)
	s := newTestStrategy(t, p, store, acceptProfile)

	loginRec := login(t, s)
	_, _ = s.HandleCallback(httptest.NewRecorder(), callbackRequest("denied=req-token", loginRec))
	if store.Len() != 0 {
		t.Errorf("store holds %d tokens after denial, want 0", store.Len())
	}
}

func TestHandleCallbackAccessTokenFailure(t *testing.T) {
	p := newFakeProvider(t)
	p.accessStatus = http.StatusInternalServerError
	s := newTestStrategy(t, p, tokenstore.NewMemoryStore(0), acceptProfile)

	loginRec := login(t, s)
	_, err := s.HandleCallback(httptest.NewRecorder(), callbackRequest("oauth_token=req-token&oauth_verifier=the-verifier", loginRec))

	var oauthErr *auth.InternalOAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("expected InternalOAuthError, got %T: %v", err, err)
	}
	if oauthErr.Message != "failed to obtain access token" {
		t.Errorf("Message = %q", oauthErr.Message)
	}
}

func TestHandleCallbackProfileErrorPropagates(t *testing.T) {
	p := newFakeProvider(t)
	profileErr := errors.New("profile unavailable")
	s, err := NewStrategy("test", p.options(tokenstore.NewMemoryStore(0)), acceptProfile,
		func(context.Context, string, string, auth.Params) (*auth.Profile, error) {
			return nil, profileErr
		})
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	loginRec := login(t, s)
	_, err = s.HandleCallback(httptest.NewRecorder(), callbackRequest("oauth_token=req-token&oauth_verifier=the-verifier", loginRec))
	if !errors.Is(err, profileErr) {
		t.Errorf("err = %v, want %v", err, profileErr)
	}
}

func TestSkipUserProfile(t *testing.T) {
	p := newFakeProvider(t)
	opts := p.options(tokenstore.NewMemoryStore(0))
	opts.SkipUserProfile = true

	var s *Strategy
	s, err := NewStrategy("test", opts, acceptProfile, profileFrom(p, &s))
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	loginRec := login(t, s)
	user, err := s.HandleCallback(httptest.NewRecorder(), callbackRequest("oauth_token=req-token&oauth_verifier=the-verifier", loginRec))
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if user.ID != "anonymous:access-token" {
		t.Errorf("verify saw a profile; user = %+v", user)
	}
	if p.profileRequests.Load() != 0 {
		t.Errorf("profile fetched %d times, want 0", p.profileRequests.Load())
	}
}

func TestHandleLoginWithoutRequestTokenURL(t *testing.T) {
	p := newFakeProvider(t)
	opts := p.options(nil)
	opts.RequestTokenURL = ""

	s, err := NewStrategy("test", opts, acceptProfile, nil)
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	err = s.HandleLogin(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/test/login", nil))
	if !errors.Is(err, ErrNoRequestTokenURL) {
		t.Errorf("err = %v, want ErrNoRequestTokenURL", err)
	}
	var oauthErr *auth.InternalOAuthError
	if !errors.As(err, &oauthErr) {
		t.Errorf("expected InternalOAuthError, got %T", err)
	}
}

func TestNewStrategyValidation(t *testing.T) {
	p := newFakeProvider(t)

	if _, err := NewStrategy("", p.options(nil), acceptProfile, nil); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := NewStrategy("test", p.options(nil), nil, nil); err == nil {
		t.Error("expected error for nil verify")
	}

	opts := p.options(nil)
	opts.AccessTokenURL = "not a url"
	if _, err := NewStrategy("test", opts, acceptProfile, nil); err == nil {
		t.Error("expected error for malformed access token URL")
	}
}

func TestDefaultProfileCarriesName(t *testing.T) {
	p := newFakeProvider(t)
	s, err := NewStrategy("test", p.options(nil), acceptProfile, nil)
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}
	profile, err := s.UserProfile(context.Background(), "t", "s", nil)
	if err != nil {
		t.Fatalf("UserProfile: %v", err)
	}
	if profile.Provider != "test" || profile.ID != "" {
		t.Errorf("profile = %+v", profile)
	}
}

var _ auth.Strategy = (*Strategy)(nil)
