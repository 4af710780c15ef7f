// Package server hosts the login site: strategy routes, session cookies and
// a couple of protected pages.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gwlsn/thingiverse-auth/internal/auth"
	"github.com/gwlsn/thingiverse-auth/internal/auth/thingiverse"
	"github.com/gwlsn/thingiverse-auth/internal/auth/tokenstore"
	"github.com/gwlsn/thingiverse-auth/internal/config"
	"github.com/gwlsn/thingiverse-auth/internal/logger"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front end for the configured strategies.
type Server struct {
	httpServer *http.Server
	registry   *auth.Registry
	cleanup    func() error
}

// New wires the token store, strategies and routes described by cfg.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	store, cleanup, err := newTokenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	strategy, err := thingiverse.New(thingiverse.Options{
		ClientID:             cfg.Thingiverse.ClientID,
		ClientSecret:         cfg.Thingiverse.ClientSecret,
		CallbackURL:          cfg.CallbackURL(),
		RequestTokenURL:      cfg.Thingiverse.RequestTokenURL,
		AccessTokenURL:       cfg.Thingiverse.AccessTokenURL,
		UserAuthorizationURL: cfg.Thingiverse.UserAuthorizationURL,
		SessionKey:           cfg.Thingiverse.SessionKey,
		Store:                store,
	}, VerifyProfile)
	if err != nil {
		_ = cleanup()
		return nil, err
	}

	registry := auth.NewRegistry()
	if err := registry.Register(strategy); err != nil {
		_ = cleanup()
		return nil, err
	}

	sessions, err := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		_ = cleanup()
		return nil, err
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           routes(registry, sessions),
			ReadHeaderTimeout: 10 * time.Second,
		},
		registry: registry,
		cleanup:  cleanup,
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", s.httpServer.Addr, "strategies", s.registry.Names())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		_ = s.cleanup()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return s.cleanup()
}

// VerifyProfile maps a Thingiverse profile to a site user.
func VerifyProfile(_ context.Context, _, _ string, profile *auth.Profile) (*auth.User, error) {
	if profile == nil || profile.ID == "" {
		return nil, nil
	}
	return &auth.User{
		ID:    profile.Provider + ":" + profile.ID,
		Name:  profile.Name,
		Email: profile.Email,
	}, nil
}

func newTokenStore(ctx context.Context, cfg *config.Config) (tokenstore.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.TokenStore.Backend {
	case "memory":
		return tokenstore.NewMemoryStore(cfg.TokenStore.TTL), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.TokenStore.RedisAddr,
			Password: cfg.TokenStore.RedisPassword,
			DB:       cfg.TokenStore.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("redis ready", "addr", cfg.TokenStore.RedisAddr)
		return tokenstore.NewRedisStore(client, cfg.TokenStore.TTL), client.Close, nil
	default:
		store, err := tokenstore.NewCookieStore(cfg.SessionSecret, cfg.TokenStore.TTL)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	}
}

func routes(registry *auth.Registry, sessions *auth.Sessions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /login", loginPage(registry))
	mux.Handle("GET /auth/{provider}/login", auth.LoginHandler(registry))
	mux.Handle("GET /auth/{provider}/callback", auth.CallbackHandler(registry, sessions, "/"))
	mux.Handle("POST /auth/logout", auth.LogoutHandler(sessions))

	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFromContext(r.Context())
		writeJSON(w, http.StatusOK, user)
	})
	mux.HandleFunc("GET /{$}", homePage)

	return auth.NewMiddleware(sessions, "/login", auth.DefaultBypassPaths()).Wrap(mux)
}

var loginTemplate = template.Must(template.New("login").Parse(`<!doctype html>
<html><body><h1>Sign in</h1><ul>
{{range .}}<li><a href="/auth/{{.}}/login">Sign in with {{.}}</a></li>
{{end}}</ul></body></html>`))

var homeTemplate = template.Must(template.New("home").Parse(`<!doctype html>
<html><body><p>Signed in as {{.Name}} ({{.ID}})</p>
<form method="POST" action="/auth/logout"><button type="submit">Sign out</button></form>
</body></html>`))

func loginPage(registry *auth.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := loginTemplate.Execute(w, registry.Names()); err != nil {
			logger.Error("render login page", "error", err)
		}
	}
}

func homePage(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homeTemplate.Execute(w, user); err != nil {
		logger.Error("render home page", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
