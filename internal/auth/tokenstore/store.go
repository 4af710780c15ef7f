// Package tokenstore keeps OAuth request tokens between the login redirect and
// the provider callback.
package tokenstore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const defaultTTL = 10 * time.Minute

// ErrNotFound is returned when no usable request token is stored under a key.
var ErrNotFound = errors.New("request token not found")

// RequestToken is the temporary credential issued by the provider.
type RequestToken struct {
	Token  string `json:"token"`
	Secret string `json:"secret"`
}

// Store persists request tokens under a strategy's session key.
type Store interface {
	Save(ctx context.Context, w http.ResponseWriter, r *http.Request, key string, token RequestToken) error
	Load(ctx context.Context, r *http.Request, key string) (RequestToken, error)
	Delete(ctx context.Context, w http.ResponseWriter, r *http.Request, key string) error
}

// CookieName turns a session key such as "oauth:thingiverse" into a valid cookie name.
func CookieName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}

func setCookie(w http.ResponseWriter, r *http.Request, key, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(key),
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

func clearCookie(w http.ResponseWriter, key string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(key),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, key string) (string, error) {
	cookie, err := r.Cookie(CookieName(key))
	if err != nil || cookie.Value == "" {
		return "", ErrNotFound
	}
	return cookie.Value, nil
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultTTL
	}
	return ttl
}
