package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	defaultCookieName = "thingiverse_auth_session"
	defaultSessionTTL = 24 * time.Hour
)

// DeriveKey expands secret into an n-byte key bound to purpose.
// Distinct purposes yield independent keys from the same secret.
func DeriveKey(secret []byte, purpose string, n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(purpose)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Sessions issues and verifies HMAC-signed session cookies.
type Sessions struct {
	key        []byte
	cookieName string
	ttl        time.Duration
	now        func() time.Time
}

// NewSessions creates a session manager keyed from secret.
// A zero ttl selects the 24h default.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if secret == "" {
		return nil, errors.New("sessions require a non-empty secret")
	}
	key, err := DeriveKey([]byte(secret), "session-signing", 32)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Sessions{
		key:        key,
		cookieName: defaultCookieName,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

type sessionPayload struct {
	User      User  `json:"user"`
	ExpiresAt int64 `json:"expires_at"`
}

// Issue writes a session cookie for user.
func (s *Sessions) Issue(w http.ResponseWriter, r *http.Request, user *User) error {
	if user == nil || user.ID == "" {
		return errors.New("cannot issue session without a user id")
	}
	expires := s.now().Add(s.ttl)
	data, err := json.Marshal(sessionPayload{User: *user, ExpiresAt: expires.Unix()})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    s.signValue(data),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		Secure:   r.TLS != nil,
	})
	return nil
}

// Authenticate validates the session cookie and returns its user.
func (s *Sessions) Authenticate(r *http.Request) (*User, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return nil, err
	}
	payload, err := s.verifySignedValue(cookie.Value)
	if err != nil {
		return nil, err
	}
	var session sessionPayload
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, err
	}
	if time.Unix(session.ExpiresAt, 0).Before(s.now()) {
		return nil, errors.New("session expired")
	}
	user := session.User
	return &user, nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Sessions) signValue(payload []byte) string {
	signature := hmac.New(sha256.New, s.key)
	signature.Write(payload)
	sum := signature.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(sum)
}

func (s *Sessions) verifySignedValue(value string) ([]byte, error) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return nil, errors.New("invalid session format")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, errors.New("invalid session payload")
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errors.New("invalid session signature")
	}
	expected := hmac.New(sha256.New, s.key)
	expected.Write(payload)
	if subtle.ConstantTimeCompare(signature, expected.Sum(nil)) != 1 {
		return nil, errors.New("invalid session signature")
	}
	return payload, nil
}
