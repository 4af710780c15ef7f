package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gwlsn/thingiverse-auth/internal/auth"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// CookieStore keeps the request token in an encrypted cookie, so no server-side
// state is needed between redirect and callback.
type CookieStore struct {
	key [32]byte
	ttl time.Duration
	now func() time.Time
}

type sealedToken struct {
	RequestToken
	ExpiresAt int64 `json:"expires_at"`
}

// NewCookieStore derives the encryption key from secret.
func NewCookieStore(secret string, ttl time.Duration) (*CookieStore, error) {
	if secret == "" {
		return nil, errors.New("cookie token store requires a non-empty secret")
	}
	derived, err := auth.DeriveKey([]byte(secret), "request-token-cookie", 32)
	if err != nil {
		return nil, err
	}
	s := &CookieStore{ttl: ttlOrDefault(ttl), now: time.Now}
	copy(s.key[:], derived)
	return s, nil
}

func (s *CookieStore) Save(_ context.Context, w http.ResponseWriter, r *http.Request, key string, token RequestToken) error {
	payload, err := json.Marshal(sealedToken{
		RequestToken: token,
		ExpiresAt:    s.now().Add(s.ttl).Unix(),
	})
	if err != nil {
		return err
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	sealed := secretbox.Seal(nonce[:], payload, &nonce, &s.key)

	setCookie(w, r, key, base64.RawURLEncoding.EncodeToString(sealed), s.ttl)
	return nil
}

func (s *CookieStore) Load(_ context.Context, r *http.Request, key string) (RequestToken, error) {
	value, err := cookieValue(r, key)
	if err != nil {
		return RequestToken{}, err
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) < nonceSize {
		return RequestToken{}, ErrNotFound
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	payload, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return RequestToken{}, ErrNotFound
	}

	var stored sealedToken
	if err := json.Unmarshal(payload, &stored); err != nil {
		return RequestToken{}, ErrNotFound
	}
	if time.Unix(stored.ExpiresAt, 0).Before(s.now()) {
		return RequestToken{}, ErrNotFound
	}
	return stored.RequestToken, nil
}

func (s *CookieStore) Delete(_ context.Context, w http.ResponseWriter, _ *http.Request, key string) error {
	clearCookie(w, key)
	return nil
}
