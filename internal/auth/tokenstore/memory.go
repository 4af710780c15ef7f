package tokenstore

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps request tokens in process memory. Suitable for a single
// instance and for tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	token     RequestToken
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory token store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttlOrDefault(ttl),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, w http.ResponseWriter, r *http.Request, key string, token RequestToken) error {
	id := uuid.NewString()

	s.mu.Lock()
	s.evictExpiredLocked()
	s.entries[key+":"+id] = memoryEntry{token: token, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()

	setCookie(w, r, key, id, s.ttl)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, r *http.Request, key string) (RequestToken, error) {
	id, err := cookieValue(r, key)
	if err != nil {
		return RequestToken{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key+":"+id]
	if !ok || entry.expiresAt.Before(s.now()) {
		return RequestToken{}, ErrNotFound
	}
	return entry.token, nil
}

func (s *MemoryStore) Delete(_ context.Context, w http.ResponseWriter, r *http.Request, key string) error {
	clearCookie(w, key)
	id, err := cookieValue(r, key)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	delete(s.entries, key+":"+id)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored tokens, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) evictExpiredLocked() {
	now := s.now()
	for k, entry := range s.entries {
		if entry.expiresAt.Before(now) {
			delete(s.entries, k)
		}
	}
}
