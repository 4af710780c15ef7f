package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps request tokens in Redis. The browser only holds a random
// state id, so the token secret never leaves the server.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed token store.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttlOrDefault(ttl)}
}

func (s *RedisStore) redisKey(key, id string) string {
	return key + ":" + id
}

func (s *RedisStore) Save(ctx context.Context, w http.ResponseWriter, r *http.Request, key string, token RequestToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("tokenstore: failed to marshal: %w", err)
	}
	id := uuid.NewString()
	if err := s.client.Set(ctx, s.redisKey(key, id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("tokenstore: redis set: %w", err)
	}
	setCookie(w, r, key, id, s.ttl)
	return nil
}

func (s *RedisStore) Load(ctx context.Context, r *http.Request, key string) (RequestToken, error) {
	id, err := cookieValue(r, key)
	if err != nil {
		return RequestToken{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return RequestToken{}, ErrNotFound
	}

	val, err := s.client.Get(ctx, s.redisKey(key, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return RequestToken{}, ErrNotFound
	}
	if err != nil {
		return RequestToken{}, fmt.Errorf("tokenstore: redis get: %w", err)
	}

	var token RequestToken
	if err := json.Unmarshal(val, &token); err != nil {
		return RequestToken{}, fmt.Errorf("tokenstore: failed to unmarshal: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Delete(ctx context.Context, w http.ResponseWriter, r *http.Request, key string) error {
	clearCookie(w, key)
	id, err := cookieValue(r, key)
	if err != nil {
		return nil
	}
	return s.client.Del(ctx, s.redisKey(key, id)).Err()
}
