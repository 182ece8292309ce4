package tokencache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by Redis, for deployments running several
// instances that should share one carrier token.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a Redis-backed token store. The URL follows the
// redis://[:password@]host[:port][/database] format.
func NewRedis(redisURL, key string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts), key: key}, nil
}

// NewRedisWithClient wraps an existing client, used in tests.
func NewRedisWithClient(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Get returns the cached token.
func (r *Redis) Get(ctx context.Context) (Token, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("reading token from redis: %w", err)
	}
	var token Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return Token{}, false, fmt.Errorf("decoding cached token: %w", err)
	}
	return token, true, nil
}

// Set replaces the cached token. The Redis TTL tracks the token expiry so
// stale tokens evict themselves.
func (r *Redis) Set(ctx context.Context, token Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.client.Set(ctx, r.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("storing token in redis: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
