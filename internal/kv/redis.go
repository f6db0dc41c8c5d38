package kv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a durable store backed by a Redis hash. It exists for
// server-side hosts (webview shells, SDUI renderers) that want device
// identity and profile state shared across processes.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store persisting into the hash named key.
func NewRedisStore(opts *redis.Options, key string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(opts),
		key:    key,
	}
}

func (s *RedisStore) Get(key string) (string, error) {
	v, err := s.client.HGet(context.Background(), s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *RedisStore) Set(key, value string) error {
	return s.client.HSet(context.Background(), s.key, key, value).Err()
}

func (s *RedisStore) Delete(key string) error {
	return s.client.HDel(context.Background(), s.key, key).Err()
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
