package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	errspkg "github.com/drblury/botcore/internal/runtime/errors"
)

// RedisStore keeps state as plain Redis string keys under a common prefix.
// Durability follows the server's persistence settings.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to rawURL and verifies the connection with a ping.
func OpenRedis(ctx context.Context, rawURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errspkg.NewStorageError("open", "", fmt.Errorf("parse redis URL: %w", err))
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errspkg.NewStorageError("open", "", fmt.Errorf("redis ping failed: %w", err))
	}

	return NewRedisStore(client, prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errspkg.NewStorageError("get", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	data, err := encodeValue("set", key, value)
	if err != nil {
		return err
	}
	return errspkg.NewStorageError("set", key, s.client.Set(ctx, s.key(key), data, 0).Err())
}

func (s *RedisStore) Add(ctx context.Context, key string, value any) error {
	data, err := encodeValue("add", key, value)
	if err != nil {
		return err
	}
	return errspkg.NewStorageError("add", key, s.client.SetNX(ctx, s.key(key), data, 0).Err())
}

// Health checks if the Redis connection is healthy.
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
