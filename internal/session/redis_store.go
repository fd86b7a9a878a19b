package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sweetalert/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions as Redis strings with idle expiry.
// Params: redis client, key prefix, and TTL.
// Returns: Redis-backed session store implementation.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
// Params: context for the ping and Redis session settings.
// Returns: initialized store or setup error.
func NewRedisStore(ctx context.Context, settings config.RedisSessionConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, prefix: settings.KeyPrefix, ttl: settings.TTL}, nil
}

// Load reads one session record.
// Params: session ID.
// Returns: record, ErrNotFound, or read/decode error.
func (s *RedisStore) Load(ctx context.Context, id string) (Record, error) {
	body, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get session: %w", err)
	}
	return decodeRecord(body)
}

// Save writes one session record and restarts its TTL.
// Params: session ID and record.
// Returns: encode or write error.
func (s *RedisStore) Save(ctx context.Context, id string, record Record) error {
	body, err := encodeRecord(record)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+id, body, s.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Delete removes one session record.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
