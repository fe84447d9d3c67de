package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// RedisClient defines the Redis operations the area needs.
// This interface is compatible with github.com/redis/go-redis/v9.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd
	Get(ctx context.Context, key string) RedisStringCmd
	Del(ctx context.Context, keys ...string) RedisIntCmd
}

// RedisStatusCmd represents a Redis status command result.
type RedisStatusCmd interface {
	Err() error
}

// RedisStringCmd represents a Redis string command result.
type RedisStringCmd interface {
	Result() (string, error)
	Err() error
}

// RedisIntCmd represents a Redis int command result.
type RedisIntCmd interface {
	Err() error
}

// ErrRedisNil is returned when a key doesn't exist in Redis.
// This should match redis.Nil from go-redis.
var ErrRedisNil = errors.New("redis: nil")

// RedisArea is a Redis-backed storage area.
// It's suitable for several processes sharing one persistent area.
type RedisArea struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	closed atomic.Bool
}

// RedisAreaOption configures RedisArea behavior.
type RedisAreaOption func(*redisAreaConfig)

type redisAreaConfig struct {
	prefix string
	ttl    time.Duration
}

// WithRedisPrefix sets the key prefix.
// Default: "storesync:".
func WithRedisPrefix(prefix string) RedisAreaOption {
	return func(c *redisAreaConfig) {
		c.prefix = prefix
	}
}

// WithRedisTTL expires items ttl after their last write. Zero keeps items
// forever, which is the default. Session areas usually set a TTL.
func WithRedisTTL(ttl time.Duration) RedisAreaOption {
	return func(c *redisAreaConfig) {
		c.ttl = ttl
	}
}

// NewRedisArea creates a new Redis-backed storage area.
func NewRedisArea(client RedisClient, opts ...RedisAreaOption) *RedisArea {
	cfg := &redisAreaConfig{
		prefix: "storesync:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisArea{
		client: client,
		prefix: cfg.prefix,
		ttl:    cfg.ttl,
	}
}

func (r *RedisArea) key(key string) string {
	return r.prefix + key
}

// GetItem implements Area.
func (r *RedisArea) GetItem(ctx context.Context, key string) (string, bool, error) {
	if r.closed.Load() {
		return "", false, ErrAreaClosed{}
	}

	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if isRedisNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SetItem implements Area.
func (r *RedisArea) SetItem(ctx context.Context, key, value string) error {
	if r.closed.Load() {
		return ErrAreaClosed{}
	}
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

// RemoveItem implements Area.
func (r *RedisArea) RemoveItem(ctx context.Context, key string) error {
	if r.closed.Load() {
		return ErrAreaClosed{}
	}
	return r.client.Del(ctx, r.key(key)).Err()
}

// Close marks the area as closed.
// Note: This does not close the underlying Redis client,
// as it may be shared with other components.
func (r *RedisArea) Close() error {
	r.closed.Store(true)
	return nil
}

// Prefix returns the current key prefix.
func (r *RedisArea) Prefix() string {
	return r.prefix
}

// isRedisNil matches both ErrRedisNil and the client's own nil error,
// which is a distinct value with the same message.
func isRedisNil(err error) bool {
	return errors.Is(err, ErrRedisNil) || err.Error() == ErrRedisNil.Error()
}
