package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis storage backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	// Password for Redis authentication (optional)
	Password string

	// Database number to use (default: 0)
	Database int

	// Prefix is prepended to all keys (e.g., "app1:")
	Prefix string

	// Timeout for Redis operations
	Timeout time.Duration
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address: address,
		Timeout: 3 * time.Second,
	}
}

// RedisStorageAdapter stores values in Redis, for hosts whose local disk
// does not outlive the process.
type RedisStorageAdapter struct {
	cfg    RedisConfig
	client *redis.Client
}

var _ StorageAdapter = (*RedisStorageAdapter)(nil)

// NewRedisStorageAdapter connects to Redis and verifies the connection.
func NewRedisStorageAdapter(cfg RedisConfig) (*RedisStorageAdapter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStorageAdapter{cfg: cfg, client: client}, nil
}

func (r *RedisStorageAdapter) key(k string) string {
	return r.cfg.Prefix + k
}

// Set implements StorageAdapter. Values never expire.
func (r *RedisStorageAdapter) Set(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Get implements StorageAdapter.
func (r *RedisStorageAdapter) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, nil
}

// Delete implements StorageAdapter.
func (r *RedisStorageAdapter) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *RedisStorageAdapter) Close() error {
	return r.client.Close()
}
