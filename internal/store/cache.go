package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the minimal byte-cache contract used by CachedStore.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// RedisCache implements Cache against a Redis-compatible server.
type RedisCache struct {
	client *redis.Client
}

// RedisConfig holds connection parameters for the document cache. Zero
// timeouts keep the client defaults.
type RedisConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// Get returns the cached value or ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores the value with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }

// CachedStore wraps a DocumentStore with a read-through byte cache. Raw
// documents for a closed day never change, so a hit is always safe; cache
// failures fall back to the inner store.
type CachedStore struct {
	inner  DocumentStore
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps inner with the provided cache.
func NewCachedStore(inner DocumentStore, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedStore{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// Fetch implements DocumentStore.
func (s *CachedStore) Fetch(ctx context.Context, date string, kind models.DocKind) ([]byte, error) {
	key := fmt.Sprintf("doc:%s:%s", date, kind)
	if data, err := s.cache.Get(ctx, key); err == nil {
		return data, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("document cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	data, err := s.inner.Fetch(ctx, date, kind)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("document cache write failed", slog.String("key", key), slog.Any("error", err))
	}
	return data, nil
}

// Dates delegates to the inner store; listings are cheap and mutate daily.
func (s *CachedStore) Dates(ctx context.Context) ([]string, error) {
	return s.inner.Dates(ctx)
}
