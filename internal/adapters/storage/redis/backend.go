package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/PabloGalante/singlechat/internal/adapters/storage/kvserver"
)

const (
	// Redis key prefix for messages
	defaultKeyPrefix = "message:"
)

// Backend implements kvserver.Backend using Redis.
// Keys are content addresses, so values are written once and never expire.
type Backend struct {
	client *redis.Client
	prefix string
}

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New connects to Redis and verifies the connection with a PING.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewBackend(client, cfg.Prefix), nil
}

// NewBackend wraps an existing client.
func NewBackend(client *redis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Backend{
		client: client,
		prefix: prefix,
	}
}

// Get implements kvserver.Backend.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kvserver.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// PutIfAbsent implements kvserver.Backend with SETNX.
func (b *Backend) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	created, err := b.client.SetNX(ctx, b.key(key), value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !created, nil
}

// Close implements kvserver.Backend.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) key(k string) string {
	return b.prefix + k
}

// Compile-time check that Backend implements kvserver.Backend
var _ kvserver.Backend = (*Backend)(nil)
