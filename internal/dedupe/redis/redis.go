// Package redis provides a cluster-safe deduper backed by Redis SETNX+TTL,
// for deployments where several stream instances consume the same feed.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"avm-dex-stream/internal/dedupe"
)

// Config for the Redis deduper.
type Config struct {
	Addr     string        `yaml:"addr"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// Deduper records seen keys in Redis with a TTL.
type Deduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Deduper, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "dexstream:seen:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Deduper{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

// Seen reports and records the key via SETNX. ok=true from SETNX means the
// key is new.
func (d *Deduper) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !ok, nil
}

// Health verifies the Redis connection.
func (d *Deduper) Health(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Close releases the client.
func (d *Deduper) Close() error {
	return d.client.Close()
}

// Compile-time interface check.
var _ dedupe.Deduper = (*Deduper)(nil)
