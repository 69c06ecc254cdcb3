package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"treasuryd/internal/core/domain"
)

const latestKey = "treasury:latest"

// Client wraps Redis operations for the hot snapshot cache. The cache is an
// optimization in front of the snapshot store: a miss or a Redis outage is
// never an error on the read path.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks if Redis is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GetLatest returns the cached latest snapshot, (nil, nil) on a miss.
func (c *Client) GetLatest(ctx context.Context) (*domain.Snapshot, error) {
	data, err := c.rdb.Get(ctx, latestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached snapshot: %w", err)
	}

	var s domain.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &s, nil
}

// SetLatest caches a snapshot. The TTL is the freshness max-age so an
// expired key and a stale store row mean the same thing.
func (c *Client) SetLatest(ctx context.Context, s *domain.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, latestKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the cached latest snapshot.
func (c *Client) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, latestKey).Err()
}
