package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis operations used for alert fan-out.
type Client struct {
	rdb     *redis.Client
	channel string
}

// Config holds Redis connection configuration. An empty URL disables Redis.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Channel  string `yaml:"channel"`
}

// DefaultChannel is the pub/sub channel alerts are published on.
const DefaultChannel = "vitality:alerts"

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
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &Client{rdb: rdb, channel: channel}, nil
}

// Channel is the configured pub/sub channel.
func (c *Client) Channel() string {
	return c.channel
}

// Publish sends payload on the configured channel and returns the number of
// subscribers that received it. Nothing is stored.
func (c *Client) Publish(ctx context.Context, payload []byte) (int64, error) {
	n, err := c.rdb.Publish(ctx, c.channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publish to %s failed: %w", c.channel, err)
	}
	return n, nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
