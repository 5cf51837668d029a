// Package redis connects the customer cache to Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"customers/internal/platform/config"
)

const clientName = "customers"

// Client is the connection behind the customer cache. It doubles as a
// /health check.
type Client struct {
	*redis.Client
	pingTimeout time.Duration
}

// New connects using cfg.URL and verifies the server answers. It returns nil
// when no URL is configured, which leaves the cache disabled.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyPool(opts, cfg)

	c := &Client{Client: redis.NewClient(opts), pingTimeout: cfg.PingTimeout}
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis at %s unreachable: %w", opts.Addr, err)
	}
	return c, nil
}

// applyPool lets explicit settings win over the URL's query parameters while
// leaving unset ones alone.
func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if opts.ClientName == "" {
		opts.ClientName = clientName
	}
}

// Health pings the server, bounded by the configured ping timeout.
func (c *Client) Health(ctx context.Context) error {
	if c.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pingTimeout)
		defer cancel()
	}
	return c.Ping(ctx).Err()
}
