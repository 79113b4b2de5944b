package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"warbler/internal/logger"
)

var log = logger.Component("Redis")

// Client is the single shared connection pool used by the timeline cache,
// the event stream and the session store.
type Client struct {
	*redis.Client
}

// NewClient parses redis://[:password@]host:port[/db] and dials lazily.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	log.Debug().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Client configured")
	return &Client{Client: redis.NewClient(opts)}, nil
}

// Ping fails fast at startup when Redis is unreachable.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("addr", c.Options().Addr).Dur("rtt", time.Since(start)).Msg("Connected")
	return nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}
