// Package redis holds the fast-path Redis side of the alert engine: the
// indicator snapshot cache and the trigger event publisher.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// DefaultSnapshotKey is where the engine snapshot lives when none is configured.
	DefaultSnapshotKey = "alert:indicator:snapshot"

	// DefaultChannelPrefix prefixes the per-symbol trigger channel.
	DefaultChannelPrefix = "pub:alert:"

	snapshotTTL    = 24 * time.Hour
	latestEventTTL = 6 * time.Hour
)

// Config configures the Redis client.
type Config struct {
	Addr          string // e.g. "localhost:6379"
	Password      string
	DB            int
	SnapshotKey   string
	ChannelPrefix string
}

// Client wraps a go-redis client with the keys the alert engine uses.
type Client struct {
	rdb           goredis.UniversalClient
	snapshotKey   string
	channelPrefix string
}

// New connects to Redis and pings the server.
func New(cfg Config) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return newClient(rdb, cfg), nil
}

func newClient(rdb goredis.UniversalClient, cfg Config) *Client {
	c := &Client{
		rdb:           rdb,
		snapshotKey:   cfg.SnapshotKey,
		channelPrefix: cfg.ChannelPrefix,
	}
	if c.snapshotKey == "" {
		c.snapshotKey = DefaultSnapshotKey
	}
	if c.channelPrefix == "" {
		c.channelPrefix = DefaultChannelPrefix
	}
	return c
}

// Ping checks connectivity, for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Channel returns the PubSub channel for symbol.
func (c *Client) Channel(symbol string) string {
	return c.channelPrefix + symbol
}

// LatestKey returns the key holding the last trigger event for symbol.
func (c *Client) LatestKey(symbol string) string {
	return c.channelPrefix + "latest:" + symbol
}

// Close closes the Redis client.
func (c *Client) Close() error {
	return c.rdb.Close()
}
