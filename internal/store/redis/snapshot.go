package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
)

// SaveSnapshotJSON stores an encoded engine snapshot with a 24h TTL.
// SQLite holds the durable copy.
func (c *Client) SaveSnapshotJSON(ctx context.Context, data []byte) error {
	if err := c.rdb.Set(ctx, c.snapshotKey, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis set snapshot %s: %w", c.snapshotKey, err)
	}
	return nil
}

// ReadLatestSnapshotJSON returns the cached snapshot, or nil, nil when absent.
func (c *Client) ReadLatestSnapshotJSON(ctx context.Context) ([]byte, error) {
	data, err := c.rdb.Get(ctx, c.snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get snapshot %s: %w", c.snapshotKey, err)
	}
	return data, nil
}
