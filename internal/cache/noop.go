package cache

import (
	"context"
	"time"
)

// NoOpCache is a cache implementation that does nothing.
// Used when Redis is disabled or unreachable: every lookup misses.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) GetReply(ctx context.Context, key string) (*Reply, error) {
	return nil, nil
}

func (c *NoOpCache) SetReply(ctx context.Context, key string, reply *Reply, ttl time.Duration) error {
	return nil
}

func (c *NoOpCache) Purge(ctx context.Context) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}
