package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache stores generated assistant replies keyed by their inputs.
type Cache interface {
	// GetReply returns nil on a miss.
	GetReply(ctx context.Context, key string) (*Reply, error)
	SetReply(ctx context.Context, key string, reply *Reply, ttl time.Duration) error
	// Purge drops every cached reply, used when the lexicon may have changed.
	Purge(ctx context.Context) error
	Close() error
}

// Reply is a cached assistant answer.
type Reply struct {
	Reply    string `json:"reply"`
	Thinking string `json:"thinking"`
	Model    string `json:"model"`
}

// Key derives a stable cache key from its parts.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
