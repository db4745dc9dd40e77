package store

import (
	"context"
	"time"
)

// MaxGapContexts bounds the sample sentences kept per gap.
const MaxGapContexts = 5

// Gap is a token none of the dictionary sources could resolve.
type Gap struct {
	Token      string    `json:"token"`
	Normalized string    `json:"normalized"`
	Hits       int       `json:"hits"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	Contexts   []string  `json:"contexts"`
}

// Store persists lexicon gaps so editors can prioritise new entries.
type Store interface {
	// RecordGap upserts token, bumping its hit count and keeping up to
	// MaxGapContexts distinct non-empty samples.
	RecordGap(ctx context.Context, token, normalized, sample string, seenAt time.Time) error
	// TopGaps returns the most frequent gaps first.
	TopGaps(ctx context.Context, limit int) ([]Gap, error)
	Close() error
}
