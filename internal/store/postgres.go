package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock keeps the gateway and the worker from racing on startup.
	const lockID = 0x7061_6977 // "paiw"

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Another service is migrating; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lexicon_gaps (
			token TEXT PRIMARY KEY,
			normalized TEXT NOT NULL,
			hits INT NOT NULL DEFAULT 1,
			first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
			contexts TEXT[] NOT NULL DEFAULT ARRAY[]::TEXT[]
		);`,
		`CREATE INDEX IF NOT EXISTS lexicon_gaps_hits_idx ON lexicon_gaps (hits DESC, last_seen DESC);`,
		`CREATE INDEX IF NOT EXISTS lexicon_gaps_normalized_idx ON lexicon_gaps (normalized);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) RecordGap(ctx context.Context, token, normalized, sample string, seenAt time.Time) error {
	if token == "" {
		return fmt.Errorf("gap token required")
	}
	if seenAt.IsZero() {
		seenAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lexicon_gaps(token, normalized, hits, first_seen, last_seen, contexts)
		VALUES($1, $2, 1, $4, $4, CASE WHEN $3::TEXT = '' THEN ARRAY[]::TEXT[] ELSE ARRAY[$3::TEXT] END)
		ON CONFLICT (token) DO UPDATE SET
			hits = lexicon_gaps.hits + 1,
			first_seen = LEAST(lexicon_gaps.first_seen, excluded.first_seen),
			last_seen = GREATEST(lexicon_gaps.last_seen, excluded.last_seen),
			contexts = CASE
				WHEN $3::TEXT = ''
					OR $3::TEXT = ANY(lexicon_gaps.contexts)
					OR cardinality(lexicon_gaps.contexts) >= $5
				THEN lexicon_gaps.contexts
				ELSE array_append(lexicon_gaps.contexts, $3::TEXT)
			END`,
		token, normalized, sample, seenAt, MaxGapContexts)
	if err != nil {
		return fmt.Errorf("failed to record gap %q: %w", token, err)
	}
	return nil
}

func (s *PostgresStore) TopGaps(ctx context.Context, limit int) ([]Gap, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, normalized, hits, first_seen, last_seen, contexts
		FROM lexicon_gaps
		ORDER BY hits DESC, last_seen DESC, token
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}
	defer rows.Close()

	out := make([]Gap, 0, limit)
	for rows.Next() {
		var g Gap
		var contexts []string
		if err := rows.Scan(&g.Token, &g.Normalized, &g.Hits, &g.FirstSeen, &g.LastSeen, pq.Array(&contexts)); err != nil {
			return nil, err
		}
		g.Contexts = contexts
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
