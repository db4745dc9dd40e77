// Package gaps reports tokens that no dictionary source could resolve and
// records them for lexicon editors.
package gaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paiwantalk/internal/metrics"
	"paiwantalk/internal/queue"
	"paiwantalk/internal/store"
)

const maxContextRunes = 200

// Gap is the payload of a lexicon_gap task.
type Gap struct {
	Token      string    `json:"token"`
	Normalized string    `json:"normalized"`
	Selector   string    `json:"selector"`
	Context    string    `json:"context,omitempty"`
	SeenAt     time.Time `json:"seen_at"`
}

// Reporter hands unresolved tokens to the background pipeline.
type Reporter interface {
	Report(ctx context.Context, gap Gap) error
}

// NoopReporter drops every report; used when no queue is configured.
type NoopReporter struct{}

func (NoopReporter) Report(context.Context, Gap) error { return nil }

// QueueReporter publishes gaps as lexicon_gap tasks.
type QueueReporter struct {
	q       queue.Queue
	metrics *metrics.Metrics
}

func NewQueueReporter(q queue.Queue, m *metrics.Metrics) *QueueReporter {
	return &QueueReporter{q: q, metrics: m}
}

func (r *QueueReporter) Report(ctx context.Context, gap Gap) error {
	err := r.report(ctx, gap)
	r.metrics.GapReported(err)
	return err
}

func (r *QueueReporter) report(ctx context.Context, gap Gap) error {
	if gap.Token == "" {
		return errors.New("gap token required")
	}
	if gap.SeenAt.IsZero() {
		gap.SeenAt = time.Now().UTC()
	}
	gap.Context = truncate(gap.Context, maxContextRunes)

	body, err := json.Marshal(gap)
	if err != nil {
		return fmt.Errorf("failed to marshal gap: %w", err)
	}
	task := queue.Task{Type: queue.TaskTypeLexiconGap, Payload: body, MaxAttempts: 5}
	if err := queue.EnqueueWithRetry(ctx, r.q, task, 2, 50*time.Millisecond); err != nil {
		return fmt.Errorf("failed to enqueue gap %q: %w", gap.Token, err)
	}
	return nil
}

// Decode extracts the Gap carried by task.
func Decode(task queue.Task) (Gap, error) {
	if task.Type != queue.TaskTypeLexiconGap {
		return Gap{}, fmt.Errorf("unexpected task type %q", task.Type)
	}
	var gap Gap
	if err := json.Unmarshal(task.Payload, &gap); err != nil {
		return Gap{}, fmt.Errorf("failed to decode gap: %w", err)
	}
	if gap.Token == "" {
		return Gap{}, errors.New("gap token required")
	}
	return gap, nil
}

// Recorder returns the queue handler that persists gaps into st.
func Recorder(st store.Store, log *slog.Logger, m *metrics.Metrics) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		gap, err := Decode(task)
		if err != nil {
			// malformed payloads will never succeed; drop instead of retrying
			log.Error("dropping gap task", "id", task.ID, "err", err)
			return nil
		}
		if err := st.RecordGap(ctx, gap.Token, gap.Normalized, gap.Context, gap.SeenAt); err != nil {
			return err
		}
		m.GapRecorded()
		log.Debug("gap recorded", "token", gap.Token, "selector", gap.Selector)
		return nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
