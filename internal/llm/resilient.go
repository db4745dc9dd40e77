package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultGarbageMarker = "!"
	DefaultGarbageRun    = 10
)

// Handle is one configured backend with its display name and the model it
// serves when a request is retargeted to it.
type Handle struct {
	Name         string
	DefaultModel string
	Backend      Backend
}

// Outcome classifies a single backend attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransportFailure
	OutcomeGarbageOutput
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransportFailure:
		return "transport_failure"
	case OutcomeGarbageOutput:
		return "garbage_output"
	default:
		return "unknown"
	}
}

// Attempt records one call against one backend.
type Attempt struct {
	Backend string
	Model   string
	Outcome Outcome
	Err     error
}

// ExhaustedError is returned once every backend has been tried without success.
// It matches ErrAllBackendsExhausted (completions) or ErrNoBackendAvailable
// (model listing), and the caller's context error when the sweep was cut short.
type ExhaustedError struct {
	Op       string
	Attempts []Attempt
	kind     error
	cause    error
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, e.kind)
	if e.cause != nil {
		fmt.Fprintf(&b, " (%v)", e.cause)
	}
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %s", a.Backend, a.Outcome)
		if a.Err != nil {
			fmt.Fprintf(&b, ": %v", a.Err)
		}
	}
	return b.String()
}

func (e *ExhaustedError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// AttemptObserver is notified after every backend attempt.
type AttemptObserver func(op, backend string, outcome Outcome, elapsed time.Duration)

type ClientOption func(*ResilientClient)

// WithTimeout sets the per-attempt deadline used when a request carries none.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *ResilientClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithGarbageSignature flags any response containing run consecutive copies of marker.
func WithGarbageSignature(marker string, run int) ClientOption {
	return func(c *ResilientClient) {
		if marker != "" && run > 0 {
			c.signature = strings.Repeat(marker, run)
		}
	}
}

func WithObserver(fn AttemptObserver) ClientOption {
	return func(c *ResilientClient) {
		if fn != nil {
			c.observe = fn
		}
	}
}

// ResilientClient tries an ordered list of primary backends and then an
// optional secondary, one attempt each. A response with the garbage signature
// counts as a failure. The client keeps no state between calls.
type ResilientClient struct {
	primaries []Handle
	secondary *Handle
	timeout   time.Duration
	signature string
	observe   AttemptObserver
	log       *slog.Logger
}

var _ Backend = (*ResilientClient)(nil)

func NewResilientClient(log *slog.Logger, primaries []Handle, secondary *Handle, opts ...ClientOption) *ResilientClient {
	if log == nil {
		log = slog.Default()
	}
	c := &ResilientClient{
		primaries: primaries,
		secondary: secondary,
		timeout:   DefaultTimeout,
		signature: strings.Repeat(DefaultGarbageMarker, DefaultGarbageRun),
		observe:   func(string, string, Outcome, time.Duration) {},
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsGarbage reports whether text carries the degenerate-output signature.
func (c *ResilientClient) IsGarbage(text string) bool {
	return c.signature != "" && strings.Contains(text, c.signature)
}

// Backends lists handle names in the order they are tried.
func (c *ResilientClient) Backends() []string {
	names := make([]string, 0, len(c.primaries)+1)
	for _, h := range c.primaries {
		names = append(names, h.Name)
	}
	if c.secondary != nil {
		names = append(names, c.secondary.Name)
	}
	return names
}

// CreateCompletion returns the first non-garbage completion. The secondary
// receives the request retargeted to its own default model.
func (c *ResilientClient) CreateCompletion(ctx context.Context, req CompletionRequest) (Completion, error) {
	var attempts []Attempt
	for _, h := range c.primaries {
		if err := ctx.Err(); err != nil {
			return Completion{}, c.exhausted("create completion", ErrAllBackendsExhausted, attempts, err)
		}
		out, a := c.complete(ctx, h, req)
		if a.Outcome == OutcomeSuccess {
			return out, nil
		}
		attempts = append(attempts, a)
	}

	if c.secondary != nil {
		if err := ctx.Err(); err != nil {
			return Completion{}, c.exhausted("create completion", ErrAllBackendsExhausted, attempts, err)
		}
		retargeted := req
		retargeted.Model = c.secondary.DefaultModel
		c.log.Info("switching to secondary backend",
			"backend", c.secondary.Name,
			"model", retargeted.Model,
			"failed_primaries", len(attempts))
		out, a := c.complete(ctx, *c.secondary, retargeted)
		if a.Outcome == OutcomeSuccess {
			return out, nil
		}
		attempts = append(attempts, a)
	}

	return Completion{}, c.exhausted("create completion", ErrAllBackendsExhausted, attempts, nil)
}

// ListModels returns the model ids of the first backend that answers.
func (c *ResilientClient) ListModels(ctx context.Context) ([]string, error) {
	handles := c.primaries
	if c.secondary != nil {
		handles = append(handles[:len(handles):len(handles)], *c.secondary)
	}

	var attempts []Attempt
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return nil, c.exhausted("list models", ErrNoBackendAvailable, attempts, err)
		}
		start := time.Now()
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		ids, err := h.Backend.ListModels(actx)
		cancel()
		if err == nil {
			c.observe("list_models", h.Name, OutcomeSuccess, time.Since(start))
			return ids, nil
		}
		c.observe("list_models", h.Name, OutcomeTransportFailure, time.Since(start))
		c.log.Warn("list models failed", "backend", h.Name, "err", err)
		attempts = append(attempts, Attempt{Backend: h.Name, Outcome: OutcomeTransportFailure, Err: err})
	}
	return nil, c.exhausted("list models", ErrNoBackendAvailable, attempts, nil)
}

func (c *ResilientClient) complete(ctx context.Context, h Handle, req CompletionRequest) (Completion, Attempt) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	a := Attempt{Backend: h.Name, Model: req.Model}

	start := time.Now()
	actx, cancel := context.WithTimeout(ctx, timeout)
	out, err := h.Backend.CreateCompletion(actx, req)
	cancel()
	elapsed := time.Since(start)

	switch {
	case err != nil:
		a.Outcome, a.Err = OutcomeTransportFailure, err
		c.log.Warn("backend attempt failed",
			"backend", h.Name, "model", req.Model, "outcome", a.Outcome.String(), "err", err)
	case c.IsGarbage(out.Content):
		a.Outcome, a.Err = OutcomeGarbageOutput, ErrGarbageOutput
		c.log.Warn("backend returned garbage output",
			"backend", h.Name, "model", req.Model, "length", len(out.Content))
	default:
		a.Outcome = OutcomeSuccess
		c.log.Debug("backend attempt succeeded",
			"backend", h.Name, "model", req.Model, "elapsed_ms", elapsed.Milliseconds())
	}
	c.observe("create_completion", h.Name, a.Outcome, elapsed)

	if out.Backend == "" {
		out.Backend = h.Name
	}
	if out.Model == "" {
		out.Model = req.Model
	}
	return out, a
}

func (c *ResilientClient) exhausted(op string, kind error, attempts []Attempt, cause error) error {
	err := &ExhaustedError{Op: op, Attempts: attempts, kind: kind, cause: cause}
	c.log.Error("all backends failed", "op", op, "attempts", len(attempts), "err", err)
	return err
}
