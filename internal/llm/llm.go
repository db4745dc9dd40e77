package llm

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAllBackendsExhausted means every primary and the secondary failed a completion.
	ErrAllBackendsExhausted = errors.New("all backends exhausted")
	// ErrNoBackendAvailable means no backend could list its models.
	ErrNoBackendAvailable = errors.New("no backend available")
	// ErrGarbageOutput marks a response that carried the degenerate-output signature.
	ErrGarbageOutput = errors.New("garbage output")
	// ErrEmptyResponse marks a response without any choices.
	ErrEmptyResponse = errors.New("empty response")
)

// Backend is an inference endpoint. The resilient client is itself a Backend,
// so callers cannot tell a single endpoint from a fallback chain.
type Backend interface {
	ListModels(ctx context.Context) ([]string, error)
	CreateCompletion(ctx context.Context, req CompletionRequest) (Completion, error)
}

// Role values accepted in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a chat completion call. Model may be replaced on fallback.
type CompletionRequest struct {
	Model           string
	Messages        []Message
	Temperature     float64
	MaxTokens       int
	PresencePenalty float64
	// Timeout bounds each backend attempt; zero uses the client default.
	Timeout time.Duration
}

// Completion is the generated text and where it came from.
type Completion struct {
	Content string
	Model   string
	Backend string
}
