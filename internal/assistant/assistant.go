// Package assistant routes a conversation to translation, example-sentence
// recommendation or general chat, grounding translations in the lexicon.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"paiwantalk/internal/cache"
	"paiwantalk/internal/gaps"
	"paiwantalk/internal/lexicon"
	"paiwantalk/internal/llm"
	"paiwantalk/internal/metrics"
)

// Mode selects which backends serve a request.
type Mode string

const (
	ModeDefault    Mode = "default"     // primaries, then the secondary
	ModeVLLMOnly   Mode = "vllm_only"   // primaries only
	ModeOpenAIOnly Mode = "openai_only" // secondary only, fixed model
)

// ParseMode is case-insensitive; unknown values select ModeDefault.
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeVLLMOnly, ModeOpenAIOnly:
		return m
	default:
		return ModeDefault
	}
}

// ErrNoModels means a backend answered the model listing with nothing.
var ErrNoModels = errors.New("no models available")

// Route is the client serving one Mode. An empty Model is discovered by
// listing the client's models and taking the first.
type Route struct {
	Client llm.Backend
	Model  string
}

// Reply is what the chat endpoint returns.
type Reply struct {
	Reply    string `json:"reply"`
	Model    string `json:"model"`
	Thinking string `json:"thinking"`
	Intent   Intent `json:"intent,omitempty"`
}

type Option func(*Assistant)

// WithCache enables caching of translation replies.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(a *Assistant) {
		if c != nil {
			a.cache, a.cacheTTL = c, ttl
		}
	}
}

func WithGapReporter(r gaps.Reporter) Option {
	return func(a *Assistant) {
		if r != nil {
			a.gaps = r
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

type Assistant struct {
	routes   map[Mode]Route
	resolver *lexicon.Resolver
	cache    cache.Cache
	cacheTTL time.Duration
	gaps     gaps.Reporter
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func New(log *slog.Logger, resolver *lexicon.Resolver, routes map[Mode]Route, opts ...Option) *Assistant {
	a := &Assistant{
		routes:   routes,
		resolver: resolver,
		cache:    cache.NewNoOpCache(),
		cacheTTL: time.Hour,
		gaps:     gaps.NoopReporter{},
		log:      log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Models lists the model ids served in mode.
func (a *Assistant) Models(ctx context.Context, mode Mode) ([]string, error) {
	route, err := a.route(mode)
	if err != nil {
		return nil, err
	}
	return route.Client.ListModels(ctx)
}

// Chat classifies the latest turn and answers it. Backend failures are folded
// into an apologetic Reply; Chat itself never fails.
func (a *Assistant) Chat(ctx context.Context, messages []llm.Message, mode Mode) Reply {
	route, err := a.route(mode)
	if err != nil {
		return Reply{Reply: replyModelListFailed, Model: "unknown", Thinking: err.Error()}
	}
	model, err := a.model(ctx, route)
	if err != nil {
		a.log.Error("failed to resolve model", "mode", mode, "err", err)
		return Reply{Reply: replyModelListFailed, Model: "unknown", Thinking: err.Error()}
	}

	t := turn{client: route.Client, model: model, mode: mode, messages: messages}
	intent := a.classify(ctx, t)
	a.metrics.ObserveIntent(string(intent))
	a.log.Info("intent classified", "intent", intent, "mode", mode, "model", model)

	var reply, thinking string
	switch intent {
	case IntentTranslation:
		reply, thinking = a.translate(ctx, t)
	case IntentRecommendation:
		reply, thinking = a.recommend(ctx, t)
	default:
		reply, thinking = a.chat(ctx, t)
	}
	return Reply{Reply: reply, Model: model, Thinking: thinking, Intent: intent}
}

// turn is one request's view of the conversation and its serving backend.
type turn struct {
	client   llm.Backend
	model    string
	mode     Mode
	messages []llm.Message
}

func (t turn) complete(ctx context.Context, msgs []llm.Message, temperature float64, maxTokens int, presence float64) (string, error) {
	out, err := t.client.CreateCompletion(ctx, llm.CompletionRequest{
		Model:           t.model,
		Messages:        msgs,
		Temperature:     temperature,
		MaxTokens:       maxTokens,
		PresencePenalty: presence,
	})
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

func (a *Assistant) route(mode Mode) (Route, error) {
	r, ok := a.routes[mode]
	if !ok || r.Client == nil {
		return Route{}, fmt.Errorf("no backend configured for mode %q", mode)
	}
	return r, nil
}

func (a *Assistant) model(ctx context.Context, r Route) (string, error) {
	if r.Model != "" {
		return r.Model, nil
	}
	ids, err := r.Client.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", ErrNoModels
	}
	return ids[0], nil
}

func (a *Assistant) chat(ctx context.Context, t turn) (string, string) {
	msgs := make([]llm.Message, 0, len(t.messages)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: chatPrompt})
	for _, m := range t.messages {
		if m.Role == llm.RoleAssistant {
			m.Content = asStructuredTurn(m.Content)
		}
		msgs = append(msgs, m)
	}

	raw, err := t.complete(ctx, msgs, 0.7, 1024, 0.6)
	if err != nil {
		a.log.Error("chat completion failed", "err", err)
		return replyChatFailed, err.Error()
	}
	return ExtractStructured(raw)
}

func (a *Assistant) recommend(ctx context.Context, t turn) (string, string) {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: recommendationPrompt}}
	for _, m := range t.messages {
		if m.Role == llm.RoleUser {
			msgs = append(msgs, m)
		}
	}

	raw, err := t.complete(ctx, msgs, 0.7, 1024, 0)
	if err != nil {
		a.log.Error("recommendation completion failed", "err", err)
		return replyRecommendFailed, err.Error()
	}
	return ExtractStructured(raw)
}
