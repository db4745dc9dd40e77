package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedChat struct {
	Model           string    `json:"model"`
	Messages        []Message `json:"messages"`
	Temperature     float64   `json:"temperature"`
	MaxTokens       int       `json:"max_tokens"`
	PresencePenalty float64   `json:"presence_penalty"`
}

func fakeOpenAI(t *testing.T, chatStatus int, reply string) (*httptest.Server, *capturedChat) {
	t.Helper()
	captured := &capturedChat{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"id":"taide-8b","object":"model","created":0,"owned_by":"vllm"},
			{"id":"llama-3","object":"model","created":0,"owned_by":"vllm"}
		]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if chatStatus != http.StatusOK {
			w.WriteHeader(chatStatus)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   captured.Model,
			"choices": []any{},
		}
		if reply != "" {
			resp["choices"] = []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestOpenAIBackend(t *testing.T, srv *httptest.Server) *OpenAIBackend {
	t.Helper()
	b, err := NewOpenAIBackend(OpenAIConfig{
		BaseURL:    srv.URL + "/v1/",
		APIKey:     "EMPTY",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return b
}

func TestNewOpenAIBackendRequiresKey(t *testing.T) {
	_, err := NewOpenAIBackend(OpenAIConfig{BaseURL: "http://localhost:8000/v1/"})
	assert.Error(t, err)
}

func TestOpenAIBackendListModels(t *testing.T) {
	srv, _ := fakeOpenAI(t, http.StatusOK, "")
	b := newTestOpenAIBackend(t, srv)

	ids, err := b.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"taide-8b", "llama-3"}, ids)
}

func TestOpenAIBackendCreateCompletion(t *testing.T) {
	srv, captured := fakeOpenAI(t, http.StatusOK, `{"reply":"你好"}`)
	b := newTestOpenAIBackend(t, srv)

	out, err := b.CreateCompletion(context.Background(), CompletionRequest{
		Model: "taide-8b",
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "masalu"},
			{Role: RoleAssistant, Content: "ok"},
		},
		Temperature:     0.7,
		MaxTokens:       1024,
		PresencePenalty: 0.6,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"reply":"你好"}`, out.Content)
	assert.Equal(t, "taide-8b", out.Model)

	assert.Equal(t, "taide-8b", captured.Model)
	assert.Equal(t, 0.7, captured.Temperature)
	assert.Equal(t, 1024, captured.MaxTokens)
	assert.Equal(t, 0.6, captured.PresencePenalty)
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "masalu"},
		{Role: RoleAssistant, Content: "ok"},
	}, captured.Messages)
}

func TestOpenAIBackendEmptyChoices(t *testing.T) {
	srv, _ := fakeOpenAI(t, http.StatusOK, "")
	b := newTestOpenAIBackend(t, srv)

	_, err := b.CreateCompletion(context.Background(), CompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIBackendServerErrorIsNotRetried(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"busy"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	b := newTestOpenAIBackend(t, srv)
	_, err := b.CreateCompletion(context.Background(), CompletionRequest{Model: "m"})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestResilientClientOverHTTP(t *testing.T) {
	down, _ := fakeOpenAI(t, http.StatusInternalServerError, "")
	up, captured := fakeOpenAI(t, http.StatusOK, "fallback reply")

	c := NewResilientClient(discardLogger(),
		[]Handle{{Name: "vllm-1", Backend: newTestOpenAIBackend(t, down)}},
		&Handle{Name: "openai", DefaultModel: "gpt-4o-mini", Backend: newTestOpenAIBackend(t, up)})

	out, err := c.CreateCompletion(context.Background(), CompletionRequest{
		Model:    "taide-8b",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "fallback reply", out.Content)
	assert.Equal(t, "openai", out.Backend)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
}
