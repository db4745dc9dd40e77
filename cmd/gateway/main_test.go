package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"paiwantalk/internal/app"
	"paiwantalk/internal/assistant"
	"paiwantalk/internal/config"
	"paiwantalk/internal/lexicon"
	"paiwantalk/internal/llm"
	"paiwantalk/internal/metrics"
	"paiwantalk/internal/store"
)

func newTestDeps(t *testing.T, backend llm.Backend, st store.Store) app.Deps {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	lex, err := lexicon.NewStore(
		lexicon.NewSource("jiaocai", 1.0, []lexicon.Record{
			{Surface: "vavayan", Gloss: lexicon.Gloss{"女人"}},
			{Surface: "masalu", Gloss: lexicon.Gloss{"謝謝"}},
		}),
		lexicon.NewSource("qianzi", 0.9, []lexicon.Record{
			{Surface: "vavayan", Gloss: lexicon.Gloss{"女性"}},
		}),
	)
	require.NoError(t, err)
	resolver := lexicon.NewResolver(lex, lexicon.DefaultOptions())
	m := metrics.New()

	routes := map[assistant.Mode]assistant.Route{
		assistant.ModeDefault:    {Client: backend},
		assistant.ModeOpenAIOnly: {Client: backend, Model: "gpt-4o-mini"},
	}
	return app.Deps{
		Config: config.Config{
			DataDir:       "data",
			MaxUploadSize: 1024 * 1024, // 1MB for tests
		},
		Log:       log,
		Metrics:   m,
		Lexicon:   lex,
		Resolver:  resolver,
		Assistant: assistant.New(log, resolver, routes, assistant.WithMetrics(m)),
		Store:     st,
	}
}

func serve(deps app.Deps, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	newRouter(deps).ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	deps := newTestDeps(t, new(llm.MockBackend), nil)

	w := serve(deps, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(deps, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gateway", decode(t, w)["service"])

	w = serve(deps, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSourcesHandler(t *testing.T) {
	deps := newTestDeps(t, new(llm.MockBackend), nil)

	w := serve(deps, httptest.NewRequest(http.MethodGet, "/api/sources", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{"jiaocai", "qianzi", "all"}, body["sources"])
	assert.Equal(t, map[string]any{"jiaocai": 1.0, "qianzi": 0.9}, body["weights"])
	assert.Equal(t, "data", body["data_dir"])
}

func TestTranslateHandler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		want       translateResponse
	}{
		{
			name:       "all sources merge exact hits",
			path:       "/api/translate",
			body:       `{"text":"vavayan"}`,
			wantStatus: http.StatusOK,
			want:       translateResponse{OriginalText: "vavayan", Translation: "女人, 女性", Success: true, Source: lexicon.LabelAllExact},
		},
		{
			name:       "source from query",
			path:       "/api/translate?source=qianzi",
			body:       `{"text":"vavayan"}`,
			wantStatus: http.StatusOK,
			want:       translateResponse{OriginalText: "vavayan", Translation: "女性", Success: true, Source: "qianzi"},
		},
		{
			name:       "source from path",
			path:       "/api/translate/jiaocai",
			body:       `{"text":"Masalu"}`,
			wantStatus: http.StatusOK,
			want:       translateResponse{OriginalText: "Masalu", Translation: "謝謝", Success: true, Source: "jiaocai"},
		},
		{
			name:       "miss echoes the input",
			path:       "/api/translate",
			body:       `{"text":"zzzq"}`,
			wantStatus: http.StatusOK,
			want:       translateResponse{OriginalText: "zzzq", Translation: "zzzq", Success: false, Source: lexicon.LabelAll},
		},
		{name: "blank text", path: "/api/translate", body: `{"text":"   "}`, wantStatus: http.StatusBadRequest},
		{name: "unknown source", path: "/api/translate/bihua", body: `{"text":"vavayan"}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", path: "/api/translate", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(t, new(llm.MockBackend), nil)
			w := serve(deps, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got translateResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModelsHandler(t *testing.T) {
	b := new(llm.MockBackend)
	b.On("ListModels", mock.Anything).Return([]string{"taide-8b"}, nil).Once()
	deps := newTestDeps(t, b, nil)

	w := serve(deps, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{map[string]any{"id": "taide-8b", "object": "model"}}, body["data"])

	b.On("ListModels", mock.Anything).Return(nil, llm.ErrNoBackendAvailable).Once()
	w = serve(deps, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(deps, httptest.NewRequest(http.MethodGet, "/api/models?mode=vllm_only", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	b.AssertExpectations(t)
}

func TestChatHandler(t *testing.T) {
	t.Run("answers through the assistant", func(t *testing.T) {
		b := new(llm.MockBackend)
		b.On("CreateCompletion", mock.Anything, mock.MatchedBy(func(req llm.CompletionRequest) bool {
			return req.MaxTokens == 50 && req.Model == "gpt-4o-mini"
		})).Return(llm.Completion{Content: `{"intent":"chat"}`}, nil).Once()
		b.On("CreateCompletion", mock.Anything, mock.MatchedBy(func(req llm.CompletionRequest) bool {
			return req.MaxTokens == 1024
		})).Return(llm.Completion{Content: `{"reply":"你好","thinking":"greeting"}`}, nil).Once()
		deps := newTestDeps(t, b, nil)

		body := `{"messages":[{"role":"user","content":"hi"}],"model_mode":"OPENAI_ONLY"}`
		w := serve(deps, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var got assistant.Reply
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, assistant.Reply{Reply: "你好", Model: "gpt-4o-mini", Thinking: "greeting", Intent: assistant.IntentChat}, got)
		b.AssertExpectations(t)
	})

	t.Run("model list failure is still a 200", func(t *testing.T) {
		b := new(llm.MockBackend)
		b.On("ListModels", mock.Anything).Return(nil, errors.New("connection refused")).Once()
		deps := newTestDeps(t, b, nil)

		body := `{"messages":[{"role":"user","content":"hi"}]}`
		w := serve(deps, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, w.Code)
		out := decode(t, w)
		assert.Equal(t, "無法取得模型列表", out["reply"])
		assert.Equal(t, "unknown", out["model"])
		assert.Equal(t, "connection refused", out["thinking"])
	})

	validation := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "missing messages", body: `{}`, wantField: "messages"},
		{name: "empty messages", body: `{"messages":[]}`, wantField: "messages"},
		{name: "bad role", body: `{"messages":[{"role":"tool","content":"x"}]}`, wantField: "messages[0].role"},
	}
	for _, tt := range validation {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(t, new(llm.MockBackend), nil)
			w := serve(deps, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body)))
			require.Equal(t, http.StatusBadRequest, w.Code)
			fields, ok := decode(t, w)["fields"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestGlossaryHandler(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		filename    string
		contentType string
		content     []byte
		wantStatus  int
		check       func(*testing.T, map[string]any)
	}{
		{
			name:        "text upload",
			path:        "/api/glossary",
			filename:    "lesson.txt",
			contentType: "text/plain; charset=utf-8",
			content:     []byte("vavayan, masalu! zzzq vavayan"),
			wantStatus:  http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "all", body["source"])
				assert.Equal(t, float64(2), body["resolved"])
				tokens := body["tokens"].([]any)
				require.Len(t, tokens, 3)
				first := tokens[0].(map[string]any)
				assert.Equal(t, "vavayan", first["token"])
				assert.Equal(t, []any{"女人", "女性"}, first["glosses"])
			},
		},
		{
			name:       "content type from extension",
			path:       "/api/glossary?source=qianzi",
			filename:   "lesson.txt",
			content:    []byte("vavayan"),
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "qianzi", body["source"])
				assert.Equal(t, float64(1), body["resolved"])
			},
		},
		{name: "unknown source", path: "/api/glossary?source=nope", filename: "a.txt", content: []byte("vavayan"), wantStatus: http.StatusBadRequest},
		{name: "unsupported extension", path: "/api/glossary", filename: "a.docx", content: []byte("x"), wantStatus: http.StatusBadRequest},
		{name: "unsupported content type", path: "/api/glossary", filename: "a.doc", contentType: "application/msword", content: []byte("x"), wantStatus: http.StatusBadRequest},
		{name: "file too large", path: "/api/glossary", filename: "big.txt", contentType: "text/plain", content: make([]byte, 2*1024*1024), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(t, new(llm.MockBackend), nil)
			req, err := createMultipartRequest(tt.path, tt.filename, tt.contentType, tt.content)
			require.NoError(t, err)

			w := serve(deps, req)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, decode(t, w))
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		deps := newTestDeps(t, new(llm.MockBackend), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/glossary", nil)
		req.Header.Set("Content-Type", "multipart/form-data")
		w := serve(deps, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGapsHandler(t *testing.T) {
	seen := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		query      string
		noStore    bool
		setup      func(*store.MockStore)
		wantStatus int
	}{
		{name: "store disabled", noStore: true, wantStatus: http.StatusServiceUnavailable},
		{
			name:  "default limit",
			query: "",
			setup: func(s *store.MockStore) {
				s.On("TopGaps", mock.Anything, 20).Return([]store.Gap{{Token: "zzzq", Normalized: "zzzq", Hits: 3, FirstSeen: seen, LastSeen: seen}}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "explicit limit",
			query: "?limit=5",
			setup: func(s *store.MockStore) {
				s.On("TopGaps", mock.Anything, 5).Return([]store.Gap{}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{name: "invalid limit", query: "?limit=abc", wantStatus: http.StatusBadRequest},
		{name: "limit too large", query: "?limit=1000", wantStatus: http.StatusBadRequest},
		{
			name: "store error",
			setup: func(s *store.MockStore) {
				s.On("TopGaps", mock.Anything, 20).Return(nil, errors.New("db down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(store.MockStore)
			if tt.setup != nil {
				tt.setup(mockStore)
			}
			var st store.Store = mockStore
			if tt.noStore {
				st = nil
			}
			deps := newTestDeps(t, new(llm.MockBackend), st)

			w := serve(deps, httptest.NewRequest(http.MethodGet, "/api/gaps"+tt.query, nil))
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			mockStore.AssertExpectations(t)
		})
	}
}

func TestRateLimit(t *testing.T) {
	deps := newTestDeps(t, new(llm.MockBackend), nil)
	deps.Config.RateLimitRPS = 0.01
	deps.Config.RateLimitBurst = 1
	h := newRouter(deps)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sources", nil))
		assert.Equal(t, want, w.Code, "request %d", i)
	}
}

func createMultipartRequest(path, filename, contentType string, content []byte) (*http.Request, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
	if contentType != "" {
		h["Content-Type"] = []string{contentType}
	}

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}
