package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/ledongthuc/pdf"

	"paiwantalk/internal/app"
	"paiwantalk/internal/assistant"
	"paiwantalk/internal/httputil"
	"paiwantalk/internal/lexicon"
	"paiwantalk/internal/llm"
)

const maxGapLimit = 200

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Log.Warn("failed to release dependencies", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cached translations were grounded in the previous lexicon load.
	if err := deps.Cache.Purge(ctx); err != nil {
		deps.Log.Warn("failed to purge reply cache", "err", err)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	if err := httputil.Serve(ctx, deps.Log, addr, newRouter(deps)); err != nil {
		deps.Log.Error("server failed", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("gateway stopped")
}

func newRouter(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log)
	r.Use(httputil.CORS)
	if deps.Config.RateLimitRPS > 0 {
		r.Use(httputil.RateLimit(deps.Config.RateLimitRPS, deps.Config.RateLimitBurst))
	}

	r.Get("/", rootHandler)
	r.Get("/healthz", httputil.HealthHandler(deps.Log, "gateway"))
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", sourcesHandler(deps))
		r.Post("/translate", translateHandler(deps))
		r.Post("/translate/{source}", translateHandler(deps))
		r.Get("/models", modelsHandler(deps))
		r.Post("/chat", chatHandler(deps))
		r.Post("/glossary", glossaryHandler(deps))
		r.Get("/gaps", gapsHandler(deps))
	})
	return r
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "msg": "PaiwanTalk AI Router Running"})
}

func sourcesHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"sources":  append(deps.Lexicon.Keys(), lexicon.SelectorAll),
			"weights":  deps.Lexicon.Weights(),
			"data_dir": deps.Config.DataDir,
		})
	}
}

type translateRequest struct {
	Text string `json:"text"`
}

type translateResponse struct {
	OriginalText string `json:"original_text"`
	Translation  string `json:"translation"`
	Success      bool   `json:"success"`
	Source       string `json:"source"`
}

// selector reads the source from the path, then ?source=, defaulting to all.
func selector(r *http.Request) string {
	if s := chi.URLParam(r, "source"); s != "" {
		return s
	}
	if s := r.URL.Query().Get("source"); s != "" {
		return s
	}
	return lexicon.SelectorAll
}

func translateHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid JSON body", err, http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httputil.Fail(deps.Log, w, "輸入文字不能為空", nil, http.StatusBadRequest)
			return
		}

		m, err := deps.Assistant.Lookup(r.Context(), req.Text, selector(r), req.Text)
		if errors.Is(err, lexicon.ErrUnknownSource) {
			httputil.Fail(deps.Log, w, err.Error(), nil, http.StatusBadRequest)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "translation failed", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, translateResponse{
			OriginalText: req.Text,
			Translation:  m.Translation(),
			Success:      len(m.Glosses) > 0,
			Source:       m.Source,
		})
	}
}

func modelsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := assistant.ParseMode(r.URL.Query().Get("mode"))
		ids, err := deps.Assistant.Models(r.Context(), mode)
		if err != nil {
			httputil.Fail(deps.Log, w, "no inference backend available", err, http.StatusServiceUnavailable)
			return
		}
		data := make([]map[string]string, 0, len(ids))
		for _, id := range ids {
			data = append(data, map[string]string{"id": id, "object": "model"})
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data})
	}
}

type chatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages" validate:"required,min=1,dive"`
	ModelMode string        `json:"model_mode"`
}

func chatHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid JSON body", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		msgs := make([]llm.Message, len(req.Messages))
		for i, m := range req.Messages {
			msgs[i] = llm.Message{Role: m.Role, Content: m.Content}
		}
		reply := deps.Assistant.Chat(r.Context(), msgs, assistant.ParseMode(req.ModelMode))
		httputil.WriteJSON(w, http.StatusOK, reply)
	}
}

func glossaryHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		contentType, _, _ := strings.Cut(header.Header.Get("Content-Type"), ";")
		if contentType == "" {
			switch strings.ToLower(filepath.Ext(header.Filename)) {
			case ".txt":
				contentType = "text/plain"
			case ".pdf":
				contentType = "application/pdf"
			}
		}
		if contentType != "text/plain" && contentType != "application/pdf" {
			httputil.Fail(deps.Log, w, "unsupported file type (only PDF and TXT allowed)", nil, http.StatusBadRequest)
			return
		}

		content, err := io.ReadAll(io.LimitReader(file, maxFileSize))
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}
		text := extractText(deps.Log, header.Filename, contentType, content)

		src := selector(r)
		mappings, err := deps.Assistant.Glossary(r.Context(), text, src)
		if errors.Is(err, lexicon.ErrUnknownSource) {
			httputil.Fail(deps.Log, w, err.Error(), nil, http.StatusBadRequest)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "glossary failed", err, http.StatusInternalServerError)
			return
		}

		resolved := 0
		for _, m := range mappings {
			if len(m.Glosses) > 0 {
				resolved++
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"filename": header.Filename,
			"source":   src,
			"resolved": resolved,
			"tokens":   mappings,
		})
	}
}

func gapsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httputil.Fail(deps.Log, w, "gap store is not configured", nil, http.StatusServiceUnavailable)
			return
		}
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxGapLimit {
				httputil.Fail(deps.Log, w, fmt.Sprintf("limit must be between 1 and %d", maxGapLimit), err, http.StatusBadRequest)
				return
			}
			limit = n
		}
		gaps, err := deps.Store.TopGaps(r.Context(), limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load gaps", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"gaps": gaps})
	}
}

// extractText returns the text of an upload, with PDF support.
func extractText(log *slog.Logger, filename, contentType string, content []byte) string {
	if contentType == "application/pdf" {
		text, err := extractPDF(content)
		if err != nil {
			log.Warn("pdf extraction failed, using raw bytes", "err", err, "filename", filename)
			return string(content)
		}
		return text
	}
	return string(content)
}

func extractPDF(content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}
