package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"paiwantalk/internal/assistant"
	"paiwantalk/internal/cache"
	"paiwantalk/internal/config"
	"paiwantalk/internal/gaps"
	"paiwantalk/internal/lexicon"
	"paiwantalk/internal/llm"
	"paiwantalk/internal/logger"
	"paiwantalk/internal/metrics"
	"paiwantalk/internal/queue"
	"paiwantalk/internal/store"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	Metrics   *metrics.Metrics
	Lexicon   *lexicon.Store
	Resolver  *lexicon.Resolver
	Assistant *assistant.Assistant
	Cache     cache.Cache
	Queue     queue.Queue   // nil when QUEUE_PROVIDER=none
	Store     store.Store   // nil when STORE_PROVIDER=none
	Gaps      gaps.Reporter // no-op without a queue

	closers []func() error
}

// Close releases connections opened by Build.
func (d Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build loads env, config, the lexicon and every shared component the gateway needs.
func Build() (Deps, error) {
	d, err := base()
	if err != nil {
		return Deps{}, err
	}
	cfg, log := d.Config, d.Log

	if d.Lexicon, err = loadLexicon(cfg, log); err != nil {
		return Deps{}, fmt.Errorf("failed to load lexicon: %w", err)
	}
	d.Resolver = lexicon.NewResolver(d.Lexicon, lexicon.Options{
		Threshold:     cfg.FuzzyThreshold,
		MaxLenGap:     cfg.FuzzyMaxLenGap,
		MaxCandidates: cfg.FuzzyMaxCandidates,
	})

	d.Cache = buildCache(cfg, log)
	d.closers = append(d.closers, d.Cache.Close)

	if d.Queue, err = buildQueue(cfg, log, &d.closers); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	if d.Store, err = buildStore(cfg, log, &d.closers); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	d.Gaps = gaps.Reporter(gaps.NoopReporter{})
	if d.Queue != nil {
		d.Gaps = gaps.NewQueueReporter(d.Queue, d.Metrics)
	}

	routes, err := buildRoutes(cfg, log, d.Metrics)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	d.Assistant = assistant.New(log, d.Resolver, routes,
		assistant.WithCache(d.Cache, time.Duration(cfg.CacheTTL)*time.Second),
		assistant.WithGapReporter(d.Gaps),
		assistant.WithMetrics(d.Metrics),
	)
	return d, nil
}

// BuildWorker wires the gap worker: queue and store are both required.
func BuildWorker() (Deps, error) {
	d, err := base()
	if err != nil {
		return Deps{}, err
	}
	if d.Queue, err = buildQueue(d.Config, d.Log, &d.closers); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	if d.Queue == nil {
		return Deps{}, errors.New("QUEUE_PROVIDER=nats is required for the gap worker")
	}
	if d.Store, err = buildStore(d.Config, d.Log, &d.closers); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	if d.Store == nil {
		return Deps{}, errors.New("STORE_PROVIDER=postgres is required for the gap worker")
	}
	return d, nil
}

// BuildLexicon loads only what the lexicon CLI needs.
func BuildLexicon() (Deps, error) {
	d, err := base()
	if err != nil {
		return Deps{}, err
	}
	if d.Lexicon, err = loadLexicon(d.Config, d.Log); err != nil {
		return Deps{}, fmt.Errorf("failed to load lexicon: %w", err)
	}
	d.Resolver = lexicon.NewResolver(d.Lexicon, lexicon.Options{
		Threshold:     d.Config.FuzzyThreshold,
		MaxLenGap:     d.Config.FuzzyMaxLenGap,
		MaxCandidates: d.Config.FuzzyMaxCandidates,
	})
	return d, nil
}

func base() (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	return Deps{
		Config:  cfg,
		Log:     logger.New(cfg.LogLevel, cfg.LogFormat),
		Metrics: metrics.New(),
	}, nil
}

func loadLexicon(cfg config.Config, log *slog.Logger) (*lexicon.Store, error) {
	m, err := lexicon.LoadManifest(cfg.LexiconManifest)
	if err != nil {
		return nil, err
	}
	st, err := lexicon.Load(cfg.DataDir, m)
	if err != nil {
		return nil, err
	}
	for _, src := range st.Sources() {
		log.Info("lexicon source loaded", "source", src.Key(), "weight", src.Weight(), "entries", src.Len())
	}
	return st, nil
}

// buildRoutes maps each model mode to a resilient client. The default mode
// sweeps the vLLM servers and then OpenAI; openai_only exists only with a key.
func buildRoutes(cfg config.Config, log *slog.Logger, m *metrics.Metrics) (map[assistant.Mode]assistant.Route, error) {
	var primaries []llm.Handle
	for _, url := range cfg.VLLMBaseURLs {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		b, err := llm.NewOpenAIBackend(llm.OpenAIConfig{BaseURL: url, APIKey: cfg.VLLMAPIKey})
		if err != nil {
			return nil, fmt.Errorf("vllm backend %s: %w", url, err)
		}
		primaries = append(primaries, llm.Handle{
			Name:         fmt.Sprintf("vllm-%d", len(primaries)+1),
			DefaultModel: cfg.VLLMModel,
			Backend:      b,
		})
	}

	var secondary *llm.Handle
	if cfg.OpenAIKey != "" {
		b, err := llm.NewOpenAIBackend(llm.OpenAIConfig{BaseURL: cfg.OpenAIBaseURL, APIKey: cfg.OpenAIKey})
		if err != nil {
			return nil, fmt.Errorf("openai backend: %w", err)
		}
		secondary = &llm.Handle{Name: "openai", DefaultModel: cfg.FallbackModel, Backend: b}
	} else {
		log.Warn("OPENAI_API_KEY not set; no secondary backend")
	}
	if len(primaries) == 0 && secondary == nil {
		return nil, errors.New("no inference backend configured (set VLLM_BASE_URLS or OPENAI_API_KEY)")
	}

	opts := []llm.ClientOption{
		llm.WithTimeout(cfg.LLMTimeout),
		llm.WithGarbageSignature(cfg.GarbageMarker, cfg.GarbageRun),
		llm.WithObserver(func(op, backend string, outcome llm.Outcome, elapsed time.Duration) {
			m.ObserveAttempt(op, backend, outcome.String(), elapsed)
		}),
	}

	routes := map[assistant.Mode]assistant.Route{
		assistant.ModeDefault: {Client: llm.NewResilientClient(log, primaries, secondary, opts...), Model: cfg.VLLMModel},
	}
	if len(primaries) > 0 {
		routes[assistant.ModeVLLMOnly] = assistant.Route{
			Client: llm.NewResilientClient(log, primaries, nil, opts...),
			Model:  cfg.VLLMModel,
		}
	}
	if secondary != nil {
		routes[assistant.ModeOpenAIOnly] = assistant.Route{
			Client: llm.NewResilientClient(log, nil, secondary, opts...),
			Model:  cfg.FallbackModel,
		}
	}
	log.Info("inference backends configured", "primaries", len(primaries), "secondary", secondary != nil)
	return routes, nil
}

func buildCache(cfg config.Config, log *slog.Logger) cache.Cache {
	switch cfg.CacheProvider {
	case "redis":
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn("failed to connect to Redis, falling back to no-op cache", "err", err)
			return cache.NewNoOpCache()
		}
		log.Info("using Redis cache", "addr", cfg.RedisAddr)
		return c
	case "noop", "":
		return cache.NewNoOpCache()
	default:
		log.Warn("unknown CACHE_PROVIDER, using no-op cache", "provider", cfg.CacheProvider)
		return cache.NewNoOpCache()
	}
}

func buildQueue(cfg config.Config, log *slog.Logger, closers *[]func() error) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL, nats.Name("paiwantalk"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		*closers = append(*closers, func() error { nc.Close(); return nil })
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: none, nats)", cfg.QueueProvider)
	}
}

func buildStore(cfg config.Config, log *slog.Logger, closers *[]func() error) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		*closers = append(*closers, db.Close)
		log.Info("using Postgres store")
		return db, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: none, postgres)", cfg.StoreProvider)
	}
}
