package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the gateway, the gap worker and the CLI.
type Config struct {
	// Server
	Port           int     `env:"PORT" envDefault:"8080"`
	LogLevel       string  `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string  `env:"LOG_FORMAT" envDefault:"json"`          // "json" or "text"
	MaxUploadSize  int64   `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"0"`         // 0 disables limiting
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// Lexicon
	DataDir            string `env:"DATA_DIR" envDefault:"data"`
	LexiconManifest    string `env:"LEXICON_MANIFEST"` // empty uses the built-in three sources
	FuzzyThreshold     int    `env:"FUZZY_THRESHOLD" envDefault:"85"`
	FuzzyMaxLenGap     int    `env:"FUZZY_MAX_LEN_GAP" envDefault:"3"`
	FuzzyMaxCandidates int    `env:"FUZZY_MAX_CANDIDATES" envDefault:"8"`

	// Inference
	VLLMBaseURLs  []string      `env:"VLLM_BASE_URLS" envSeparator:"," envDefault:"http://localhost:8000/v1/"`
	VLLMAPIKey    string        `env:"VLLM_API_KEY" envDefault:"dummy-key"`
	VLLMModel     string        `env:"VLLM_MODEL"` // pins the model instead of asking the server
	OpenAIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	FallbackModel string        `env:"FALLBACK_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`
	GarbageMarker string        `env:"GARBAGE_MARKER" envDefault:"!"`
	GarbageRun    int           `env:"GARBAGE_RUN" envDefault:"10"`

	// Cache
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"noop"` // "noop" or "redis"
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" envDefault:"3600"` // seconds

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"none"` // "none" or "nats"
	QueueURL      string `env:"QUEUE_URL"`

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"none"` // "none" or "postgres"
	DBURL         string `env:"DB_URL"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
