package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`

	LLMAPIKey       string        `env:"LLM_API_KEY"`
	LLMBaseURL      string        `env:"LLM_BASE_URL" envDefault:"https://api.groq.com/openai/v1/"`
	LLMModel        string        `env:"LLM_MODEL" envDefault:"llama-3.1-8b-instant"`
	LLMSystemPrompt string        `env:"LLM_SYSTEM_PROMPT"`
	LLMTemperature  float64       `env:"LLM_TEMPERATURE" envDefault:"0.5"`
	LLMMaxTokens    int64         `env:"LLM_MAX_TOKENS" envDefault:"150"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`

	QuotaLimit       int     `env:"QUOTA_LIMIT" envDefault:"10"`
	QuotaWindowHours float64 `env:"QUOTA_WINDOW_HOURS" envDefault:"24"`
	QuotaFailOpen    bool    `env:"QUOTA_FAIL_OPEN" envDefault:"true"`
	QuotaStore       string  `env:"QUOTA_STORE" envDefault:"redis"`
	RedisURL         string  `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	ClientIPHeader string   `env:"CLIENT_IP_HEADER" envDefault:"CF-Connecting-IP"`
	AllowedOrigins []string `env:"ALLOWED_ORIGIN" envSeparator:","`

	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo, um burst alto dá a impressão de que o guard não funciona.
	RateEnabled bool          `env:"RATE_ENABLED" envDefault:"true"`
	RateRPS     float64       `env:"RATE_RPS" envDefault:"1"`
	RateBurst   int           `env:"RATE_BURST" envDefault:"5"`
	TrustXFF    bool          `env:"TRUST_XFF" envDefault:"false"`
	RetryAfter  time.Duration `env:"RETRY_AFTER" envDefault:"1s"`
	AddHeaders  bool          `env:"ADD_RATELIMIT_HEADERS" envDefault:"false"`

	ConcurrencyMax     int           `env:"CONCURRENCY_MAX" envDefault:"100"`
	ConcurrencyTimeout time.Duration `env:"CONCURRENCY_TIMEOUT" envDefault:"0s"`

	RateStatsEnabled   bool          `env:"RATE_STATS_ENABLED" envDefault:"false"`
	RateStatsPrefix    string        `env:"RATE_STATS_PREFIX" envDefault:"chat:stats"`
	RateStatsTTL       time.Duration `env:"RATE_STATS_TTL" envDefault:"24h"`
	RateStatsBucket    string        `env:"RATE_STATS_BUCKET" envDefault:"minute"`
	RateStatsTrackKeys bool          `env:"RATE_STATS_TRACK_KEYS" envDefault:"false"`
	MetricsEnabled     bool          `env:"METRICS_ENABLED" envDefault:"true"`
}

const (
	quotaStoreRedis  = "redis"
	quotaStoreMemory = "memory"
)

// loadDotEnv carrega .env se existir; variáveis já definidas no ambiente vencem.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func readConfig() (config, error) {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		return config{}, err
	}
	cfg.QuotaStore = strings.ToLower(strings.TrimSpace(cfg.QuotaStore))
	cfg.AllowedOrigins = trimAll(cfg.AllowedOrigins)
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	if strings.TrimSpace(c.LLMAPIKey) == "" {
		return errors.New("LLM_API_KEY is required")
	}
	if c.QuotaLimit <= 0 {
		return errors.New("QUOTA_LIMIT must be > 0")
	}
	if c.quotaWindow() < time.Second {
		return errors.New("QUOTA_WINDOW_HOURS must be at least one second")
	}
	switch c.QuotaStore {
	case quotaStoreRedis, quotaStoreMemory:
	default:
		return fmt.Errorf("QUOTA_STORE must be %q or %q, got %q", quotaStoreRedis, quotaStoreMemory, c.QuotaStore)
	}
	if c.needsRedis() && strings.TrimSpace(c.RedisURL) == "" {
		return errors.New("REDIS_URL is required when QUOTA_STORE=redis or RATE_STATS_ENABLED=true")
	}
	if c.LLMTimeout <= 0 {
		return errors.New("LLM_TIMEOUT must be > 0")
	}
	if c.RateEnabled {
		if c.RateRPS <= 0 {
			return errors.New("RATE_RPS must be > 0")
		}
		if c.RateBurst <= 0 {
			return errors.New("RATE_BURST must be > 0")
		}
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c config) quotaWindow() time.Duration {
	return time.Duration(c.QuotaWindowHours * float64(time.Hour))
}

func (c config) needsRedis() bool {
	return c.QuotaStore == quotaStoreRedis || c.RateStatsEnabled
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func newLogger(cfg config) *slog.Logger {
	lvl, _ := parseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
