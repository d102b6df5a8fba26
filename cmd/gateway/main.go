package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"chat-gateway/chat"
	"chat-gateway/middleware/ratelimit"
	"chat-gateway/middleware/ratelimit/application"
	"chat-gateway/middleware/ratelimit/domain"
	"chat-gateway/middleware/ratelimit/infra"
)

func main() {
	if err := loadDotEnv(); err != nil {
		slog.Error("dotenv error", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := readConfig()
	if err != nil {
		slog.Error("config error", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gateway stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	var rdb *redis.Client
	if cfg.needsRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	var (
		quotaStore domain.QuotaStore
		health     func(context.Context) error
	)
	switch cfg.QuotaStore {
	case quotaStoreMemory:
		mem := infra.NewMemoryQuotaStore()
		mem.StartJanitor(ctx)
		quotaStore = mem
		logger.Warn("in-memory quota store: counters are per instance and lost on restart")
	default:
		rq := infra.NewRedisQuotaStore(rdb)
		quotaStore = rq
		health = rq.Ping
	}

	completer, err := chat.NewOpenAICompleter(cfg.LLMAPIKey,
		chat.WithBaseURL(cfg.LLMBaseURL),
		chat.WithModel(cfg.LLMModel),
		chat.WithSystemPrompt(cfg.LLMSystemPrompt),
		chat.WithTemperature(cfg.LLMTemperature),
		chat.WithMaxTokens(cfg.LLMMaxTokens),
	)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var stats infra.MultiStats
	if cfg.MetricsEnabled {
		ps, err := infra.NewPrometheusStatsStore(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		stats = append(stats, ps)
	}
	if cfg.RateStatsEnabled {
		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.RateStatsPrefix),
			infra.WithStatsTTL(cfg.RateStatsTTL),
			infra.WithStatsBucket(cfg.RateStatsBucket),
			infra.WithStatsTrackKeys(cfg.RateStatsTrackKeys),
		))
	}
	var statsStore domain.StatsStore
	if len(stats) > 0 {
		statsStore = stats
	}

	handler := &chat.Handler{
		Quota: application.QuotaService{
			Store:  quotaStore,
			Policy: domain.QuotaPolicy{Limit: cfg.QuotaLimit, Window: cfg.quotaWindow()},
			Logger: logger,
		},
		Completer:     completer,
		AddressHeader: cfg.ClientIPHeader,
		FailOpen:      cfg.QuotaFailOpen,
		Timeout:       cfg.LLMTimeout,
		Stats:         statsStore,
		Logger:        logger,
	}

	// ordem no /chat: burst guard -> concorrência -> handler
	var chatMiddlewares []func(http.Handler) http.Handler
	if cfg.RateEnabled {
		burst := infra.NewStore(cfg.RateRPS, cfg.RateBurst)
		burst.StartJanitor(ctx)
		chatMiddlewares = append(chatMiddlewares, ratelimit.Middleware(ratelimit.Options{
			Store:               burst,
			Stats:               statsStore,
			KeyHeader:           cfg.ClientIPHeader,
			TrustXForwardedFor:  cfg.TrustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.RetryAfter,
			AddRateLimitHeaders: cfg.AddHeaders,
		}))
	}
	if cfg.ConcurrencyMax > 0 {
		pool := infra.NewChanPool(cfg.ConcurrencyMax)
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "chat_gateway",
			Name:      "inflight_requests",
			Help:      "Requests currently holding a /chat concurrency slot.",
		}, func() float64 { return float64(pool.InUse()) }))
		chatMiddlewares = append(chatMiddlewares, ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Max:            cfg.ConcurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.ConcurrencyTimeout,
			Pool:           pool,
		}))
	}

	var metrics http.Handler
	if cfg.MetricsEnabled {
		metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: chat.NewRouter(chat.RouterConfig{
			Chat:            handler,
			ChatMiddlewares: chatMiddlewares,
			AllowedOrigins:  cfg.AllowedOrigins,
			Health:          health,
			Metrics:         metrics,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		slog.String("addr", cfg.ListenAddr),
		slog.String("llm_base_url", cfg.LLMBaseURL),
		slog.String("llm_model", completer.Model()))
	logger.Info("quota",
		slog.Int("limit", cfg.QuotaLimit),
		slog.Duration("window", cfg.quotaWindow()),
		slog.String("store", cfg.QuotaStore),
		slog.Bool("fail_open", cfg.QuotaFailOpen),
		slog.String("client_ip_header", cfg.ClientIPHeader))
	logger.Info("burst",
		slog.Bool("enabled", cfg.RateEnabled),
		slog.Float64("rps", cfg.RateRPS),
		slog.Int("burst", cfg.RateBurst),
		slog.Bool("trust_xff", cfg.TrustXFF))
	logger.Info("concurrency",
		slog.Int("max", cfg.ConcurrencyMax),
		slog.Duration("acquire_timeout", cfg.ConcurrencyTimeout))
	logger.Info("stats",
		slog.Bool("redis", cfg.RateStatsEnabled),
		slog.Bool("metrics", cfg.MetricsEnabled),
		slog.String("bucket", cfg.RateStatsBucket))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
