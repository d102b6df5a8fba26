package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-gateway/chat"
	"chat-gateway/middleware/ratelimit"
	"chat-gateway/middleware/ratelimit/application"
	"chat-gateway/middleware/ratelimit/domain"
	"chat-gateway/middleware/ratelimit/infra"
)

func main() {
	// Exemplo: gateway completo em um processo, sem Redis e sem chave de API.
	// Quota em memória, LLM "eco" e limites baixos para testar na mão:
	//
	//	for i in $(seq 1 4); do curl -s -XPOST localhost:8081/chat -d '{"message":"oi"}'; echo; done
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	quotaStore := infra.NewMemoryQuotaStore()
	quotaStore.StartJanitor(ctx)

	burst := infra.NewStore(5, 10)
	burst.StartJanitor(ctx)

	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	handler := &chat.Handler{
		Quota: application.QuotaService{
			Store:  quotaStore,
			Policy: domain.QuotaPolicy{Limit: 3, Window: 10 * time.Minute},
			Logger: logger,
		},
		Completer: chat.EchoCompleter{},
		FailOpen:  true,
		Stats:     stats,
		Logger:    logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/", chat.NewRouter(chat.RouterConfig{
		Chat: handler,
		ChatMiddlewares: []func(http.Handler) http.Handler{
			ratelimit.Middleware(ratelimit.Options{
				Store:               burst,
				Stats:               stats,
				TrustXForwardedFor:  true,
				AddRateLimitHeaders: true,
			}),
			ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50}),
		},
		AllowedOrigins: []string{"http://localhost:5173"},
	}))
	// contadores locais para inspecionar as decisões
	mux.HandleFunc("GET /debug/stats", func(w http.ResponseWriter, _ *http.Request) {
		ratelimit.WriteJSON(w, http.StatusOK, map[string]any{
			"burst":                stats.Kind(domain.StatsKindBurst),
			"quota":                stats.Kind(domain.StatsKindQuota),
			"routes":               stats.ByRoute(),
			"keys":                 stats.ByKey(),
			"quota_keys_in_memory": quotaStore.Len(),
			"burst_keys_in_memory": burst.Len(),
		})
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}
