package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"chat-gateway/middleware/ratelimit"
)

// LivenessText é a resposta do GET /.
const LivenessText = "Chat gateway is active!"

// RouterConfig agrupa o que o roteador monta.
type RouterConfig struct {
	Chat http.Handler

	// ChatMiddlewares envolvem só o POST /chat (burst guard, concorrência).
	ChatMiddlewares []func(http.Handler) http.Handler

	// AllowedOrigins vazio desliga o CORS.
	AllowedOrigins []string

	// Health é chamado pelo GET /healthz (ex: ping no quota store).
	Health func(ctx context.Context) error

	// Metrics, se não nil, é servido em GET /metrics.
	Metrics http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", RequestIDHeader},
			ExposedHeaders: []string{
				"Retry-After",
				"X-RateLimit-Limit",
				"X-RateLimit-Remaining",
				"X-RateLimit-Reset",
				RequestIDHeader,
			},
			MaxAge: 300,
		}))
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(LivenessText))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health(ctx); err != nil {
				ratelimit.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		ratelimit.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	if cfg.Chat != nil {
		r.With(cfg.ChatMiddlewares...).Post("/chat", cfg.Chat.ServeHTTP)
	}

	return r
}
