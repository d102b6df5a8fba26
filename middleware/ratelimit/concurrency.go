package ratelimit

import (
	"net/http"
	"time"

	"chat-gateway/middleware/ratelimit/application"
	"chat-gateway/middleware/ratelimit/domain"
	"chat-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// Pool permite compartilhar o semáforo (ex: para expor InUse como métrica).
	// Se nil, cria um ChanPool com capacidade Max.
	Pool domain.SlotPool
}

// ConcurrencyMiddleware limita requisições simultâneas; sem vaga responde 503 em JSON.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 && opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Pool == nil {
		opts.Pool = infra.NewChanPool(opts.Max)
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				WriteJSON(w, opts.RejectStatus, ErrorBody{Error: "Server is busy. Please try again shortly."})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
