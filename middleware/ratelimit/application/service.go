package application

import (
	"time"

	"chat-gateway/middleware/ratelimit/domain"
)

// BurstMessage é o texto devolvido quando o burst guard bloqueia.
const BurstMessage = "Too many requests. Please slow down and try again shortly."

// Service concentra a regra do burst guard (token bucket por endereço).
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Roda antes da quota: uma rajada bloqueada aqui não consome prompts.
type Service struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}
	if lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: s.RetryAfter, Message: BurstMessage}
}
