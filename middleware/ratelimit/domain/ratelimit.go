package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

type Key string

// Identity é a chave anônima de um cliente: "anon_{endereço}[_{fingerprint}]".
//
// Não é um principal autenticado, apenas um sinal best-effort anti-abuso.
type Identity string

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// Usado pelo burst guard (token bucket via golang.org/x/time/rate).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: IP, API key, usuário).
// A implementação pode manter cache, TTL, etc.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration

	// Message é o texto legível para o cliente quando bloqueado.
	Message string

	// Limit, Remaining e ResetAt só são preenchidos por decisões de quota.
	Limit     int
	Remaining int
	ResetAt   time.Time

	// Degraded indica que a decisão foi tomada sem consultar o store
	// (fail-open com o store indisponível).
	Degraded bool
}

// QuotaPolicy é a configuração global da quota: no máximo Limit requisições
// por janela fixa de duração Window.
type QuotaPolicy struct {
	Limit  int
	Window time.Duration
}

const (
	DefaultQuotaLimit  = 10
	DefaultQuotaWindow = 24 * time.Hour
)

func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{Limit: DefaultQuotaLimit, Window: DefaultQuotaWindow}
}

func (p QuotaPolicy) Validate() error {
	if p.Limit <= 0 {
		return ErrInvalidLimit
	}
	if p.Window < time.Second {
		return ErrInvalidWindow
	}
	return nil
}
