package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chat-gateway/middleware/ratelimit/domain"
)

// QuotaKeyPrefix separa as chaves de quota de outros namespaces no mesmo store.
const QuotaKeyPrefix = "rate_limit:"

// QuotaService implementa o contador de janela fixa por Identity.
//
// O read-modify-write não é atômico: duas requisições simultâneas da mesma
// identidade podem ler o mesmo estado e gravar o mesmo incremento. A contagem
// é "aproximadamente N", nunca mais restritiva que N. O store não oferece
// incremento atômico nem escrita condicional.
type QuotaService struct {
	Store  domain.QuotaStore
	Policy domain.QuotaPolicy

	// Now permite simular o relógio nos testes. Padrão: time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

func QuotaKey(id domain.Identity) string {
	return QuotaKeyPrefix + string(id)
}

// CheckAndIncrement decide se a identidade ainda tem quota e, se sim,
// consome uma unidade. A escrita no store é aguardada antes de retornar.
//
// Falhas de transporte retornam um erro que satisfaz
// errors.Is(err, domain.ErrStoreUnavailable); a política fail-open/fail-closed
// é do chamador.
func (s QuotaService) CheckAndIncrement(ctx context.Context, id domain.Identity) (domain.Decision, error) {
	if s.Store == nil {
		return domain.Decision{Allowed: true}, nil
	}
	policy := s.Policy
	if policy.Limit <= 0 || policy.Window <= 0 {
		policy = domain.DefaultQuotaPolicy()
	}
	now := s.now()
	key := QuotaKey(id)

	raw, ok, err := s.Store.Get(ctx, key)
	if err != nil {
		return domain.Decision{}, wrapUnavailable("get", err)
	}

	rec, found := s.parse(key, raw, ok, now, policy.Window)
	if !found || now.Sub(rec.WindowStart) > policy.Window {
		fresh := domain.UsageRecord{Count: 1, WindowStart: now}
		if err := s.put(ctx, key, fresh, policy.Window, policy.Window); err != nil {
			return domain.Decision{}, err
		}
		return domain.Decision{
			Allowed:   true,
			Limit:     policy.Limit,
			Remaining: policy.Limit - 1,
			ResetAt:   now.Add(policy.Window),
		}, nil
	}

	resetAt := rec.WindowStart.Add(policy.Window)
	remaining := resetAt.Sub(now)

	if rec.Count >= int64(policy.Limit) {
		return domain.Decision{
			Allowed:    false,
			RetryAfter: remaining,
			Message:    ExceededMessage(policy, remaining),
			Limit:      policy.Limit,
			Remaining:  0,
			ResetAt:    resetAt,
		}, nil
	}

	rec.Count++
	if err := s.put(ctx, key, rec, remaining, policy.Window); err != nil {
		return domain.Decision{}, err
	}
	return domain.Decision{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - int(rec.Count),
		ResetAt:   resetAt,
	}, nil
}

// parse trata registro corrompido como ausente; custa ao cliente um reset, nunca um bloqueio.
func (s QuotaService) parse(key string, raw []byte, ok bool, now time.Time, window time.Duration) (domain.UsageRecord, bool) {
	if !ok {
		return domain.UsageRecord{}, false
	}
	rec, err := domain.DecodeUsage(raw)
	if err != nil {
		s.logger().Warn("quota record discarded", slog.String("key", key), slog.Any("error", err))
		return domain.UsageRecord{}, false
	}
	// relógio adiantado em quem gravou: uma janela que começa depois de now+window
	// nunca expiraria pelo teste acima.
	if rec.WindowStart.After(now.Add(window)) {
		s.logger().Warn("quota record from the future discarded",
			slog.String("key", key), slog.Time("window_start", rec.WindowStart))
		return domain.UsageRecord{}, false
	}
	return rec, true
}

func (s QuotaService) put(ctx context.Context, key string, rec domain.UsageRecord, ttl, maxTTL time.Duration) error {
	raw, err := domain.EncodeUsage(rec)
	if err != nil {
		return fmt.Errorf("encode usage: %w", err)
	}
	if err := s.Store.Put(ctx, key, raw, TTLSeconds(ttl, maxTTL)); err != nil {
		return wrapUnavailable("put", err)
	}
	return nil
}

// TTLSeconds arredonda para cima em segundos e limita a [1s, ceiling].
func TTLSeconds(d, ceiling time.Duration) time.Duration {
	secs := (d + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	ttl := secs * time.Second
	if ceiling >= time.Second && ttl > ceiling {
		ttl = ceiling.Truncate(time.Second)
	}
	return ttl
}

func wrapUnavailable(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("quota %s: %w", op, err)
	}
	return fmt.Errorf("quota %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func (s QuotaService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s QuotaService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
