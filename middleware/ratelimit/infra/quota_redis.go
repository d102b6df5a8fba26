package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisQuotaStore implementa domain.QuotaStore com GET e SET EX.
//
// Não usa WATCH/MULTI nem scripts: o contrato do adapter é apenas get/put com
// expiração, o mesmo de um KV eventualmente consistente.
type RedisQuotaStore struct {
	rdb redis.UniversalClient

	// timeout limita cada comando; 0 usa só o ctx do chamador.
	timeout time.Duration
}

type RedisQuotaOption func(*RedisQuotaStore)

func WithQuotaCommandTimeout(d time.Duration) RedisQuotaOption {
	return func(s *RedisQuotaStore) { s.timeout = d }
}

func NewRedisQuotaStore(rdb redis.UniversalClient, opts ...RedisQuotaOption) *RedisQuotaStore {
	s := &RedisQuotaStore{rdb: rdb, timeout: 2 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisQuotaStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: redis get %q: %w", domain.ErrStoreUnavailable, key, err)
	}
	return raw, true, nil
}

func (s *RedisQuotaStore) Put(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// SET com expiração < 1s vira PX; garante EX inteiro em segundos.
	if ttl < time.Second {
		ttl = time.Second
	}
	ttl = ttl.Truncate(time.Second)

	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set %q: %w", domain.ErrStoreUnavailable, key, err)
	}
	return nil
}

// Ping é usado pelo /healthz.
func (s *RedisQuotaStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisQuotaStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
