package infra

import (
	"context"
	"sync"
	"time"
)

// MemoryQuotaStore é um domain.QuotaStore em memória com expiração por chave.
// Útil para testes e desenvolvimento local (cmd/example-server).
//
// Não é compartilhado entre instâncias; em produção use RedisQuotaStore.
type MemoryQuotaStore struct {
	mu      sync.Mutex
	entries map[string]quotaEntry

	now          func() time.Time
	cleanupEvery time.Duration
}

type quotaEntry struct {
	raw       []byte
	expiresAt time.Time
}

type MemoryQuotaOption func(*MemoryQuotaStore)

// WithQuotaClock troca o relógio usado para expirar entradas.
func WithQuotaClock(now func() time.Time) MemoryQuotaOption {
	return func(s *MemoryQuotaStore) { s.now = now }
}

func WithQuotaCleanupEvery(d time.Duration) MemoryQuotaOption {
	return func(s *MemoryQuotaStore) { s.cleanupEvery = d }
}

func NewMemoryQuotaStore(opts ...MemoryQuotaOption) *MemoryQuotaStore {
	s := &MemoryQuotaStore{
		entries:      make(map[string]quotaEntry),
		now:          time.Now,
		cleanupEvery: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryQuotaStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !now.Before(ent.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(ent.raw))
	copy(out, ent.raw)
	return out, true, nil
}

func (s *MemoryQuotaStore) Put(_ context.Context, key string, raw []byte, ttl time.Duration) error {
	if ttl < time.Second {
		ttl = time.Second
	}
	val := make([]byte, len(raw))
	copy(val, raw)

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = quotaEntry{raw: val, expiresAt: now.Add(ttl.Truncate(time.Second))}
	return nil
}

func (s *MemoryQuotaStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryQuotaStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !now.Before(ent.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor remove entradas expiradas periodicamente. Pare cancelando o contexto.
func (s *MemoryQuotaStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}
