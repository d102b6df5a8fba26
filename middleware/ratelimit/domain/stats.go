package domain

import (
	"context"
	"time"
)

// StatsKind separa as decisões do burst guard das decisões de quota.
type StatsKind string

const (
	StatsKindBurst StatsKind = "burst"
	StatsKindQuota StatsKind = "quota"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Kind    StatsKind
	Key     Key
	Allowed bool
	// Degraded marca decisões fail-open tomadas sem o quota store.
	Degraded bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O chamador trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
