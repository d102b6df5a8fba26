package infra

import (
	"context"

	"chat-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStatsStore expõe as decisões como contador
// chat_gateway_ratelimit_decisions_total{kind,outcome}.
//
// Não usa a chave como label (cardinalidade ilimitada).
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) (*PrometheusStatsStore, error) {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat_gateway",
		Subsystem: "ratelimit",
		Name:      "decisions_total",
		Help:      "Rate limit decisions by kind (burst, quota) and outcome (allowed, denied, degraded).",
	}, []string{"kind", "outcome"})

	if err := reg.Register(decisions); err != nil {
		return nil, err
	}
	return &PrometheusStatsStore{decisions: decisions}, nil
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := "denied"
	switch {
	case ev.Degraded:
		outcome = "degraded"
	case ev.Allowed:
		outcome = "allowed"
	}
	s.decisions.WithLabelValues(string(ev.Kind), outcome).Inc()
	return nil
}

// MultiStats repassa o evento para todos os stores; devolve o primeiro erro.
type MultiStats []domain.StatsStore

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
