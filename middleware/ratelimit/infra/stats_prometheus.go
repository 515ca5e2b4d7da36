package infra

import (
	"context"

	"chat-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusStatsStore expõe as decisões de admissão como counter.
//
// A chave do cliente fica de fora dos labels de propósito (cardinalidade).
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) *PrometheusStatsStore {
	return &PrometheusStatsStore{
		decisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_ratelimit_decisions_total",
				Help: "Total number of admission decisions taken by the rate limiter",
			},
			[]string{"route", "result"},
		),
	}
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.decisions.WithLabelValues(ev.Method+" "+ev.Path, statsField(ev.Allowed)).Inc()
	return nil
}

// Decisions devolve o counter (para testes com prometheus/testutil).
func (s *PrometheusStatsStore) Decisions() *prometheus.CounterVec { return s.decisions }

// MultiStatsStore repassa o evento para todos os stores. Continua mesmo se um
// falhar e devolve o primeiro erro.
type MultiStatsStore []domain.StatsStore

func (m MultiStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
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
