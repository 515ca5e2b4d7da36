package application

import (
	"time"

	"chat-gateway/chat/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess       = "success"
	resultUpstreamError = "upstream_error"
	resultNoResponse    = "no_response"
	resultSetupError    = "setup_error"
	resultInvalidFormat = "invalid_format"
	resultMisconfigured = "misconfigured"
)

// Metrics conta o resultado de cada requisição no pipeline e mede a latência do upstream.
// Um *Metrics nil é válido e não faz nada.
type Metrics struct {
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		results: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_chat_requests_total",
				Help: "Total number of chat requests by pipeline result",
			},
			[]string{"result"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_upstream_duration_seconds",
				Help:    "Duration of upstream chat completion calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms a ~25s
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) Results() *prometheus.CounterVec { return m.results }

func (m *Metrics) observeGate(result string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(result).Inc()
}

func (m *Metrics) observeOutcome(o domain.Outcome, d time.Duration) {
	if m == nil {
		return
	}
	result := outcomeResult(o)
	m.results.WithLabelValues(result).Inc()
	m.duration.WithLabelValues(result).Observe(d.Seconds())
}

func outcomeResult(o domain.Outcome) string {
	switch o.(type) {
	case domain.Success:
		return resultSuccess
	case domain.UpstreamError:
		return resultUpstreamError
	case domain.NoResponse:
		return resultNoResponse
	default:
		return resultSetupError
	}
}
