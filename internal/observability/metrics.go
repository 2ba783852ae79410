// Package observability exposes Prometheus metrics for the completion proxy.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded by Metrics.ObserveRequest
const (
	OutcomeOK            = "ok"
	OutcomeUnauthorized  = "unauthorized"
	OutcomeInvalidToken  = "invalid_token"
	OutcomeBadRequest    = "bad_request"
	OutcomeUpstreamError = "upstream_error"
)

// Metrics holds the proxy's collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests         *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timeflow",
			Name:      "requests_total",
			Help:      "Completion requests by outcome.",
		}, []string{"outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "timeflow",
			Name:      "upstream_duration_seconds",
			Help:      "Latency of completion provider calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"model", "success"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.upstreamDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRequest counts one finished request.
func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the latency of one provider call.
func (m *Metrics) ObserveUpstream(model string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	s := "false"
	if success {
		s = "true"
	}
	m.upstreamDuration.WithLabelValues(model, s).Observe(d.Seconds())
}
