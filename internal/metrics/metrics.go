// Package metrics holds the Prometheus collectors for the login flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartgreen"

// Metrics groups the collectors updated by the HTTP handlers.
type Metrics struct {
	LoginRedirects  *prometheus.CounterVec
	Callbacks       *prometheus.CounterVec
	TokensIssued    prometheus.Counter
	GuardRejections *prometheus.CounterVec
	ExchangeLatency prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		LoginRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_redirects_total",
			Help:      "Authorization redirects issued, by provider.",
		}, []string{"provider"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_callbacks_total",
			Help:      "OAuth callbacks handled, by outcome.",
		}, []string{"outcome"}),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_tokens_issued_total",
			Help:      "Session tokens minted.",
		}),
		GuardRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_rejections_total",
			Help:      "Requests rejected by the session token guard, by reason.",
		}, []string{"reason"}),
		ExchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_exchange_duration_seconds",
			Help:      "Latency of calls to the auth backend.",
			Buckets:   prometheus.DefBuckets,
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.LoginRedirects, m.Callbacks, m.TokensIssued, m.GuardRejections, m.ExchangeLatency)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
