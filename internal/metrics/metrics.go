// Package metrics provides Prometheus instruments for the search and detail
// request paths.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APIBuckets covers metadata API latencies from 50ms to 20s (the client timeout).
var APIBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20}

// Request kinds.
const (
	KindSearch = "search"
	KindDetail = "detail"
)

// Request outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeRateLimited = "rate_limited"
	OutcomeHTTPError   = "http_error"
	OutcomeCanceled    = "canceled"
	OutcomeError       = "error"
)

// Metrics groups the instruments. A nil *Metrics is valid and records nothing,
// so components can take one optionally.
type Metrics struct {
	// APIRequestsTotal counts metadata API requests by kind and outcome.
	APIRequestsTotal *prometheus.CounterVec

	// APIRequestDuration records metadata API latency in seconds by kind.
	APIRequestDuration *prometheus.HistogramVec

	// CacheLookupsTotal counts detail cache lookups by result (hit/miss).
	CacheLookupsTotal *prometheus.CounterVec

	// StaleResponsesTotal counts responses discarded because a newer request superseded them.
	StaleResponsesTotal *prometheus.CounterVec
}

// New creates the instruments and registers them with reg. reg may be nil,
// in which case the instruments are created but not registered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinesearch_api_requests_total",
				Help: "Metadata API requests",
			},
			[]string{"kind", "outcome"},
		),
		APIRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cinesearch_api_request_duration_seconds",
				Help:    "Metadata API request duration",
				Buckets: APIBuckets,
			},
			[]string{"kind"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinesearch_detail_cache_lookups_total",
				Help: "Detail cache lookups",
			},
			[]string{"result"},
		),
		StaleResponsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinesearch_stale_responses_total",
				Help: "Responses discarded after supersession",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.APIRequestsTotal,
			m.APIRequestDuration,
			m.CacheLookupsTotal,
			m.StaleResponsesTotal,
		)
	}
	return m
}

// ObserveRequest records one finished API request.
func (m *Metrics) ObserveRequest(kind, outcome string, took time.Duration) {
	m.CountRequest(kind, outcome)
	m.ObserveDuration(kind, took)
}

// CountRequest counts a request outcome without a latency sample. Used when the
// outcome is only known after the body has been decoded.
func (m *Metrics) CountRequest(kind, outcome string) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveDuration records request latency.
func (m *Metrics) ObserveDuration(kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.APIRequestDuration.WithLabelValues(kind).Observe(took.Seconds())
}

// CacheLookup records a detail cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// Stale records a discarded superseded response.
func (m *Metrics) Stale(kind string) {
	if m == nil {
		return
	}
	m.StaleResponsesTotal.WithLabelValues(kind).Inc()
}
