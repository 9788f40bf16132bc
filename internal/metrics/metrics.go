// Package metrics provides Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream call kinds.
const (
	KindChat      = "chat"
	KindMessages  = "messages"
	KindResponses = "responses"
	KindModels    = "models"
)

// Upstream call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeUpstream = "upstream_error"
	OutcomeNetwork  = "network_error"
	OutcomeDecode   = "decode_error"
)

var (
	// HTTPRequestsTotal counts served requests by matched route.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"route", "method", "status"},
	)

	// UpstreamRequestsTotal counts calls made to providers.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_upstream_requests_total",
			Help: "Total number of upstream provider calls.",
		},
		[]string{"provider", "kind", "outcome"},
	)

	// UpstreamLatency tracks time to upstream response headers in seconds.
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_upstream_latency_seconds",
			Help:    "Upstream provider latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "kind"},
	)

	// CatalogFallbacksTotal counts model listings served from the static catalog.
	CatalogFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_catalog_fallbacks_total",
			Help: "Model listings that degraded to the static catalog.",
		},
		[]string{"provider", "reason"}, // reason: "no_credential", "upstream_error", "empty"
	)

	// ActiveStreams tracks streams currently being relayed.
	ActiveStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_active_streams",
			Help: "Number of in-flight streaming relays.",
		},
		[]string{"provider"},
	)

	// StreamFramesTotal counts writes made to streaming clients.
	StreamFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_stream_frames_total",
			Help: "Total number of frames written to streaming clients.",
		},
		[]string{"provider", "kind"},
	)
)

// RecordUpstream records one finished upstream call.
func RecordUpstream(provider, kind, outcome string, seconds float64) {
	UpstreamRequestsTotal.WithLabelValues(provider, kind, outcome).Inc()
	UpstreamLatency.WithLabelValues(provider, kind).Observe(seconds)
}
