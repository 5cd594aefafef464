// Package metrics holds the Prometheus collectors for upstream currency API calls.
//
//   - currency_proxy_upstream_requests_total{outcome} (Counter): success, transport_error, decode_error
//   - currency_proxy_upstream_status_total{status} (Counter): upstream HTTP status codes received
//   - currency_proxy_upstream_duration_seconds (Histogram): time spent on the upstream call
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream call outcomes
const (
	OutcomeSuccess        = "success"
	OutcomeTransportError = "transport_error"
	OutcomeDecodeError    = "decode_error"
)

var (
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "currency_proxy_upstream_requests_total",
		Help: "Total upstream currency API calls by outcome",
	}, []string{"outcome"})

	UpstreamStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "currency_proxy_upstream_status_total",
		Help: "Upstream currency API responses by HTTP status code",
	}, []string{"status"})

	UpstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "currency_proxy_upstream_duration_seconds",
		Help:    "Upstream currency API call duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

// ObserveUpstream records a finished upstream call. statusCode is zero when no response arrived.
func ObserveUpstream(outcome string, statusCode int, elapsed time.Duration) {
	UpstreamRequests.WithLabelValues(outcome).Inc()
	if statusCode > 0 {
		UpstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	}
	UpstreamDuration.Observe(elapsed.Seconds())
}
