package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_http_requests_total",
			Help: "HTTP requests dispatched, by method and status code",
		},
		[]string{"method", "code"},
	)
	authFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_auth_failures_total",
			Help: "Authentication failures, by reason",
		},
		[]string{"reason"},
	)
	csrfRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_csrf_rejections_total",
			Help: "Requests rejected because of a missing or invalid page token",
		},
	)
)

// CountRequest records one dispatched request.
func CountRequest(method string, status int) {
	requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// CountAuthFailure records one failed authentication attempt.
func CountAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}

// CountCSRFRejection records one rejected page-token check.
func CountCSRFRejection() {
	csrfRejectionsTotal.Inc()
}

// Handler returns the scrape handler for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
