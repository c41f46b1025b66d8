package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	BallotsCast    prometheus.Counter
	VotesDenied    *prometheus.CounterVec
	LoginFailures  prometheus.Counter
	LoginLockouts  prometheus.Counter
	RequestLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		BallotsCast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "convoca_ballots_cast_total",
			Help: "Total number of ballots persisted",
		}),
		VotesDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "convoca_votes_denied_total",
			Help: "Vote attempts denied, labelled by denial reason",
		}, []string{"reason"}),
		LoginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "convoca_login_failures_total",
			Help: "Failed login attempts",
		}),
		LoginLockouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "convoca_login_lockouts_total",
			Help: "Accounts locked after repeated login failures",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "convoca_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// IncVoteDenied records a denial with its reason label.
func (m *Metrics) IncVoteDenied(reason string) {
	m.VotesDenied.WithLabelValues(reason).Inc()
}

// ObserveRequest records one request's latency.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	m.RequestLatency.WithLabelValues(route, status).Observe(seconds)
}
