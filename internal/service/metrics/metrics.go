// Package metrics provides Prometheus metrics for the OAuth service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the OAuth service.
type Metrics struct {
	// Flow metrics
	FlowStartedTotal   *prometheus.CounterVec
	FlowCompletedTotal *prometheus.CounterVec
	FlowDuration       *prometheus.HistogramVec

	// State token metrics
	StateIssuedTotal   prometheus.Counter
	StateConsumedTotal prometheus.Counter
	StateRejectedTotal *prometheus.CounterVec
	StateSweptTotal    prometheus.Counter

	// Token lifecycle metrics
	TokenIssuedTotal    *prometheus.CounterVec
	TokenRefreshedTotal *prometheus.CounterVec
	TokenRevokedTotal   prometheus.Counter
	TokenExpiredTotal   prometheus.Counter

	// Provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Registry for metrics
	Registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewBuildInfoCollector())

	m := &Metrics{
		Registry: reg,

		FlowStartedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_service_flow_started_total",
				Help: "Total number of authorization flows started",
			},
			[]string{"provider"},
		),
		FlowCompletedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_service_flow_completed_total",
				Help: "Total number of authorization flows completed",
			},
			[]string{"provider", "status"},
		),
		FlowDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth_service_flow_duration_seconds",
				Help:    "Callback processing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		StateIssuedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_service_state_issued_total",
				Help: "Total number of state tokens issued",
			},
		),
		StateConsumedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_service_state_consumed_total",
				Help: "Total number of state tokens successfully consumed",
			},
		),
		StateRejectedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_service_state_rejected_total",
				Help: "Total number of state tokens rejected at validation",
			},
			[]string{"reason"},
		),
		StateSweptTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_service_state_swept_total",
				Help: "Total number of expired state tokens removed by the sweeper",
			},
		),

		TokenIssuedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_service_token_issued_total",
				Help: "Total number of token records issued",
			},
			[]string{"provider"},
		),
		TokenRefreshedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_service_token_refreshed_total",
				Help: "Total number of token refresh operations",
			},
			[]string{"status"},
		),
		TokenRevokedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_service_token_revoked_total",
				Help: "Total number of token records revoked",
			},
		),
		TokenExpiredTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_service_token_expired_total",
				Help: "Total number of token records deactivated by expiry cleanup",
			},
		),

		ProviderRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_service_provider_requests_total",
				Help: "Total number of identity provider requests",
			},
			[]string{"provider", "operation", "status"},
		),
		ProviderRequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth_service_provider_request_duration_seconds",
				Help:    "Identity provider request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),

		HTTPRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_service_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth_service_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "oauth_service_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
	}

	return m
}

// Handler returns an HTTP handler for serving Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		Registry:          m.Registry,
		EnableOpenMetrics: true,
	})
}

// RecordFlowStarted records the start of an authorization flow.
func (m *Metrics) RecordFlowStarted(provider string) {
	m.FlowStartedTotal.WithLabelValues(provider).Inc()
}

// RecordFlowCompleted records the outcome of a callback.
func (m *Metrics) RecordFlowCompleted(provider, status string) {
	m.FlowCompletedTotal.WithLabelValues(provider, status).Inc()
}

// RecordFlowDuration records callback processing duration.
func (m *Metrics) RecordFlowDuration(provider string, duration float64) {
	m.FlowDuration.WithLabelValues(provider).Observe(duration)
}

// RecordStateIssued records a state token issuance.
func (m *Metrics) RecordStateIssued() {
	m.StateIssuedTotal.Inc()
}

// RecordStateConsumed records a successful state validation.
func (m *Metrics) RecordStateConsumed() {
	m.StateConsumedTotal.Inc()
}

// RecordStateRejected records a rejected state token.
func (m *Metrics) RecordStateRejected(reason string) {
	m.StateRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordStateSwept records expired state tokens removed by the sweeper.
func (m *Metrics) RecordStateSwept(count int) {
	m.StateSweptTotal.Add(float64(count))
}

// RecordTokenIssued records a token record issuance.
func (m *Metrics) RecordTokenIssued(provider string) {
	m.TokenIssuedTotal.WithLabelValues(provider).Inc()
}

// RecordTokenRefreshed records a token refresh operation.
func (m *Metrics) RecordTokenRefreshed(status string) {
	m.TokenRefreshedTotal.WithLabelValues(status).Inc()
}

// RecordTokenRevoked records a token revocation.
func (m *Metrics) RecordTokenRevoked() {
	m.TokenRevokedTotal.Inc()
}

// RecordTokensExpired records token records deactivated by cleanup.
func (m *Metrics) RecordTokensExpired(count int) {
	m.TokenExpiredTotal.Add(float64(count))
}

// RecordProviderRequest records an identity provider request.
func (m *Metrics) RecordProviderRequest(provider, operation, status string) {
	m.ProviderRequestsTotal.WithLabelValues(provider, operation, status).Inc()
}

// RecordProviderDuration records identity provider request duration.
func (m *Metrics) RecordProviderDuration(provider, operation string, duration float64) {
	m.ProviderRequestDuration.WithLabelValues(provider, operation).Observe(duration)
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration.
func (m *Metrics) RecordHTTPDuration(method, path string, duration float64) {
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments the in-flight request counter.
func (m *Metrics) InFlightInc() {
	m.HTTPRequestsInFlight.Inc()
}

// InFlightDec decrements the in-flight request counter.
func (m *Metrics) InFlightDec() {
	m.HTTPRequestsInFlight.Dec()
}
