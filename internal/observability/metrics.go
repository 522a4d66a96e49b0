package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the auth subsystem's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	LoginAttemptsTotal       *prometheus.CounterVec
	SessionsCreatedTotal     prometheus.Counter
	SessionsInvalidatedTotal *prometheus.CounterVec
	TokenResolutionsTotal    *prometheus.CounterVec
	HousekeepingRowsTotal    *prometheus.CounterVec
	RateLimitedTotal         prometheus.Counter
	ActiveSessions           prometheus.Gauge
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		SessionsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_sessions_created_total",
				Help: "Sessions issued",
			},
		),
		SessionsInvalidatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_sessions_invalidated_total",
				Help: "Sessions invalidated by reason",
			},
			[]string{"reason"},
		),
		TokenResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_token_resolutions_total",
				Help: "Credential resolutions by method and result",
			},
			[]string{"method", "result"},
		),
		HousekeepingRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_session_housekeeping_rows_total",
				Help: "Rows touched by session housekeeping jobs",
			},
			[]string{"job"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_rate_limited_total",
				Help: "Login requests rejected by the rate limiter",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "auth_active_sessions",
				Help: "Active sessions at the last stats refresh",
			},
		),
	}

	registry.MustRegister(
		m.LoginAttemptsTotal,
		m.SessionsCreatedTotal,
		m.SessionsInvalidatedTotal,
		m.TokenResolutionsTotal,
		m.HousekeepingRowsTotal,
		m.RateLimitedTotal,
		m.ActiveSessions,
	)

	return m
}

func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreatedTotal.Inc()
}

func (m *Metrics) RecordSessionsInvalidated(reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsInvalidatedTotal.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) RecordResolution(method, result string) {
	if m == nil {
		return
	}
	m.TokenResolutionsTotal.WithLabelValues(method, result).Inc()
}

func (m *Metrics) RecordHousekeeping(job string, rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.HousekeepingRowsTotal.WithLabelValues(job).Add(float64(rows))
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

func (m *Metrics) SetActiveSessions(n int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
