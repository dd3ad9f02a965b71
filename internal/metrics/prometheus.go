package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is a Recorder backed by Prometheus metrics.
type Collector struct {
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	authDecisions *prometheus.CounterVec
	tokensRevoked prometheus.Counter
	hashDuration  prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_registrations_total",
			Help: "Registration attempts by status.",
		}, []string{"status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_logins_total",
			Help: "Login attempts by status.",
		}, []string{"status"}),
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_auth_decisions_total",
			Help: "Authentication guard decisions by outcome and reason.",
		}, []string{"outcome", "reason"}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "usergate_tokens_revoked_total",
			Help: "Tokens added to the revocation index.",
		}),
		hashDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "usergate_password_hash_duration_seconds",
			Help:    "Time spent hashing or verifying passwords.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.authDecisions,
		c.tokensRevoked,
		c.hashDuration,
	)

	return c
}

// IncRegistration counts a registration attempt by status.
func (c *Collector) IncRegistration(status string) {
	c.registrations.WithLabelValues(status).Inc()
}

// IncLogin counts a login attempt by status.
func (c *Collector) IncLogin(status string) {
	c.logins.WithLabelValues(status).Inc()
}

// IncAuthDecision counts a guard decision by outcome and rejection reason.
func (c *Collector) IncAuthDecision(outcome, reason string) {
	c.authDecisions.WithLabelValues(outcome, reason).Inc()
}

// IncTokenRevoked counts a token written to the revocation index.
func (c *Collector) IncTokenRevoked() {
	c.tokensRevoked.Inc()
}

// ObserveHashDuration records the time spent in one hash or verify call.
func (c *Collector) ObserveHashDuration(duration time.Duration) {
	c.hashDuration.Observe(duration.Seconds())
}

// Handler returns an HTTP handler serving gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
