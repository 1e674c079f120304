// Package metrics exposes session host counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for metrics collection
type Collector interface {
	// Session metrics
	SessionStarted()
	SessionEnded()
	SessionFailed(reason string)
	ConnectionState(state string)

	// Orchestration metrics
	DisplayMode(mode string)
	ControlMessage(messageType string)
	ControlMessageDropped(reason string)

	// Issuance metrics
	TokenIssued()
	TokenIssueFailed(reason string)

	// Handler returns an HTTP handler for metrics endpoint
	Handler() http.Handler
}

type PrometheusCollector struct {
	gatherer prometheus.Gatherer

	activeSessions     prometheus.Gauge
	sessionsStarted    prometheus.Counter
	sessionsFailed     *prometheus.CounterVec
	connectionStates   *prometheus.CounterVec
	displayModes       *prometheus.CounterVec
	controlMessages    *prometheus.CounterVec
	controlDropped     *prometheus.CounterVec
	tokensIssued       prometheus.Counter
	tokenIssueFailures *prometheus.CounterVec
}

// NewPrometheusCollector registers the session host metrics on reg.
func NewPrometheusCollector(reg *prometheus.Registry) *PrometheusCollector {
	f := promauto.With(reg)
	return &PrometheusCollector{
		gatherer: reg,

		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "nora_active_sessions",
			Help: "Number of sessions not yet torn down",
		}),
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "nora_sessions_started_total",
			Help: "Total number of session start requests",
		}),
		sessionsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nora_sessions_failed_total",
				Help: "Total number of sessions that failed before connecting",
			},
			[]string{"reason"},
		),
		connectionStates: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nora_connection_state_transitions_total",
				Help: "Connection state transitions by target state",
			},
			[]string{"state"},
		),
		displayModes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nora_display_mode_changes_total",
				Help: "Display mode changes by target mode",
			},
			[]string{"mode"},
		),
		controlMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nora_control_messages_total",
				Help: "Control channel messages applied, by type",
			},
			[]string{"message_type"},
		),
		controlDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nora_control_messages_dropped_total",
				Help: "Control channel messages dropped as malformed",
			},
			[]string{"reason"},
		),
		tokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "nora_tokens_issued_total",
			Help: "Total number of join tokens issued",
		}),
		tokenIssueFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nora_token_issue_failures_total",
				Help: "Token requests rejected, by reason",
			},
			[]string{"reason"},
		),
	}
}

func (c *PrometheusCollector) SessionStarted() {
	c.sessionsStarted.Inc()
	c.activeSessions.Inc()
}

func (c *PrometheusCollector) SessionEnded() { c.activeSessions.Dec() }

func (c *PrometheusCollector) SessionFailed(reason string) {
	c.sessionsFailed.WithLabelValues(reason).Inc()
}

func (c *PrometheusCollector) ConnectionState(state string) {
	c.connectionStates.WithLabelValues(state).Inc()
}

func (c *PrometheusCollector) DisplayMode(mode string) {
	c.displayModes.WithLabelValues(mode).Inc()
}

func (c *PrometheusCollector) ControlMessage(messageType string) {
	c.controlMessages.WithLabelValues(messageType).Inc()
}

func (c *PrometheusCollector) ControlMessageDropped(reason string) {
	c.controlDropped.WithLabelValues(reason).Inc()
}

func (c *PrometheusCollector) TokenIssued() { c.tokensIssued.Inc() }

func (c *PrometheusCollector) TokenIssueFailed(reason string) {
	c.tokenIssueFailures.WithLabelValues(reason).Inc()
}

func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) SessionStarted()              {}
func (Nop) SessionEnded()                {}
func (Nop) SessionFailed(string)         {}
func (Nop) ConnectionState(string)       {}
func (Nop) DisplayMode(string)           {}
func (Nop) ControlMessage(string)        {}
func (Nop) ControlMessageDropped(string) {}
func (Nop) TokenIssued()                 {}
func (Nop) TokenIssueFailed(string)      {}
func (Nop) Handler() http.Handler        { return http.NotFoundHandler() }
