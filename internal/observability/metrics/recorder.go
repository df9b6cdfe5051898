// Package metrics holds the Prometheus collectors for synergy-web.
//
// All Recorder methods are safe on a nil receiver so callers can run with
// metrics disabled without guarding every call site.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	obserrors "github.com/synergyaccounting/synergy-web/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Config configures a Recorder.
type Config struct {
	Namespace string
	Buckets   []float64
	Registry  prometheus.Registerer
}

// Option mutates Config.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(ns string) Option {
	return func(c *Config) { c.Namespace = ns }
}

// WithBuckets sets the histogram buckets used for durations.
func WithBuckets(b []float64) Option {
	return func(c *Config) { c.Buckets = b }
}

// Recorder owns every collector the application exports.
type Recorder struct {
	tokenAttempts     *prometheus.CounterVec
	tokenAcquisitions *prometheus.CounterVec
	sessionRestores   *prometheus.CounterVec
	logins            *prometheus.CounterVec
	guardDecisions    *prometheus.CounterVec
	upstreamRequests  *prometheus.HistogramVec
	workspacesActive  prometheus.Gauge
	workspaceEvicted  *prometheus.CounterVec
	httpRequests      *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer, opts ...Option) *Recorder {
	cfg := Config{
		Namespace: "synergy_web",
		Buckets:   prometheus.DefBuckets,
		Registry:  reg,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)
	ns := cfg.Namespace

	return &Recorder{
		tokenAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "csrf_token_attempts_total",
			Help:      "Anti-forgery token fetch attempts by outcome",
		}, []string{"result"}),
		tokenAcquisitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "csrf_token_acquisitions_total",
			Help:      "Completed token acquisition sequences by outcome",
		}, []string{"result"}),
		sessionRestores: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "session_restores_total",
			Help:      "Session restoration attempts by outcome",
		}, []string{"result", "error_class"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"result"}),
		guardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "screen_guard_decisions_total",
			Help:      "Screen guard decisions by requirement and decision",
		}, []string{"requirement", "decision"}),
		upstreamRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "upstream_request_duration_seconds",
			Help:      "Remote API call duration by endpoint and outcome",
			Buckets:   cfg.Buckets,
		}, []string{"endpoint", "outcome"}),
		workspacesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "workspaces_active",
			Help:      "Visitor workspaces currently held in memory",
		}),
		workspaceEvicted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "workspaces_evicted_total",
			Help:      "Workspaces removed from the registry by reason",
		}, []string{"reason"}),
		httpRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Screen request duration by route and status",
			Buckets:   cfg.Buckets,
		}, []string{"route", "status"}),
	}
}

// TokenAttempt counts one token fetch attempt.
func (r *Recorder) TokenAttempt(result string) {
	if r == nil {
		return
	}
	r.tokenAttempts.WithLabelValues(result).Inc()
}

// TokenAcquisition counts one finished acquisition sequence.
func (r *Recorder) TokenAcquisition(result string) {
	if r == nil {
		return
	}
	r.tokenAcquisitions.WithLabelValues(result).Inc()
}

// SessionRestore counts one restore; err is classified when result is ResultError.
func (r *Recorder) SessionRestore(result string, err error) {
	if r == nil {
		return
	}
	class := ""
	if err != nil && result == ResultError {
		class = obserrors.Classify(err)
	}
	r.sessionRestores.WithLabelValues(result, class).Inc()
}

// Login counts one login attempt. result is success, rejected or error.
func (r *Recorder) Login(result string) {
	if r == nil {
		return
	}
	r.logins.WithLabelValues(result).Inc()
}

// GuardDecision counts one screen guard decision.
func (r *Recorder) GuardDecision(requirement, decision string) {
	if r == nil {
		return
	}
	r.guardDecisions.WithLabelValues(requirement, decision).Inc()
}

// ObserveUpstream records one remote API call.
func (r *Recorder) ObserveUpstream(endpoint, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.upstreamRequests.WithLabelValues(endpoint, outcome).Observe(elapsed.Seconds())
}

// WorkspacesActive sets the live workspace gauge.
func (r *Recorder) WorkspacesActive(n int) {
	if r == nil {
		return
	}
	r.workspacesActive.Set(float64(n))
}

// WorkspaceEvicted counts one workspace removal.
func (r *Recorder) WorkspaceEvicted(reason string) {
	if r == nil {
		return
	}
	r.workspaceEvicted.WithLabelValues(reason).Inc()
}

// HTTPRequest records one served screen request.
func (r *Recorder) HTTPRequest(route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
