package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// Assignment transitions
	TransitionAssigned  = "assigned"
	TransitionActivated = "activated"
	TransitionReplaced  = "replaced"
	TransitionDeclined  = "declined"

	// Session events
	SessionCreated   = "created"
	SessionLogAdded  = "log_added"
	SessionLogEdited = "log_updated"
	SessionCompleted = "completed"

	// Lock scopes
	LockScopeUser    = "user"
	LockScopeSession = "session"

	// Cache results
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method"},
	)
)

// Domain Metrics
var (
	AssignmentTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_transitions_total",
			Help: "Assignment ledger transitions by kind",
		},
		[]string{"transition"},
	)

	SessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_events_total",
			Help: "Workout session writes by event",
		},
		[]string{"event", "session_type"},
	)

	DomainErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_errors_total",
			Help: "Errors returned to callers by kind",
		},
		[]string{"kind"},
	)
)

// Infrastructure Metrics
var (
	LockWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lock_wait_duration_seconds",
			Help:    "Time spent waiting for a per-key lock",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"scope"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		},
		[]string{"result"},
	)
)
