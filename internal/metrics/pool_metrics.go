package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DialCounter counts connection attempts by scope and outcome
	DialCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_dial_total",
			Help: "Total number of database dial attempts",
		},
		[]string{"scope", "outcome"},
	)

	// DialDuration records how long establishing a connection took, retries included
	DialDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_dial_duration_seconds",
			Help:    "Duration of establishing a database connection",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"scope"},
	)

	// AcquireCounter counts registry acquisitions: hit, created, replaced, error
	AcquireCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_acquire_total",
			Help: "Total number of connection acquisitions by outcome",
		},
		[]string{"scope", "outcome"},
	)

	// ActiveConnections is the number of stored connections per scope
	ActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_active_connections",
			Help: "Number of pooled database connections held by the registry",
		},
		[]string{"scope"},
	)

	// ResolutionCounter counts tenant resolutions by method and outcome
	ResolutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolution_total",
			Help: "Total number of tenant resolutions",
		},
		[]string{"method", "outcome"},
	)

	// AuthorizerDecisions counts authorizer results
	AuthorizerDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorizer_decisions_total",
			Help: "Total number of authorizer decisions",
		},
		[]string{"flavour", "effect"},
	)
)

func init() {
	prometheus.MustRegister(
		DialCounter,
		DialDuration,
		AcquireCounter,
		ActiveConnections,
		ResolutionCounter,
		AuthorizerDecisions,
	)
}

// RecordDial records one dial attempt
func RecordDial(scope string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	DialCounter.WithLabelValues(scope, outcome).Inc()
}

// ObserveConnect records the total time spent establishing a connection
func ObserveConnect(scope string, start time.Time) {
	DialDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
}

// RecordAcquire records a registry acquisition outcome
func RecordAcquire(scope, outcome string) {
	AcquireCounter.WithLabelValues(scope, outcome).Inc()
}

// SetActiveConnections sets the gauge of stored connections
func SetActiveConnections(scope string, n int) {
	ActiveConnections.WithLabelValues(scope).Set(float64(n))
}

// RecordResolution records a tenant resolution
func RecordResolution(method, outcome string) {
	ResolutionCounter.WithLabelValues(method, outcome).Inc()
}

// RecordDecision records an authorizer decision
func RecordDecision(flavour string, allow bool) {
	effect := "deny"
	if allow {
		effect = "allow"
	}
	AuthorizerDecisions.WithLabelValues(flavour, effect).Inc()
}
