package opmon

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gwscope"

var (
	// Registry holds the Prometheus collectors of the process
	Registry = prometheus.NewRegistry()

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of monitored operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"operation"},
	)

	// DispatchRejected counts requests rejected by a dispatch table
	DispatchRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "rejected_total",
			Help:      "Requests rejected because of unknown actions or invalid arguments.",
		},
		[]string{"table", "reason"},
	)

	// PersistenceWrites counts write-behind saves by result
	PersistenceWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "writes_total",
			Help:      "Entity writes issued by the persistence queue.",
		},
		[]string{"result"},
	)

	// PersistenceDirty is the number of keys waiting in the persistence queue
	PersistenceDirty = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "dirty_keys",
			Help:      "Number of dirty entity keys waiting to be written.",
		},
	)

	// SessionLoadFailures counts sessions terminated by load failures
	SessionLoadFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "load_failures_total",
			Help:      "Sessions terminated because an entity could not be loaded.",
		},
	)

	// Sessions is the number of sessions by state
	Sessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "sessions",
			Help:      "Number of sessions by lifecycle state.",
		},
		[]string{"state"},
	)

	// RegistryEntities is the number of live entities by type
	RegistryEntities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "entities",
			Help:      "Number of live entities by type.",
		},
		[]string{"type"},
	)

	processCPUPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "CPU percent of the server process.",
		},
	)

	processRSS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "rss_bytes",
			Help:      "Resident memory of the server process.",
		},
	)
)

func init() {
	Registry.MustRegister(
		operationDuration,
		DispatchRejected,
		PersistenceWrites,
		PersistenceDirty,
		SessionLoadFailures,
		Sessions,
		RegistryEntities,
		processCPUPercent,
		processRSS,
		prometheus.NewGoCollector(),
	)
}

// Handler returns the http handler exposing all metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
