package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProbeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_probe_attempts_total",
			Help: "Candidate shapes tried by schema discovery, by outcome",
		},
		[]string{"collection", "outcome"},
	)

	ProbeCleanupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_probe_cleanup_failures_total",
			Help: "Probe rows that could not be deleted after acceptance",
		},
		[]string{"collection"},
	)

	SmokeStages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crud_smoke_stages_total",
			Help: "CRUD smoke stages by result (passed, failed, skipped)",
		},
		[]string{"collection", "stage", "result"},
	)

	SeedInserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seed_inserts_total",
			Help: "Seed fixture inserts by result",
		},
		[]string{"collection", "result"},
	)

	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_processed_total",
			Help: "Maintenance jobs processed by workers",
		},
		[]string{"kind", "result"},
	)

	WorkerActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_active_goroutines",
			Help: "Number of active worker goroutines",
		},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Current RabbitMQ queue depth",
		},
		[]string{"queue"},
	)

	FallbacksServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallbacks_served_total",
			Help: "Responses substituted with a default after a backend failure",
		},
		[]string{"what"},
	)
)

var once sync.Once

// Init registers metrics with Prometheus. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			ProbeAttempts,
			ProbeCleanupFailures,
			SmokeStages,
			SeedInserts,
			JobsProcessed,
			WorkerActive,
			QueueDepth,
			FallbacksServed,
		)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
