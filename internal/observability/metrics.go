// Package observability exposes the Prometheus metrics and
// OpenTelemetry tracer shared by the orchestrator, indexer, and
// materializer.
package observability

import (
	"go.opentelemetry.io/otel"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tracer is the module-wide OpenTelemetry tracer. Callers configure the
// global TracerProvider (e.g. via otel.SetTracerProvider); the core
// ships no exporter of its own.
var Tracer = otel.Tracer("impactengine")

var (
	IndexBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "impactengine_index_build_seconds",
		Help:    "Time spent building a repo's symbol index from scratch.",
		Buckets: prometheus.DefBuckets,
	}, []string{"repo"})

	IndexFilesScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impactengine_index_files_scanned_total",
		Help: "Total number of Java files scanned while building an index.",
	}, []string{"repo"})

	IndexCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impactengine_index_cache_hits_total",
		Help: "Total number of index cache hits.",
	}, []string{"repo"})

	IndexCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impactengine_index_cache_misses_total",
		Help: "Total number of index cache misses (rebuild required).",
	}, []string{"repo"})

	MaterializeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impactengine_materialize_outcomes_total",
		Help: "Repo materialization outcomes by result.",
	}, []string{"result"}) // ok | fail

	CrossProjectImpactsFound = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "impactengine_cross_project_impacts_found",
		Help:    "Number of cross-project impacts found per trace query.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	}, []string{"main_repo"})

	LLMRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "impactengine_llm_retries_total",
		Help: "Total number of LLM reply-shape retries.",
	})

	LLMFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "impactengine_llm_failures_total",
		Help: "Total number of LLM calls that produced a FAILED report after retry.",
	})

	OrchestratorTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "impactengine_task_duration_seconds",
		Help:    "Wall-clock duration of a completed analysis task.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
)
