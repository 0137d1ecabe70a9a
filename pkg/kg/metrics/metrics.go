package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// System metrics
	SystemMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_memory_bytes",
		Help: "Current system memory usage",
	})

	SystemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_goroutines",
		Help: "Number of goroutines",
	})

	// Extraction metrics
	SentencesAnnotated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extraction_sentences_annotated_total",
		Help: "Total number of sentences produced by the chunker",
	})

	TriplesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_triples_total",
			Help: "Total number of raw triples emitted, by extraction method",
		},
		[]string{"method"},
	)

	TriplesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_triples_dropped_total",
			Help: "Total number of triples dropped before reaching the graph",
		},
		[]string{"reason"},
	)

	UnmappedPredicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extraction_unmapped_predicates_total",
		Help: "Total number of predicates passed through outside the controlled vocabulary",
	})

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_validation_failures_total",
			Help: "Total number of validation failures, by stage and reason",
		},
		[]string{"stage", "reason"},
	)

	// LLM metrics
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_calls_total",
			Help: "Total number of LLM completions requested, by kind and status",
		},
		[]string{"kind", "status"},
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "llm_call_duration_seconds",
			Help: "Time spent waiting on LLM completions",
		},
		[]string{"kind"},
	)

	// Graph metrics
	GraphNodeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_nodes_total",
			Help: "Total number of nodes in the graph",
		},
		[]string{"node_type"},
	)

	GraphEdgeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_edges_total",
			Help: "Total number of edges in the graph",
		},
		[]string{"edge_type"},
	)

	TraitAssertions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personality_trait_scores_total",
			Help: "Total number of trait scores produced, by method",
		},
		[]string{"method"},
	)
)

// UpdateSystemMetrics updates system-level metrics
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	SystemMemoryUsage.Set(float64(m.Alloc))
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}
