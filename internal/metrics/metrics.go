// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal counts generation requests by path and outcome
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegen_generations_total",
		Help: "Generation requests by generation method and outcome.",
	}, []string{"method", "status"})

	// GenerationDuration observes end-to-end generation latency
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codegen_generation_duration_seconds",
		Help:    "End-to-end generation latency.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
	}, []string{"method"})

	// ExtractionMethodTotal counts which fallback recovered the code
	ExtractionMethodTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegen_extraction_method_total",
		Help: "Code extraction outcomes by method.",
	}, []string{"extraction_method"})

	// ArtifactOperationsTotal counts artifact store operations
	ArtifactOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegen_artifact_operations_total",
		Help: "Artifact store operations by kind and outcome.",
	}, []string{"operation", "status"})

	// RemoteFallbacksTotal counts silent remote-to-local fallbacks
	RemoteFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codegen_remote_fallbacks_total",
		Help: "Generations that fell back from the remote runtime to the local path.",
	})

	// UnsafeGenerationsTotal counts generations flagged by the security gate
	UnsafeGenerationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codegen_unsafe_generations_total",
		Help: "Generations whose output failed security screening.",
	})
)
