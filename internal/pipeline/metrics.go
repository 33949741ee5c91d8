package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// buildsTotal counts builds by outcome (ok, load_error, merge_error, verify_error).
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "holdings",
		Subsystem: "pipeline",
		Name:      "builds_total",
		Help:      "Total pipeline builds by outcome",
	}, []string{"outcome"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "holdings",
		Subsystem: "pipeline",
		Name:      "build_duration_seconds",
		Help:      "Time to load, merge, cluster and assemble one build",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// The gauges describe the most recent successful build.
	titlesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "holdings",
		Subsystem: "pipeline",
		Name:      "titles",
		Help:      "Titles in the working set of the last build",
	})

	clustersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "holdings",
		Subsystem: "pipeline",
		Name:      "clusters",
		Help:      "Multi-title clusters in the last build",
	})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "holdings",
		Subsystem: "pipeline",
		Name:      "dropped_titles_total",
		Help:      "Titles dropped for having no holdings series",
	})
)

const (
	outcomeOK          = "ok"
	outcomeLoadError   = "load_error"
	outcomeMergeError  = "merge_error"
	outcomeVerifyError = "verify_error"
)
