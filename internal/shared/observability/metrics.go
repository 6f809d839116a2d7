package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "handbook_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	TransformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "handbook_transform_seconds",
		Help:    "Time spent expanding macro calls in one source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	FilesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handbook_files_processed_total",
		Help: "Files handled by the transformer, by outcome.",
	}, []string{"result"})

	MacroCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handbook_macro_calls_total",
		Help: "Macro call sites seen, by load kind (eager, lazy, unrecognized).",
	}, []string{"load"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handbook_cache_lookups_total",
		Help: "Transform cache lookups, by hit or miss.",
	}, []string{"outcome"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "handbook_run_seconds",
		Help:    "Wall time of a full batch run.",
		Buckets: prometheus.DefBuckets,
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "handbook_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)

// File outcome labels for FilesProcessedTotal.
const (
	ResultRewritten = "rewritten"
	ResultUnchanged = "unchanged"
	ResultCached    = "cached"
	ResultFailed    = "failed"
)
