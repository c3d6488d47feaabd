package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catsync",
			Name:      "events_total",
			Help:      "Change events processed, by kind and outcome",
		},
		[]string{"kind", "status"}, // status: applied / stale / deadletter / invalid
	)

	ApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catsync",
			Name:      "apply_duration_seconds",
			Help:      "Time to apply one change event to the index",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"component"},
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catsync",
			Name:      "retries_total",
			Help:      "Transient-failure retries, by component",
		},
		[]string{"component"},
	)

	DeadLettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catsync",
			Name:      "deadletters_total",
			Help:      "Units of work dead-lettered after retry exhaustion",
		},
		[]string{"component"},
	)

	RankRecomputeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catsync",
			Name:      "rank_recompute_total",
			Help:      "Rank snapshots computed",
		},
	)

	TagWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catsync",
			Name:      "tag_writes_total",
			Help:      "Tag assignments added/removed by the importer",
		},
		[]string{"op"}, // "add" / "remove"
	)

	DirtyItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "catsync",
			Name:      "dirty_items",
			Help:      "Items awaiting rank recomputation",
		},
	)

	ReindexRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "catsync",
			Name:      "reindex_running",
			Help:      "1 while a full reindex is in progress",
		},
	)

	ReindexedItems = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catsync",
			Name:      "reindexed_items_total",
			Help:      "Items rebuilt by full reindex runs",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(ApplyDuration)
	prometheus.MustRegister(RetriesTotal)
	prometheus.MustRegister(DeadLettersTotal)
	prometheus.MustRegister(RankRecomputeTotal)
	prometheus.MustRegister(TagWritesTotal)
	prometheus.MustRegister(DirtyItems)
	prometheus.MustRegister(ReindexRunning)
	prometheus.MustRegister(ReindexedItems)
	pipelineMetricsRegistered = true
}
