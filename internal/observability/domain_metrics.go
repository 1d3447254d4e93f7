package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sqlGenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bytells_sql_generations_total",
			Help: "SQL generation attempts by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	sqlFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bytells_sql_fallbacks_total",
			Help: "Remote generation failures answered with locally generated SQL, by error kind.",
		},
		[]string{"kind"},
	)
	queryRouteHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bytells_query_route_hits_total",
			Help: "Query executions by engine and matched route.",
		},
		[]string{"engine", "route"},
	)
	queryDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bytells_query_duration_ms",
			Help:    "Query execution latency in milliseconds, excluding the display delay.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)
	analystRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bytells_analyst_runs_total",
			Help: "Completed question runs by result.",
		},
		[]string{"result"},
	)
	snapshotPublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bytells_snapshot_publishes_total",
			Help: "Parquet snapshot publish attempts by status.",
		},
		[]string{"status"},
	)
	snapshotRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bytells_snapshot_rows",
			Help: "Row count of the last published snapshot.",
		},
	)
	datasetRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bytells_dataset_records",
			Help: "Operation records held by the serving dataset.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		sqlGenerationsTotal,
		sqlFallbacksTotal,
		queryRouteHitsTotal,
		queryDurationMs,
		analystRunsTotal,
		snapshotPublishesTotal,
		snapshotRows,
		datasetRecords,
	)
}

// ObserveGeneration records one generation attempt. outcome is "ok" or the
// error kind.
func ObserveGeneration(source, outcome string) {
	sqlGenerationsTotal.WithLabelValues(source, outcome).Inc()
}

func IncrementFallback(kind string) {
	sqlFallbacksTotal.WithLabelValues(kind).Inc()
}

func ObserveQuery(engine, route string, elapsed time.Duration) {
	if route == "" {
		route = "unrouted"
	}
	queryRouteHitsTotal.WithLabelValues(engine, route).Inc()
	queryDurationMs.Observe(float64(elapsed.Microseconds()) / 1000)
}

func ObserveAnalystRun(result string) {
	analystRunsTotal.WithLabelValues(result).Inc()
}

func ObserveSnapshotPublish(err error, rows int) {
	if err != nil {
		snapshotPublishesTotal.WithLabelValues("error").Inc()
		return
	}
	snapshotPublishesTotal.WithLabelValues("ok").Inc()
	snapshotRows.Set(float64(rows))
}

func SetDatasetRecords(count int) {
	if count < 0 {
		count = 0
	}
	datasetRecords.Set(float64(count))
}
