// metrics declares the Prometheus collectors exported by relq.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StatementsTotal counts executed statements by kind and outcome.
	StatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relq_statements_total",
			Help: "Total number of executed statements",
		},
		[]string{"kind", "status"},
	)
	// StatementDuration is the latency of statement execution.
	StatementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relq_statement_duration_seconds",
			Help:    "Statement execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	// RowsReturned counts rows written to select results.
	RowsReturned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relq_rows_returned_total",
			Help: "Total number of rows returned by queries",
		},
	)
	// PlanRetries counts statements planned again after a schema change.
	PlanRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relq_plan_retries_total",
			Help: "Total number of statements re-planned because the catalog changed",
		},
	)
	// LockWait is the time spent waiting for block locks.
	LockWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relq_lock_wait_seconds",
			Help:    "Time spent acquiring block locks in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"mode"},
	)
	// LockTimeouts counts lock acquisitions that gave up.
	LockTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relq_lock_timeouts_total",
			Help: "Total number of block lock timeouts",
		},
	)
	// PagesFlushed counts pages written to storage.
	PagesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relq_pages_flushed_total",
			Help: "Total number of pages written to storage",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
