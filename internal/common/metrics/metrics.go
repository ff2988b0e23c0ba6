// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	QuotaOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_operations_total",
			Help: "Quota ledger operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	Evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluations_total",
			Help: "Evaluations by mode (single, batch) and outcome",
		},
		[]string{"mode", "outcome"},
	)

	ScoringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoring_duration_seconds",
			Help:    "Latency of the scoring engine",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine"},
	)

	DecisionItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_items_total",
			Help: "Decision engine items by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
)
