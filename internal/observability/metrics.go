// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// API metrics
	SubmissionsTotal *prometheus.CounterVec
	ClaimsTotal      *prometheus.CounterVec

	// Claims whose disbursement event never reached the broker
	ClaimEventFailures prometheus.Counter

	// Validation metrics
	ValidationsTotal *prometheus.CounterVec

	// Eligibility metrics
	EligibilityEvaluations *prometheus.CounterVec
	EligibleRecords        prometheus.Gauge

	// Chain metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCErrors      *prometheus.CounterVec

	// Job metrics
	JobRunsTotal   *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	SnapshotRows   *prometheus.CounterVec
	LastSuccessJob *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_airdrop"
	}

	return &Metrics{
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "submissions_total",
			Help:      "Total number of submit requests by result code",
		}, []string{"result"}),
		ClaimsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "claims_total",
			Help:      "Total number of claim requests by result code",
		}, []string{"result"}),
		ClaimEventFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "claim_event_failures_total",
			Help:      "Total number of recorded claims whose event could not be published",
		}),

		ValidationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "validations_total",
			Help:      "Total number of wallet validations by result",
		}, []string{"result", "cached"}),

		EligibilityEvaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eligibility",
			Name:      "evaluations_total",
			Help:      "Total number of per-record eligibility decisions by outcome",
		}, []string{"outcome"}),
		EligibleRecords: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "eligibility",
			Name:      "eligible_records",
			Help:      "Number of records marked eligible by the last evaluator run",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_errors_total",
			Help:      "Total number of transient Solana RPC failures by method",
		}, []string{"method"}),

		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Total number of scheduled job runs by status",
		}, []string{"job", "status"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduled job duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"job"}),
		SnapshotRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "snapshot_rows_total",
			Help:      "Total number of rows written to snapshot sinks",
		}, []string{"sink"}),
		LastSuccessJob: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_job_timestamp",
			Help:      "Unix timestamp of the last successful run per job",
		}, []string{"job"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSubmission records the result code of a submit request.
func RecordSubmission(result string) {
	DefaultMetrics.SubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordClaim records the result code of a claim request.
func RecordClaim(result string) {
	DefaultMetrics.ClaimsTotal.WithLabelValues(result).Inc()
}

// RecordClaimEventFailure records a claim whose event was not published.
func RecordClaimEventFailure() {
	DefaultMetrics.ClaimEventFailures.Inc()
}

// RecordValidation records a wallet validation result.
func RecordValidation(result string, cached bool) {
	c := "false"
	if cached {
		c = "true"
	}
	DefaultMetrics.ValidationsTotal.WithLabelValues(result, c).Inc()
}

// RecordEligibility records one per-record evaluator decision.
func RecordEligibility(outcome string) {
	DefaultMetrics.EligibilityEvaluations.WithLabelValues(outcome).Inc()
}

// SetEligibleRecords updates the eligible records gauge.
func SetEligibleRecords(n int) {
	DefaultMetrics.EligibleRecords.Set(float64(n))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError records a transient RPC failure.
func RecordRPCError(method string) {
	DefaultMetrics.RPCErrors.WithLabelValues(method).Inc()
}

// RecordJobRun records a scheduled job run.
func RecordJobRun(job, status string, durationSeconds float64, finishedAt int64) {
	DefaultMetrics.JobRunsTotal.WithLabelValues(job, status).Inc()
	DefaultMetrics.JobDuration.WithLabelValues(job).Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessJob.WithLabelValues(job).Set(float64(finishedAt))
	}
}

// RecordSnapshotRows records rows written to a snapshot sink.
func RecordSnapshotRows(sink string, rows int) {
	DefaultMetrics.SnapshotRows.WithLabelValues(sink).Add(float64(rows))
}
