// Package metrics holds the Prometheus collectors of the document repository.
// Collectors register on the default registry at init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// MutationsTotal counts service mutations by operation and outcome
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_mutations_total",
			Help: "Document repository mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// BlobOperationsTotal counts blob store calls by operation and outcome
	BlobOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_blob_operations_total",
			Help: "Blob store operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// BlobOperationDuration observes blob store latency
	BlobOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docvault_blob_operation_duration_seconds",
			Help:    "Blob store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ReconciliationInconsistencies counts states where the blob store and
	// the metadata disagree and an out-of-band sweep must repair them
	ReconciliationInconsistencies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_reconciliation_inconsistencies_total",
			Help: "Blob/metadata inconsistencies left for reconciliation, by kind",
		},
		[]string{"kind"},
	)

	// PathCacheRequests counts path cache lookups by result (hit, miss)
	PathCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_path_cache_requests_total",
			Help: "Folder path cache lookups by result",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal counts HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes HTTP latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docvault_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Inconsistency kinds
const (
	KindPurgeCommitFailed   = "purge_commit_failed"
	KindSupersedeMoveFailed = "supersede_move_failed"
	KindOrphanCleanupFailed = "orphan_cleanup_failed"

	// A rolled back version restore could not put its object back in the trash
	KindRestoreRollbackFailed = "restore_rollback_failed"
)

// ObserveMutation records the outcome of one service mutation
func ObserveMutation(operation string, err error) {
	MutationsTotal.WithLabelValues(operation, Outcome(err)).Inc()
}

// Outcome maps an error to the outcome label
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
