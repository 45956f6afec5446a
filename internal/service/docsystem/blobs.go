package docsystem

import (
	"context"
	"errors"
	"log/slog"

	"docvault/internal/domain"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/metrics"
	"docvault/internal/storage"
)

const blobDependency = "blob store"

// blobError maps a blob store failure to a domain error. A missing object is
// a NotFoundError; anything else is a retryable DependencyError.
func blobError(op, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return &domain.NotFoundError{ResourceType: "object", ResourceID: key}
	}
	return &domain.DependencyError{Dependency: blobDependency, Operation: op, Err: err}
}

// discardBlob deletes an object written for a mutation that did not commit.
// Failure leaves an unreferenced object behind; it is logged and counted,
// never returned, so the caller still sees the original error.
func discardBlob(ctx context.Context, blobs docsysSvc.BlobStore, logger *slog.Logger, key string) {
	// The request context may be what failed the transaction
	if err := blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		metrics.ReconciliationInconsistencies.WithLabelValues(metrics.KindOrphanCleanupFailed).Inc()
		logger.Error("orphaned blob left after failed mutation",
			"blob_key", key,
			"error", err,
		)
	}
}
