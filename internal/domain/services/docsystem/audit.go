package docsystem

import (
	"context"

	"docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
)

// AuditLog records every mutation. Record runs inside the caller's
// transaction; its failure aborts the mutation.
type AuditLog interface {
	Record(ctx context.Context, event *docsystem.AuditEvent) error
	ListEvents(ctx context.Context, filter docsysRepo.AuditFilter) ([]docsystem.AuditEvent, error)
}
