package docsystem

import (
	"context"

	"docvault/internal/domain/models/docsystem"
)

// AuditFilter narrows an audit trail query
type AuditFilter struct {
	FileID   *string
	FolderID *string
	Limit    int
}

// AuditRepository is the append-only store of audit events
type AuditRepository interface {
	// Insert appends an event
	Insert(ctx context.Context, event *docsystem.AuditEvent) error

	// List returns events matching the filter, newest first
	List(ctx context.Context, filter AuditFilter) ([]docsystem.AuditEvent, error)
}
