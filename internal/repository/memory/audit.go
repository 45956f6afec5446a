package memory

import (
	"context"

	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
)

const defaultAuditLimit = 100

// AuditRepository implements docsystem.AuditRepository on a Store
type AuditRepository struct {
	store *Store
}

// NewAuditRepository creates an audit repository over store
func NewAuditRepository(store *Store) docsysRepo.AuditRepository {
	return &AuditRepository{store: store}
}

func (r *AuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, *event)
	return nil
}

// List walks the log backwards so results are newest first
func (r *AuditRepository) List(ctx context.Context, filter docsysRepo.AuditFilter) ([]models.AuditEvent, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	out := []models.AuditEvent{}
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.audit[i]
		if filter.FileID != nil && (e.FileID == nil || *e.FileID != *filter.FileID) {
			continue
		}
		if filter.FolderID != nil && (e.FolderID == nil || *e.FolderID != *filter.FolderID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
