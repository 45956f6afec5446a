package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
)

// VersionRepository implements docsystem.VersionRepository on a Store
type VersionRepository struct {
	store *Store
}

// NewVersionRepository creates a version repository over store
func NewVersionRepository(store *Store) docsysRepo.VersionRepository {
	return &VersionRepository{store: store}
}

func (r *VersionRepository) Create(ctx context.Context, v *models.FileVersion) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[v.FileID]; !ok {
		return &domain.NotFoundError{ResourceType: "file", ResourceID: v.FileID}
	}
	for _, existing := range s.versions {
		if existing.FileID == v.FileID && existing.VersionNumber == v.VersionNumber {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("version %d of file %s already exists", v.VersionNumber, v.FileID),
				ResourceType: "version",
				ResourceID:   existing.ID,
			}
		}
	}
	s.versions[v.ID] = cloneVersion(v)
	return nil
}

func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.FileVersion, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.versions[id]
	if !ok {
		return nil, &domain.NotFoundError{ResourceType: "version", ResourceID: id}
	}
	return cloneVersion(v), nil
}

func (r *VersionRepository) GetByNumber(ctx context.Context, fileID string, number int) (*models.FileVersion, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.versions {
		if v.FileID == fileID && v.VersionNumber == number {
			return cloneVersion(v), nil
		}
	}
	return nil, &domain.NotFoundError{ResourceType: "version", ResourceID: fmt.Sprintf("%s@%d", fileID, number)}
}

func (r *VersionRepository) ListByFile(ctx context.Context, fileID string) ([]models.FileVersion, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.FileVersion{}
	for _, v := range s.versions {
		if v.FileID == fileID {
			out = append(out, *cloneVersion(v))
		}
	}
	slices.SortFunc(out, func(a, b models.FileVersion) int { return a.VersionNumber - b.VersionNumber })
	return out, nil
}

func (r *VersionRepository) MaxVersionNumber(ctx context.Context, fileID string) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	maxNumber := 0
	for _, v := range s.versions {
		if v.FileID == fileID && v.VersionNumber > maxNumber {
			maxNumber = v.VersionNumber
		}
	}
	return maxNumber, nil
}

func (r *VersionRepository) MarkSuperseded(ctx context.Context, id string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[id]
	if !ok {
		return &domain.NotFoundError{ResourceType: "version", ResourceID: id}
	}
	if v.SupersededAt == nil {
		v.SupersededAt = &at
	}
	return nil
}

func (r *VersionRepository) RelocateBlob(ctx context.Context, id, newKey string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[id]
	if !ok {
		return &domain.NotFoundError{ResourceType: "version", ResourceID: id}
	}
	v.BlobKey = newKey
	return nil
}
