package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
)

// FileRepository implements docsystem.FileRepository on a Store
type FileRepository struct {
	store *Store
}

// NewFileRepository creates a file repository over store
func NewFileRepository(store *Store) docsysRepo.FileRepository {
	return &FileRepository{store: store}
}

func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[file.ID]; ok {
		return &domain.ConflictError{Message: fmt.Sprintf("file %s already exists", file.ID), ResourceType: "file", ResourceID: file.ID}
	}
	if file.FolderID != nil {
		if _, ok := s.folders[*file.FolderID]; !ok {
			return &domain.NotFoundError{ResourceType: "folder", ResourceID: *file.FolderID}
		}
	}
	s.files[file.ID] = cloneFile(file)
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, &domain.NotFoundError{ResourceType: "file", ResourceID: id}
	}
	return cloneFile(f), nil
}

// GetByIDForUpdate is GetByID: transactions are already serialized
func (r *FileRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.File, error) {
	return r.GetByID(ctx, id)
}

func (r *FileRepository) Update(ctx context.Context, file *models.File) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.files[file.ID]
	if !ok {
		return &domain.NotFoundError{ResourceType: "file", ResourceID: file.ID}
	}
	updated := cloneFile(file)
	// identity columns are immutable
	updated.OwnerContext = current.OwnerContext
	updated.FolderID = current.FolderID
	updated.OriginalName = current.OriginalName
	updated.Extension = current.Extension
	updated.UploadedBy = current.UploadedBy
	updated.CreatedAt = current.CreatedAt
	s.files[file.ID] = updated
	return nil
}

func (r *FileRepository) ListByFolder(ctx context.Context, folderID *string, state models.FileState) ([]models.File, error) {
	return r.collect(func(f *models.File) bool {
		return f.State == state && sameParent(f.FolderID, folderID)
	}), nil
}

func (r *FileRepository) ListByState(ctx context.Context, state models.FileState) ([]models.File, error) {
	return r.collect(func(f *models.File) bool { return f.State == state }), nil
}

func (r *FileRepository) ListInSubtree(ctx context.Context, virtualPath string) ([]models.File, error) {
	folders := r.subtreeFolderIDs(virtualPath)
	return r.collect(func(f *models.File) bool {
		return f.State != models.FilePurged && f.FolderID != nil && folders[*f.FolderID]
	}), nil
}

func (r *FileRepository) PurgeInSubtree(ctx context.Context, virtualPath, actorID string, at time.Time) (int64, error) {
	folders := r.subtreeFolderIDs(virtualPath)

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, f := range s.files {
		if f.State != models.FilePurged && f.FolderID != nil && folders[*f.FolderID] {
			f.State = models.FilePurged
			f.PurgedBy = &actorID
			f.PurgedAt = &at
			f.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (r *FileRepository) ExistsWithContextUnder(ctx context.Context, virtualPath string, contexts []models.OwnerContext) (bool, error) {
	folders := r.subtreeFolderIDs(virtualPath)

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.files {
		if f.State != models.FilePurged && f.FolderID != nil && folders[*f.FolderID] && slices.Contains(contexts, f.OwnerContext) {
			return true, nil
		}
	}
	return false, nil
}

// subtreeFolderIDs returns the ids of non-purged folders at or under virtualPath
func (r *FileRepository) subtreeFolderIDs(virtualPath string) map[string]bool {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]bool)
	for _, f := range s.folders {
		if f.State != models.FolderPurged && models.IsWithin(f.VirtualPath, virtualPath) {
			ids[f.ID] = true
		}
	}
	return ids
}

func (r *FileRepository) collect(match func(*models.File) bool) []models.File {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.File{}
	for _, f := range s.files {
		if match(f) {
			out = append(out, *cloneFile(f))
		}
	}
	slices.SortFunc(out, func(a, b models.File) int {
		if c := strings.Compare(a.OriginalName, b.OriginalName); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}
