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

// FolderRepository implements docsystem.FolderRepository on a Store
type FolderRepository struct {
	store *Store
}

// NewFolderRepository creates a folder repository over store
func NewFolderRepository(store *Store) docsysRepo.FolderRepository {
	return &FolderRepository{store: store}
}

func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.folders[folder.ID]; ok {
		return &domain.ConflictError{Message: fmt.Sprintf("folder %s already exists", folder.ID), ResourceType: "folder", ResourceID: folder.ID}
	}
	if folder.ParentID != nil {
		if _, ok := s.folders[*folder.ParentID]; !ok {
			return &domain.NotFoundError{ResourceType: "folder", ResourceID: *folder.ParentID}
		}
	}
	if existing := r.siblingLocked(folder.ParentID, folder.Name, folder.ID); existing != nil {
		return siblingConflict(folder.Name, existing.ID)
	}

	s.folders[folder.ID] = cloneFolder(folder)
	return nil
}

func (r *FolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.folders[id]
	if !ok {
		return nil, &domain.NotFoundError{ResourceType: "folder", ResourceID: id}
	}
	return cloneFolder(f), nil
}

// LockTree only checks that it runs inside a transaction: transactions
// are already serialized
func (r *FolderRepository) LockTree(ctx context.Context, mode docsysRepo.TreeLockMode) error {
	if ctx.Value(txMarkerKey{}) == nil {
		return fmt.Errorf("lock tree: no transaction in context")
	}
	return nil
}

// GetByIDForUpdate is GetByID: transactions are already serialized
func (r *FolderRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Folder, error) {
	return r.GetByID(ctx, id)
}

func (r *FolderRepository) GetByPath(ctx context.Context, virtualPath string) (*models.Folder, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.folders {
		if f.State != models.FolderPurged && f.VirtualPath == virtualPath {
			return cloneFolder(f), nil
		}
	}
	return nil, &domain.NotFoundError{ResourceType: "folder", ResourceID: virtualPath}
}

func (r *FolderRepository) FindSibling(ctx context.Context, parentID *string, name, excludeID string) (*models.Folder, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f := r.siblingLocked(parentID, name, excludeID); f != nil {
		return cloneFolder(f), nil
	}
	return nil, nil
}

func (r *FolderRepository) ListChildren(ctx context.Context, parentID *string, state models.FolderState) ([]models.Folder, error) {
	return r.collect(func(f *models.Folder) bool {
		return f.State == state && sameParent(f.ParentID, parentID)
	}, byName), nil
}

func (r *FolderRepository) ListByState(ctx context.Context, state models.FolderState) ([]models.Folder, error) {
	return r.collect(func(f *models.Folder) bool { return f.State == state }, byPath), nil
}

func (r *FolderRepository) ListSubtree(ctx context.Context, virtualPath string) ([]models.Folder, error) {
	return r.collect(func(f *models.Folder) bool {
		return f.State != models.FolderPurged && models.IsWithin(f.VirtualPath, virtualPath)
	}, byPath), nil
}

// DescendantIDs walks parent edges breadth-first from id
func (r *FolderRepository) DescendantIDs(ctx context.Context, id string) ([]string, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.folders[id]; !ok {
		return []string{}, nil
	}

	children := make(map[string][]string)
	for _, f := range s.folders {
		if f.ParentID != nil {
			children[*f.ParentID] = append(children[*f.ParentID], f.ID)
		}
	}

	seen := map[string]bool{id: true}
	ids := []string{id}
	for queue := []string{id}; len(queue) > 0; queue = queue[1:] {
		for _, child := range children[queue[0]] {
			if !seen[child] {
				seen[child] = true
				ids = append(ids, child)
				queue = append(queue, child)
			}
		}
	}
	return ids, nil
}

func (r *FolderRepository) UpdatePlacement(ctx context.Context, folder *models.Folder) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.folders[folder.ID]
	if !ok {
		return &domain.NotFoundError{ResourceType: "folder", ResourceID: folder.ID}
	}
	if current.State != models.FolderPurged {
		if existing := r.siblingLocked(folder.ParentID, folder.Name, folder.ID); existing != nil {
			return siblingConflict(folder.Name, existing.ID)
		}
	}

	current.ParentID = cloneString(folder.ParentID)
	current.Name = folder.Name
	current.UpdatedAt = folder.UpdatedAt
	return nil
}

func (r *FolderRepository) RewriteSubtreePath(ctx context.Context, oldPath, newPath string, at time.Time) (int64, error) {
	return r.update(func(f *models.Folder) bool {
		return f.State != models.FolderPurged && models.IsWithin(f.VirtualPath, oldPath)
	}, func(f *models.Folder) {
		f.VirtualPath = models.RebasePath(f.VirtualPath, oldPath, newPath)
		f.UpdatedAt = at
	}), nil
}

func (r *FolderRepository) TrashSubtree(ctx context.Context, virtualPath, actorID string, at time.Time) (int64, error) {
	return r.update(func(f *models.Folder) bool {
		return f.State == models.FolderActive && models.IsWithin(f.VirtualPath, virtualPath)
	}, func(f *models.Folder) {
		f.State = models.FolderTrashed
		f.TrashedBy = &actorID
		f.TrashedAt = &at
		f.UpdatedAt = at
	}), nil
}

func (r *FolderRepository) RestoreSubtree(ctx context.Context, virtualPath string, at time.Time) (int64, error) {
	return r.update(func(f *models.Folder) bool {
		return f.State == models.FolderTrashed && models.IsWithin(f.VirtualPath, virtualPath)
	}, func(f *models.Folder) {
		f.State = models.FolderActive
		f.TrashedBy = nil
		f.TrashedAt = nil
		f.UpdatedAt = at
	}), nil
}

func (r *FolderRepository) PurgeSubtree(ctx context.Context, virtualPath, actorID string, at time.Time) (int64, error) {
	return r.update(func(f *models.Folder) bool {
		return f.State != models.FolderPurged && models.IsWithin(f.VirtualPath, virtualPath)
	}, func(f *models.Folder) {
		f.State = models.FolderPurged
		f.PurgedBy = &actorID
		f.PurgedAt = &at
		f.UpdatedAt = at
	}), nil
}

// siblingLocked finds a non-purged folder named name under parentID. Caller holds mu.
func (r *FolderRepository) siblingLocked(parentID *string, name, excludeID string) *models.Folder {
	for _, f := range r.store.folders {
		if f.ID != excludeID && f.State != models.FolderPurged && f.Name == name && sameParent(f.ParentID, parentID) {
			return f
		}
	}
	return nil
}

func (r *FolderRepository) collect(match func(*models.Folder) bool, less func(a, b models.Folder) int) []models.Folder {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Folder{}
	for _, f := range s.folders {
		if match(f) {
			out = append(out, *cloneFolder(f))
		}
	}
	slices.SortFunc(out, less)
	return out
}

func (r *FolderRepository) update(match func(*models.Folder) bool, apply func(*models.Folder)) int64 {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, f := range s.folders {
		if match(f) {
			apply(f)
			n++
		}
	}
	return n
}

func siblingConflict(name, existingID string) error {
	return &domain.ConflictError{
		Message:      fmt.Sprintf("folder '%s' already exists in this location", name),
		ResourceType: "folder",
		ResourceID:   existingID,
	}
}

func byName(a, b models.Folder) int { return strings.Compare(a.Name, b.Name) }
func byPath(a, b models.Folder) int { return strings.Compare(a.VirtualPath, b.VirtualPath) }
