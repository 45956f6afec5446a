package docsystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	"docvault/internal/domain/repositories"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/metrics"
	"docvault/internal/storage"
)

type folderService struct {
	folderRepo docsysRepo.FolderRepository
	fileRepo   docsysRepo.FileRepository
	txManager  repositories.TransactionManager
	blobs      docsysSvc.BlobStore
	anchors    docsysSvc.AnchorRegistry
	audit      docsysSvc.AuditLog
	cache      docsysSvc.PathCache
	validator  *ResourceValidator
	logger     *slog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(
	folderRepo docsysRepo.FolderRepository,
	fileRepo docsysRepo.FileRepository,
	txManager repositories.TransactionManager,
	blobs docsysSvc.BlobStore,
	anchors docsysSvc.AnchorRegistry,
	audit docsysSvc.AuditLog,
	cache docsysSvc.PathCache,
	validator *ResourceValidator,
	logger *slog.Logger,
) docsysSvc.FolderService {
	return &folderService{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
		txManager:  txManager,
		blobs:      blobs,
		anchors:    anchors,
		audit:      audit,
		cache:      cache,
		validator:  validator,
		logger:     logger,
	}
}

// CreateFolder creates a folder. The placeholder object is written before
// the metadata insert and removed again if the insert does not commit.
func (s *folderService) CreateFolder(ctx context.Context, actor models.Actor, req *docsysSvc.CreateFolderRequest) (folder *models.Folder, err error) {
	defer func() { metrics.ObserveMutation("create_folder", err) }()

	name, err := ValidateFolderName(req.Name)
	if err != nil {
		return nil, err
	}
	parentID, err := validateOptionalID("parent_id", req.ParentID)
	if err != nil {
		return nil, err
	}

	parent, err := s.validator.ActiveFolder(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if existing, err := s.folderRepo.FindSibling(ctx, parentID, name, ""); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, folderConflict(name, existing.ID)
	}

	parentPath := ""
	if parent != nil {
		parentPath = parent.VirtualPath
	}
	id := uuid.NewString()
	placeholder := storage.PlaceholderKey(models.JoinPath(parentPath, name), id)
	if _, err := s.blobs.Put(ctx, placeholder, bytes.NewReader(nil), 0); err != nil {
		return nil, blobError("put placeholder", placeholder, err)
	}

	now := time.Now().UTC()
	folder = &models.Folder{
		ID:             id,
		ParentID:       parentID,
		Name:           name,
		State:          models.FolderActive,
		PlaceholderKey: placeholder,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockExclusive); err != nil {
			return err
		}
		// Re-read the parent under lock; its path may have moved since the pre-check
		folder.VirtualPath = models.JoinPath("", name)
		if parentID != nil {
			locked, err := s.folderRepo.GetByIDForUpdate(txCtx, *parentID)
			if err != nil {
				return err
			}
			if err := requireFolderState(locked, models.FolderActive); err != nil {
				return err
			}
			folder.VirtualPath = models.JoinPath(locked.VirtualPath, name)
		}

		if existing, err := s.folderRepo.FindSibling(txCtx, parentID, name, ""); err != nil {
			return err
		} else if existing != nil {
			return folderConflict(name, existing.ID)
		}

		if err := s.folderRepo.Create(txCtx, folder); err != nil {
			return err
		}

		return s.audit.Record(txCtx, folderEvent(actor, folder.ID, &models.CreatedDetail{
			Name:        folder.Name,
			VirtualPath: folder.VirtualPath,
			ParentID:    folder.ParentID,
		}))
	})
	if err != nil {
		discardBlob(ctx, s.blobs, s.logger, placeholder)
		return nil, err
	}

	s.cache.InvalidatePrefix(folder.VirtualPath)

	s.logger.Info("folder created",
		"id", folder.ID,
		"name", folder.Name,
		"parent_id", folder.ParentID,
		"virtual_path", folder.VirtualPath,
		"actor_id", actor.ID,
	)

	return folder, nil
}

// GetFolder retrieves a folder by ID in any state
func (s *folderService) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	if err := ValidateID("folder_id", id); err != nil {
		return nil, err
	}
	return s.folderRepo.GetByID(ctx, id)
}

// GetFolderByPath resolves a virtual path through the path cache
func (s *folderService) GetFolderByPath(ctx context.Context, virtualPath string) (*models.Folder, error) {
	p, err := NormalizeVirtualPath(virtualPath)
	if err != nil {
		return nil, err
	}

	if folder, ok := s.cache.Get(p); ok {
		return folder, nil
	}

	folder, err := s.folderRepo.GetByPath(ctx, p)
	if err != nil {
		return nil, err
	}
	s.cache.Set(p, folder)
	return folder, nil
}

// ListChildren lists child folders and files of parentID (nil = root) in state
func (s *folderService) ListChildren(ctx context.Context, parentID *string, state models.FolderState) (*docsysSvc.FolderContents, error) {
	if state == "" {
		state = models.FolderActive
	}
	if !state.Valid() {
		return nil, domain.NewValidationError("unknown folder state %q", state)
	}
	parentID, err := validateOptionalID("folder_id", parentID)
	if err != nil {
		return nil, err
	}

	contents := &docsysSvc.FolderContents{}
	if parentID != nil {
		contents.Folder, err = s.folderRepo.GetByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
	}

	contents.Folders, err = s.folderRepo.ListChildren(ctx, parentID, state)
	if err != nil {
		return nil, fmt.Errorf("list child folders: %w", err)
	}
	contents.Files, err = s.fileRepo.ListByFolder(ctx, parentID, models.FileState(state))
	if err != nil {
		return nil, fmt.Errorf("list child files: %w", err)
	}
	return contents, nil
}

// RenameFolder renames an active folder and rewrites its subtree paths.
// Folders holding files that protected records point at cannot be renamed.
func (s *folderService) RenameFolder(ctx context.Context, actor models.Actor, id, newName string) (folder *models.Folder, err error) {
	defer func() { metrics.ObserveMutation("rename_folder", err) }()

	if err := ValidateID("folder_id", id); err != nil {
		return nil, err
	}
	name, err := ValidateFolderName(newName)
	if err != nil {
		return nil, err
	}

	var oldPath string
	var changed bool
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockExclusive); err != nil {
			return err
		}
		folder, err = s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		oldPath, changed, err = s.rename(txCtx, actor, folder, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.repointed(folder, "folder renamed", actor, oldPath)
	}
	return folder, nil
}

// MoveFolder reparents a folder. Folders holding files that protected
// records point at cannot be moved.
func (s *folderService) MoveFolder(ctx context.Context, actor models.Actor, id string, newParentID *string) (folder *models.Folder, err error) {
	defer func() { metrics.ObserveMutation("move_folder", err) }()

	if err := ValidateID("folder_id", id); err != nil {
		return nil, err
	}
	newParentID, err = validateMoveTarget(id, newParentID)
	if err != nil {
		return nil, err
	}

	var oldPath string
	var changed bool
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockExclusive); err != nil {
			return err
		}
		folder, err = s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		oldPath, changed, err = s.move(txCtx, actor, folder, newParentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.repointed(folder, "folder moved", actor, oldPath)
	}
	return folder, nil
}

// UpdateFolder renames and/or moves a folder in one transaction. Either both
// changes commit or neither does.
func (s *folderService) UpdateFolder(ctx context.Context, actor models.Actor, id string, req *docsysSvc.UpdateFolderRequest) (folder *models.Folder, err error) {
	defer func() { metrics.ObserveMutation("update_folder", err) }()

	if err := ValidateID("folder_id", id); err != nil {
		return nil, err
	}
	if req.Name == nil && !req.Move {
		return nil, domain.NewValidationError("nothing to update: provide name and/or parent_id")
	}

	var name string
	if req.Name != nil {
		if name, err = ValidateFolderName(*req.Name); err != nil {
			return nil, err
		}
	}
	var newParentID *string
	if req.Move {
		if newParentID, err = validateMoveTarget(id, req.ParentID); err != nil {
			return nil, err
		}
	}

	var stale []string
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		stale = stale[:0]
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockExclusive); err != nil {
			return err
		}
		folder, err = s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if req.Name != nil {
			oldPath, changed, err := s.rename(txCtx, actor, folder, name)
			if err != nil {
				return err
			}
			if changed {
				stale = append(stale, oldPath)
			}
		}
		if req.Move {
			oldPath, changed, err := s.move(txCtx, actor, folder, newParentID)
			if err != nil {
				return err
			}
			if changed {
				stale = append(stale, oldPath)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		s.repointed(folder, "folder updated", actor, stale...)
	}
	return folder, nil
}

// rename applies a rename to a folder locked by the caller's transaction
func (s *folderService) rename(txCtx context.Context, actor models.Actor, folder *models.Folder, name string) (string, bool, error) {
	if err := requireFolderState(folder, models.FolderActive); err != nil {
		return "", false, err
	}
	if folder.Name == name {
		return "", false, nil
	}
	if err := s.requireUnanchored(txCtx, folder.VirtualPath, "renamed"); err != nil {
		return "", false, err
	}

	if existing, err := s.folderRepo.FindSibling(txCtx, folder.ParentID, name, folder.ID); err != nil {
		return "", false, err
	} else if existing != nil {
		return "", false, folderConflict(name, existing.ID)
	}

	oldName := folder.Name
	oldPath := folder.VirtualPath
	newPath := models.JoinPath(parentPathOf(folder), name)
	now := time.Now().UTC()

	folder.Name = name
	folder.UpdatedAt = now
	if err := s.folderRepo.UpdatePlacement(txCtx, folder); err != nil {
		return "", false, err
	}
	rewritten, err := s.folderRepo.RewriteSubtreePath(txCtx, oldPath, newPath, now)
	if err != nil {
		return "", false, err
	}
	folder.VirtualPath = newPath

	return oldPath, true, s.audit.Record(txCtx, folderEvent(actor, folder.ID, &models.RenamedDetail{
		OldName:          oldName,
		NewName:          name,
		OldPath:          oldPath,
		NewPath:          newPath,
		RewrittenFolders: rewritten,
	}))
}

// move reparents a folder locked by the caller's transaction. The
// destination row is locked after the subject.
func (s *folderService) move(txCtx context.Context, actor models.Actor, folder *models.Folder, newParentID *string) (string, bool, error) {
	destPath := ""
	if newParentID != nil {
		dest, err := s.folderRepo.GetByIDForUpdate(txCtx, *newParentID)
		if err != nil {
			return "", false, err
		}
		descendants, err := s.folderRepo.DescendantIDs(txCtx, folder.ID)
		if err != nil {
			return "", false, fmt.Errorf("collect descendants: %w", err)
		}
		if slices.Contains(descendants, dest.ID) {
			return "", false, domain.NewInvariantError("cannot move folder %s into its own subtree", folder.VirtualPath)
		}
		if err := requireFolderState(dest, models.FolderActive); err != nil {
			return "", false, err
		}
		destPath = dest.VirtualPath
	}

	if err := requireFolderState(folder, models.FolderActive); err != nil {
		return "", false, err
	}
	if sameID(folder.ParentID, newParentID) {
		return "", false, nil
	}
	if err := s.requireUnanchored(txCtx, folder.VirtualPath, "moved"); err != nil {
		return "", false, err
	}

	if existing, err := s.folderRepo.FindSibling(txCtx, newParentID, folder.Name, folder.ID); err != nil {
		return "", false, err
	} else if existing != nil {
		return "", false, folderConflict(folder.Name, existing.ID)
	}

	oldParentID := folder.ParentID
	oldPath := folder.VirtualPath
	newPath := models.JoinPath(destPath, folder.Name)
	now := time.Now().UTC()

	folder.ParentID = newParentID
	folder.UpdatedAt = now
	if err := s.folderRepo.UpdatePlacement(txCtx, folder); err != nil {
		return "", false, err
	}
	rewritten, err := s.folderRepo.RewriteSubtreePath(txCtx, oldPath, newPath, now)
	if err != nil {
		return "", false, err
	}
	folder.VirtualPath = newPath

	return oldPath, true, s.audit.Record(txCtx, folderEvent(actor, folder.ID, &models.MovedDetail{
		OldParentID:      oldParentID,
		NewParentID:      newParentID,
		OldPath:          oldPath,
		NewPath:          newPath,
		RewrittenFolders: rewritten,
	}))
}

// requireUnanchored rejects path changes for folders whose subtree holds a
// file that a protected record points at
func (s *folderService) requireUnanchored(ctx context.Context, virtualPath, verb string) error {
	anchored, err := s.anchors.HasProtectedAnchors(ctx, virtualPath)
	if err != nil {
		return fmt.Errorf("check protected anchors: %w", err)
	}
	if anchored {
		return domain.NewInvariantError("folder %s holds files referenced by protected records and cannot be %s", virtualPath, verb)
	}
	return nil
}

// repointed drops cached entries for every path the folder left and for its
// new path, then logs the change
func (s *folderService) repointed(folder *models.Folder, msg string, actor models.Actor, oldPaths ...string) {
	for _, p := range oldPaths {
		s.cache.InvalidatePrefix(p)
	}
	s.cache.InvalidatePrefix(folder.VirtualPath)

	s.logger.Info(msg,
		"id", folder.ID,
		"old_path", oldPaths[0],
		"new_path", folder.VirtualPath,
		"actor_id", actor.ID,
	)
}

func validateMoveTarget(id string, newParentID *string) (*string, error) {
	newParentID, err := validateOptionalID("parent_id", newParentID)
	if err != nil {
		return nil, err
	}
	if newParentID != nil && *newParentID == id {
		return nil, domain.NewInvariantError("cannot move folder %s into itself", id)
	}
	return newParentID, nil
}

// TrashFolder flips an active subtree to trashed. Files keep their state and
// become unreachable through the trashed folder.
func (s *folderService) TrashFolder(ctx context.Context, actor models.Actor, id string) (folder *models.Folder, err error) {
	defer func() { metrics.ObserveMutation("trash_folder", err) }()

	if err := ValidateID("folder_id", id); err != nil {
		return nil, err
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockExclusive); err != nil {
			return err
		}
		locked, err := s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := requireFolderState(locked, models.FolderActive); err != nil {
			return err
		}

		affected, err := s.folderRepo.TrashSubtree(txCtx, locked.VirtualPath, actor.ID, time.Now().UTC())
		if err != nil {
			return err
		}

		if err := s.audit.Record(txCtx, folderEvent(actor, locked.ID, &models.TrashedDetail{
			VirtualPath:     locked.VirtualPath,
			AffectedFolders: affected,
		})); err != nil {
			return err
		}

		folder, err = s.folderRepo.GetByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePrefix(folder.VirtualPath)

	s.logger.Info("folder trashed",
		"id", folder.ID,
		"virtual_path", folder.VirtualPath,
		"actor_id", actor.ID,
	)
	return folder, nil
}

// RestoreFolder brings a trashed subtree back under its parent, or under the
// root when the parent is gone or no longer active. A restore that changes the
// path is refused for subtrees holding protected files.
func (s *folderService) RestoreFolder(ctx context.Context, actor models.Actor, id string) (folder *models.Folder, err error) {
	defer func() { metrics.ObserveMutation("restore_folder", err) }()

	if err := ValidateID("folder_id", id); err != nil {
		return nil, err
	}

	var oldPath string
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockExclusive); err != nil {
			return err
		}
		locked, err := s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := requireFolderState(locked, models.FolderTrashed); err != nil {
			return err
		}

		parentPath, toRoot, err := s.restoreTarget(txCtx, locked)
		if err != nil {
			return err
		}
		targetParent := locked.ParentID
		if toRoot {
			targetParent = nil
		}

		if existing, err := s.folderRepo.FindSibling(txCtx, targetParent, locked.Name, locked.ID); err != nil {
			return err
		} else if existing != nil {
			return folderConflict(locked.Name, existing.ID)
		}

		now := time.Now().UTC()
		oldPath = locked.VirtualPath
		newPath := models.JoinPath(parentPath, locked.Name)
		if newPath != oldPath {
			if err := s.requireUnanchored(txCtx, oldPath, "restored to "+newPath); err != nil {
				return err
			}
		}

		if toRoot {
			locked.ParentID = nil
			locked.UpdatedAt = now
			if err := s.folderRepo.UpdatePlacement(txCtx, locked); err != nil {
				return err
			}
		}
		if newPath != oldPath {
			if _, err := s.folderRepo.RewriteSubtreePath(txCtx, oldPath, newPath, now); err != nil {
				return err
			}
		}
		affected, err := s.folderRepo.RestoreSubtree(txCtx, newPath, now)
		if err != nil {
			return err
		}

		if err := s.audit.Record(txCtx, folderEvent(actor, locked.ID, &models.RestoredDetail{
			OldPath:         oldPath,
			NewPath:         newPath,
			RestoredToRoot:  toRoot,
			AffectedFolders: affected,
		})); err != nil {
			return err
		}

		folder, err = s.folderRepo.GetByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePrefix(oldPath)
	s.cache.InvalidatePrefix(folder.VirtualPath)

	s.logger.Info("folder restored",
		"id", folder.ID,
		"old_path", oldPath,
		"virtual_path", folder.VirtualPath,
		"actor_id", actor.ID,
	)
	return folder, nil
}

// restoreTarget returns the parent path a trashed folder is restored under
// and whether it falls back to the root
func (s *folderService) restoreTarget(ctx context.Context, folder *models.Folder) (string, bool, error) {
	if folder.ParentID == nil {
		return "", false, nil
	}
	parent, err := s.folderRepo.GetByIDForUpdate(ctx, *folder.ParentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", true, nil
		}
		return "", false, err
	}
	if parent.State != models.FolderActive {
		return "", true, nil
	}
	return parent.VirtualPath, false, nil
}

// MarkFolderPurged flips a trashed subtree and its files to purged. It runs
// in the caller's transaction; blob objects must already be gone.
func (s *folderService) MarkFolderPurged(ctx context.Context, actor models.Actor, id string) (*docsysSvc.PurgeSummary, error) {
	if err := ValidateID("folder_id", id); err != nil {
		return nil, err
	}

	summary := &docsysSvc.PurgeSummary{}
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockExclusive); err != nil {
			return err
		}
		locked, err := s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if locked.State == models.FolderPurged {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("folder %s is already purged", locked.ID),
				ResourceType: "folder",
				ResourceID:   locked.ID,
			}
		}
		if err := requireFolderState(locked, models.FolderTrashed); err != nil {
			return err
		}

		now := time.Now().UTC()
		// Files first: they are matched through their non-purged folders
		summary.PurgedFiles, err = s.fileRepo.PurgeInSubtree(txCtx, locked.VirtualPath, actor.ID, now)
		if err != nil {
			return err
		}
		summary.PurgedFolders, err = s.folderRepo.PurgeSubtree(txCtx, locked.VirtualPath, actor.ID, now)
		if err != nil {
			return err
		}

		summary.Folder, err = s.folderRepo.GetByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func folderConflict(name, existingID string) *domain.ConflictError {
	return &domain.ConflictError{
		Message:      fmt.Sprintf("a folder named %q already exists in this location", name),
		ResourceType: "folder",
		ResourceID:   existingID,
	}
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
