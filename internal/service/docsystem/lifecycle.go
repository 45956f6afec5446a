package docsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	"docvault/internal/domain/repositories"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	"docvault/internal/domain/services"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/metrics"
)

// lifecycleService coordinates the two-stage delete. Purge runs inside one
// transaction that holds the tree lock and the subject's row lock: re-check
// trashed, collect keys, delete objects, then mark purged. A restore racing
// the purge waits for it and then sees purged. Metadata never claims purged
// while objects remain.
type lifecycleService struct {
	folders     docsysSvc.FolderService
	files       docsysSvc.FileService
	folderRepo  docsysRepo.FolderRepository
	fileRepo    docsysRepo.FileRepository
	versionRepo docsysRepo.VersionRepository
	txManager   repositories.TransactionManager
	blobs       docsysSvc.BlobStore
	audit       docsysSvc.AuditLog
	authorizer  services.ActorAuthorizer
	cache       docsysSvc.PathCache
	logger      *slog.Logger
}

// NewLifecycleService creates a new lifecycle coordinator
func NewLifecycleService(
	folders docsysSvc.FolderService,
	files docsysSvc.FileService,
	folderRepo docsysRepo.FolderRepository,
	fileRepo docsysRepo.FileRepository,
	versionRepo docsysRepo.VersionRepository,
	txManager repositories.TransactionManager,
	blobs docsysSvc.BlobStore,
	audit docsysSvc.AuditLog,
	authorizer services.ActorAuthorizer,
	cache docsysSvc.PathCache,
	logger *slog.Logger,
) docsysSvc.LifecycleService {
	return &lifecycleService{
		folders:     folders,
		files:       files,
		folderRepo:  folderRepo,
		fileRepo:    fileRepo,
		versionRepo: versionRepo,
		txManager:   txManager,
		blobs:       blobs,
		audit:       audit,
		authorizer:  authorizer,
		cache:       cache,
		logger:      logger,
	}
}

// TrashFolder soft-deletes a folder subtree. No object is touched.
func (s *lifecycleService) TrashFolder(ctx context.Context, actor models.Actor, id string) (*models.Folder, error) {
	return s.folders.TrashFolder(ctx, actor, id)
}

// RestoreFolder brings a trashed subtree back
func (s *lifecycleService) RestoreFolder(ctx context.Context, actor models.Actor, id string) (*models.Folder, error) {
	return s.folders.RestoreFolder(ctx, actor, id)
}

// PurgeFolder deletes every object under a trashed folder and marks the
// subtree and its files purged
func (s *lifecycleService) PurgeFolder(ctx context.Context, actor models.Actor, id string) (folder *models.Folder, err error) {
	defer func() { metrics.ObserveMutation("purge_folder", err) }()

	if err := s.authorizer.RequirePrivileged(ctx, actor); err != nil {
		return nil, err
	}
	if err := ValidateID("folder_id", id); err != nil {
		return nil, err
	}

	var (
		target  *models.Folder
		summary *docsysSvc.PurgeSummary
		keys    []string
		deleted bool
	)
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockExclusive); err != nil {
			return err
		}
		locked, err := s.folderRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := purgeableFolder(locked); err != nil {
			return err
		}
		target = locked

		keys, err = s.subtreeKeys(txCtx, target.VirtualPath)
		if err != nil {
			return err
		}
		if err := s.deleteObjects(txCtx, keys); err != nil {
			return err
		}
		deleted = true

		summary, err = s.folders.MarkFolderPurged(txCtx, actor, id)
		if err != nil {
			return err
		}
		return s.audit.Record(txCtx, folderEvent(actor, id, &models.PurgedDetail{
			VirtualPath:    target.VirtualPath,
			PurgedFolders:  summary.PurgedFolders,
			PurgedFiles:    summary.PurgedFiles,
			DeletedObjects: len(keys),
		}))
	})
	if err != nil {
		if deleted {
			return nil, s.afterDelete("folder", id, keys, err)
		}
		return nil, err
	}

	s.cache.InvalidatePrefix(target.VirtualPath)

	s.logger.Info("folder purged",
		"id", id,
		"virtual_path", target.VirtualPath,
		"purged_folders", summary.PurgedFolders,
		"purged_files", summary.PurgedFiles,
		"deleted_objects", len(keys),
		"actor_id", actor.ID,
	)
	return summary.Folder, nil
}

// PurgeFile deletes every version object of a trashed file and marks it
// purged
func (s *lifecycleService) PurgeFile(ctx context.Context, actor models.Actor, id string) (file *models.File, err error) {
	defer func() { metrics.ObserveMutation("purge_file", err) }()

	if err := s.authorizer.RequirePrivileged(ctx, actor); err != nil {
		return nil, err
	}
	if err := ValidateID("file_id", id); err != nil {
		return nil, err
	}

	var (
		keys    []string
		deleted bool
	)
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockShared); err != nil {
			return err
		}
		target, err := s.fileRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if target.State == models.FilePurged {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("file %s is already purged", target.ID),
				ResourceType: "file",
				ResourceID:   target.ID,
			}
		}
		if err := requireFileState(target, models.FileTrashed); err != nil {
			return err
		}

		keys, err = s.fileKeys(txCtx, target)
		if err != nil {
			return err
		}
		if err := s.deleteObjects(txCtx, keys); err != nil {
			return err
		}
		deleted = true

		file, err = s.files.MarkFilePurged(txCtx, actor, id)
		if err != nil {
			return err
		}
		return s.audit.Record(txCtx, fileEvent(actor, file, nil, &models.PurgedDetail{
			PurgedFiles:    1,
			DeletedObjects: len(keys),
		}))
	})
	if err != nil {
		if deleted {
			return nil, s.afterDelete("file", id, keys, err)
		}
		return nil, err
	}

	s.logger.Info("file purged",
		"id", id,
		"deleted_objects", len(keys),
		"actor_id", actor.ID,
	)
	return file, nil
}

// subtreeKeys collects the placeholder of every folder and every version
// object of every file at or under virtualPath
func (s *lifecycleService) subtreeKeys(ctx context.Context, virtualPath string) ([]string, error) {
	folders, err := s.folderRepo.ListSubtree(ctx, virtualPath)
	if err != nil {
		return nil, fmt.Errorf("list subtree folders: %w", err)
	}
	files, err := s.fileRepo.ListInSubtree(ctx, virtualPath)
	if err != nil {
		return nil, fmt.Errorf("list subtree files: %w", err)
	}

	var keys keySet
	for i := range folders {
		keys.add(folders[i].PlaceholderKey)
	}
	for i := range files {
		fileKeys, err := s.fileKeys(ctx, &files[i])
		if err != nil {
			return nil, err
		}
		keys.add(fileKeys...)
	}
	return keys.list, nil
}

func (s *lifecycleService) fileKeys(ctx context.Context, file *models.File) ([]string, error) {
	versions, err := s.versionRepo.ListByFile(ctx, file.ID)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", file.ID, err)
	}

	var keys keySet
	keys.add(file.CurrentBlobKey)
	for i := range versions {
		keys.add(versions[i].BlobKey)
	}
	return keys.list, nil
}

// deleteObjects removes keys in order and stops at the first failure. The
// transaction rolls back so the purge can be retried.
func (s *lifecycleService) deleteObjects(ctx context.Context, keys []string) error {
	for i, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("purge aborted, object delete failed",
				"blob_key", key,
				"deleted_before_failure", i,
				"error", err,
			)
			return blobError("delete", key, err)
		}
	}
	return nil
}

// afterDelete classifies a metadata failure that happened after objects were
// already deleted. A concurrent purge that won the race is a plain conflict;
// anything else leaves the stores disagreeing.
func (s *lifecycleService) afterDelete(kind, id string, keys []string, err error) error {
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return err
	}

	metrics.ReconciliationInconsistencies.WithLabelValues(metrics.KindPurgeCommitFailed).Inc()
	s.logger.Error("purge metadata commit failed after objects were deleted",
		"kind", kind,
		"id", id,
		"deleted_objects", len(keys),
		"blob_keys", keys,
		"error", err,
	)
	return fmt.Errorf("%w: purge %s %s: %w", domain.ErrReconciliationRequired, kind, id, err)
}

func purgeableFolder(folder *models.Folder) error {
	if folder.State == models.FolderPurged {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("folder %s is already purged", folder.ID),
			ResourceType: "folder",
			ResourceID:   folder.ID,
		}
	}
	return requireFolderState(folder, models.FolderTrashed)
}

// keySet is an insertion-ordered set of non-empty object keys
type keySet struct {
	seen map[string]struct{}
	list []string
}

func (k *keySet) add(keys ...string) {
	if k.seen == nil {
		k.seen = make(map[string]struct{})
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := k.seen[key]; ok {
			continue
		}
		k.seen[key] = struct{}{}
		k.list = append(k.list, key)
	}
}
