package docsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault/internal/config"
	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	"docvault/internal/domain/repositories"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/metrics"
	"docvault/internal/storage"
)

// supersedeReason is recorded on the version displaced by an upload
const supersedeReason = "substitution"

type fileService struct {
	fileRepo    docsysRepo.FileRepository
	versionRepo docsysRepo.VersionRepository
	folderRepo  docsysRepo.FolderRepository
	txManager   repositories.TransactionManager
	blobs       docsysSvc.BlobStore
	audit       docsysSvc.AuditLog
	validator   *ResourceValidator
	logger      *slog.Logger
}

// NewFileService creates a new file service
func NewFileService(
	fileRepo docsysRepo.FileRepository,
	versionRepo docsysRepo.VersionRepository,
	folderRepo docsysRepo.FolderRepository,
	txManager repositories.TransactionManager,
	blobs docsysSvc.BlobStore,
	audit docsysSvc.AuditLog,
	validator *ResourceValidator,
	logger *slog.Logger,
) docsysSvc.FileService {
	return &fileService{
		fileRepo:    fileRepo,
		versionRepo: versionRepo,
		folderRepo:  folderRepo,
		txManager:   txManager,
		blobs:       blobs,
		audit:       audit,
		validator:   validator,
		logger:      logger,
	}
}

// CreateFile stores version 1 of a new file
func (s *fileService) CreateFile(ctx context.Context, actor models.Actor, req *docsysSvc.CreateFileRequest) (file *models.File, err error) {
	defer func() { metrics.ObserveMutation("create_file", err) }()

	folderID, err := validateOptionalID("folder_id", req.FolderID)
	if err != nil {
		return nil, err
	}
	ownerContext := req.OwnerContext
	if ownerContext == "" {
		ownerContext = models.ContextGeneral
	}
	if !ownerContext.Valid() {
		return nil, domain.NewValidationError("unknown owner context %q", ownerContext)
	}

	return s.storeNewFile(ctx, actor, folderID, ownerContext, req.Upload, nil)
}

// ReplaceFile uploads a new file into the old one's folder and owner context
// and marks the old file superseded
func (s *fileService) ReplaceFile(ctx context.Context, actor models.Actor, fileID string, upload *docsysSvc.UploadedFile) (file *models.File, err error) {
	defer func() { metrics.ObserveMutation("replace_file", err) }()

	if err := ValidateID("file_id", fileID); err != nil {
		return nil, err
	}
	old, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := requireFileState(old, models.FileActive); err != nil {
		return nil, err
	}

	return s.storeNewFile(ctx, actor, old.FolderID, old.OwnerContext, upload, &old.ID)
}

// storeNewFile writes the content first, then commits the file, its first
// version and the audit event. replaces, when set, is superseded in the
// same transaction.
func (s *fileService) storeNewFile(
	ctx context.Context,
	actor models.Actor,
	folderID *string,
	ownerContext models.OwnerContext,
	upload *docsysSvc.UploadedFile,
	replaces *string,
) (*models.File, error) {
	name, err := validateUpload(upload)
	if err != nil {
		return nil, err
	}
	if _, err := s.validator.ActiveFolder(ctx, folderID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	file := &models.File{
		ID:             uuid.NewString(),
		OwnerContext:   ownerContext,
		FolderID:       folderID,
		OriginalName:   name,
		Extension:      storage.Extension(name),
		Size:           upload.Size,
		CurrentVersion: 1,
		State:          models.FileActive,
		UploadedBy:     actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	key, err := s.blobs.Put(ctx, storage.VersionKey(file.ID, 1, uuid.NewString(), file.Extension), upload.Content, upload.Size)
	if err != nil {
		return nil, blobError("put version", file.ID, err)
	}
	file.CurrentBlobKey = key

	version := &models.FileVersion{
		ID:            uuid.NewString(),
		FileID:        file.ID,
		VersionNumber: 1,
		BlobKey:       key,
		Size:          upload.Size,
		UploadedBy:    actor.ID,
		CreatedAt:     now,
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockShared); err != nil {
			return err
		}
		if folderID != nil {
			folder, err := s.folderRepo.GetByIDForUpdate(txCtx, *folderID)
			if err != nil {
				return err
			}
			if err := requireFolderState(folder, models.FolderActive); err != nil {
				return err
			}
		}

		if replaces != nil {
			old, err := s.fileRepo.GetByIDForUpdate(txCtx, *replaces)
			if err != nil {
				return err
			}
			if err := requireFileState(old, models.FileActive); err != nil {
				return err
			}
			old.State = models.FileSuperseded
			old.ReplacedByID = &file.ID
			old.UpdatedAt = now
			if err := s.fileRepo.Update(txCtx, old); err != nil {
				return err
			}
		}

		if err := s.fileRepo.Create(txCtx, file); err != nil {
			return err
		}
		if err := s.versionRepo.Create(txCtx, version); err != nil {
			return err
		}

		return s.audit.Record(txCtx, fileEvent(actor, file, &version.ID, &models.CreatedDetail{
			Name:         file.OriginalName,
			ParentID:     file.FolderID,
			OwnerContext: file.OwnerContext,
			BlobKey:      key,
			Size:         file.Size,
			Replaces:     replaces,
		}))
	})
	if err != nil {
		discardBlob(ctx, s.blobs, s.logger, key)
		return nil, err
	}

	s.logger.Info("file created",
		"id", file.ID,
		"name", file.OriginalName,
		"folder_id", file.FolderID,
		"owner_context", file.OwnerContext,
		"replaces", replaces,
		"actor_id", actor.ID,
	)
	return file, nil
}

// GetFile retrieves a file by ID in any state
func (s *fileService) GetFile(ctx context.Context, id string) (*models.File, error) {
	if err := ValidateID("file_id", id); err != nil {
		return nil, err
	}
	return s.fileRepo.GetByID(ctx, id)
}

// ListVersions lists every version of a file in version order
func (s *fileService) ListVersions(ctx context.Context, fileID string) ([]models.FileVersion, error) {
	if err := ValidateID("file_id", fileID); err != nil {
		return nil, err
	}
	if _, err := s.fileRepo.GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	return s.versionRepo.ListByFile(ctx, fileID)
}

// UploadVersion stores a new revision. The object is written before the
// transaction; the displaced object is moved to the trash prefix after it.
func (s *fileService) UploadVersion(ctx context.Context, actor models.Actor, fileID string, upload *docsysSvc.UploadedFile) (version *models.FileVersion, err error) {
	defer func() { metrics.ObserveMutation("upload_version", err) }()

	if err := ValidateID("file_id", fileID); err != nil {
		return nil, err
	}
	if err := validateContent(upload); err != nil {
		return nil, err
	}

	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := requireFileState(file, models.FileActive); err != nil {
		return nil, err
	}
	// Only advisory: the committed number is taken under the row lock
	expected, err := s.versionRepo.MaxVersionNumber(ctx, fileID)
	if err != nil {
		return nil, err
	}

	key, err := s.blobs.Put(ctx, storage.VersionKey(fileID, expected+1, uuid.NewString(), file.Extension), upload.Content, upload.Size)
	if err != nil {
		return nil, blobError("put version", fileID, err)
	}

	var superseded *models.FileVersion
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockShared); err != nil {
			return err
		}
		locked, err := s.fileRepo.GetByIDForUpdate(txCtx, fileID)
		if err != nil {
			return err
		}
		if err := requireFileState(locked, models.FileActive); err != nil {
			return err
		}
		if _, err := s.validator.ActiveFolder(txCtx, locked.FolderID); err != nil {
			return err
		}

		latest, err := s.versionRepo.MaxVersionNumber(txCtx, fileID)
		if err != nil {
			return err
		}
		superseded, err = s.versionRepo.GetByNumber(txCtx, fileID, locked.CurrentVersion)
		if err != nil {
			return fmt.Errorf("load current version: %w", err)
		}

		now := time.Now().UTC()
		version = &models.FileVersion{
			ID:            uuid.NewString(),
			FileID:        fileID,
			VersionNumber: latest + 1,
			BlobKey:       key,
			Size:          upload.Size,
			UploadedBy:    actor.ID,
			CreatedAt:     now,
		}
		if err := s.versionRepo.Create(txCtx, version); err != nil {
			return err
		}
		if err := s.versionRepo.MarkSuperseded(txCtx, superseded.ID, now); err != nil {
			return err
		}

		locked.CurrentBlobKey = key
		locked.CurrentVersion = version.VersionNumber
		locked.Size = version.Size
		locked.UpdatedAt = now
		if err := s.fileRepo.Update(txCtx, locked); err != nil {
			return err
		}

		return s.audit.Record(txCtx, fileEvent(actor, locked, &version.ID, &models.VersionUploadedDetail{
			VersionNumber: version.VersionNumber,
			BlobKey:       key,
			Size:          version.Size,
			Superseded: &models.SupersededObject{
				VersionID:     superseded.ID,
				VersionNumber: superseded.VersionNumber,
				BlobKey:       superseded.BlobKey,
				Reason:        supersedeReason,
			},
		}))
	})
	if err != nil {
		discardBlob(ctx, s.blobs, s.logger, key)
		return nil, err
	}

	s.trashSuperseded(ctx, superseded)

	s.logger.Info("file version uploaded",
		"file_id", fileID,
		"version", version.VersionNumber,
		"superseded_version", superseded.VersionNumber,
		"actor_id", actor.ID,
	)
	return version, nil
}

// trashSuperseded moves a displaced object under the trash prefix and points
// its version row at the new key. Failure leaves the object where the row
// already says it is, so it is only logged.
func (s *fileService) trashSuperseded(ctx context.Context, v *models.FileVersion) {
	if strings.HasPrefix(v.BlobKey, storage.TrashPrefix) {
		return
	}
	ctx = context.WithoutCancel(ctx)

	moved, err := s.blobs.MoveToTrash(ctx, v.BlobKey)
	if err != nil {
		metrics.ReconciliationInconsistencies.WithLabelValues(metrics.KindSupersedeMoveFailed).Inc()
		s.logger.Warn("superseded object not moved to trash",
			"version_id", v.ID,
			"blob_key", v.BlobKey,
			"error", err,
		)
		return
	}
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.versionRepo.RelocateBlob(txCtx, v.ID, moved)
	})
	if err != nil {
		metrics.ReconciliationInconsistencies.WithLabelValues(metrics.KindSupersedeMoveFailed).Inc()
		s.logger.Error("version row points at a moved object, reconciliation required",
			"version_id", v.ID,
			"old_key", v.BlobKey,
			"new_key", moved,
			"error", err,
		)
	}
}

// retrash puts an object that a rolled back version restore took out of the
// trash back where the version row still points
func (s *fileService) retrash(ctx context.Context, versionID, key string) {
	if _, err := s.blobs.MoveToTrash(context.WithoutCancel(ctx), key); err != nil {
		metrics.ReconciliationInconsistencies.WithLabelValues(metrics.KindRestoreRollbackFailed).Inc()
		s.logger.Error("version row points at the trash but its object was restored, reconciliation required",
			"version_id", versionID,
			"blob_key", key,
			"error", err,
		)
	}
}

// RestoreVersion points the file back at an older version. A superseded
// object is taken back out of the trash first. Version rows are never
// deleted or renumbered.
func (s *fileService) RestoreVersion(ctx context.Context, actor models.Actor, versionID string) (file *models.File, err error) {
	defer func() { metrics.ObserveMutation("restore_version", err) }()

	if err := ValidateID("version_id", versionID); err != nil {
		return nil, err
	}
	target, err := s.versionRepo.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	var untrashed string
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		file, err = s.fileRepo.GetByIDForUpdate(txCtx, target.FileID)
		if err != nil {
			return err
		}
		if err := requireFileState(file, models.FileActive); err != nil {
			return err
		}
		if file.CurrentVersion == target.VersionNumber {
			return nil
		}

		// Re-read: the key may have been relocated since the pre-check
		target, err = s.versionRepo.GetByID(txCtx, versionID)
		if err != nil {
			return err
		}
		if strings.HasPrefix(target.BlobKey, storage.TrashPrefix) {
			restored, err := s.blobs.RestoreFromTrash(txCtx, target.BlobKey)
			if err != nil {
				return blobError("restore version", target.BlobKey, err)
			}
			untrashed = restored
			if err := s.versionRepo.RelocateBlob(txCtx, target.ID, restored); err != nil {
				return err
			}
			target.BlobKey = restored
		}

		from := file.CurrentVersion
		file.CurrentBlobKey = target.BlobKey
		file.CurrentVersion = target.VersionNumber
		file.Size = target.Size
		file.UpdatedAt = time.Now().UTC()
		if err := s.fileRepo.Update(txCtx, file); err != nil {
			return err
		}

		return s.audit.Record(txCtx, fileEvent(actor, file, &target.ID, &models.VersionRestoredDetail{
			FromVersion: from,
			ToVersion:   target.VersionNumber,
			BlobKey:     target.BlobKey,
		}))
	})
	if err != nil {
		if untrashed != "" {
			s.retrash(ctx, versionID, untrashed)
		}
		return nil, err
	}

	s.logger.Info("file version restored",
		"file_id", file.ID,
		"version", file.CurrentVersion,
		"actor_id", actor.ID,
	)
	return file, nil
}

// TrashFile soft-deletes an active file
func (s *fileService) TrashFile(ctx context.Context, actor models.Actor, id string) (file *models.File, err error) {
	defer func() { metrics.ObserveMutation("trash_file", err) }()

	if err := ValidateID("file_id", id); err != nil {
		return nil, err
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		file, err = s.fileRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := requireFileState(file, models.FileActive); err != nil {
			return err
		}

		now := time.Now().UTC()
		file.State = models.FileTrashed
		file.TrashedBy = &actor.ID
		file.TrashedAt = &now
		file.UpdatedAt = now
		if err := s.fileRepo.Update(txCtx, file); err != nil {
			return err
		}

		return s.audit.Record(txCtx, fileEvent(actor, file, nil, &models.TrashedDetail{}))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file trashed", "id", file.ID, "actor_id", actor.ID)
	return file, nil
}

// RestoreFile brings a trashed file back. Its folder, if any, must be active.
func (s *fileService) RestoreFile(ctx context.Context, actor models.Actor, id string) (file *models.File, err error) {
	defer func() { metrics.ObserveMutation("restore_file", err) }()

	if err := ValidateID("file_id", id); err != nil {
		return nil, err
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.folderRepo.LockTree(txCtx, docsysRepo.TreeLockShared); err != nil {
			return err
		}
		file, err = s.fileRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := requireFileState(file, models.FileTrashed); err != nil {
			return err
		}
		if file.FolderID != nil {
			folder, err := s.folderRepo.GetByIDForUpdate(txCtx, *file.FolderID)
			if err != nil {
				return err
			}
			if err := requireFolderState(folder, models.FolderActive); err != nil {
				return err
			}
		}

		file.State = models.FileActive
		file.TrashedBy = nil
		file.TrashedAt = nil
		file.UpdatedAt = time.Now().UTC()
		if err := s.fileRepo.Update(txCtx, file); err != nil {
			return err
		}

		return s.audit.Record(txCtx, fileEvent(actor, file, nil, &models.RestoredDetail{}))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("file restored", "id", file.ID, "actor_id", actor.ID)
	return file, nil
}

// OpenDownload opens a version's content (0 = current) and records the read.
// Superseded files stay readable for history.
func (s *fileService) OpenDownload(ctx context.Context, actor models.Actor, fileID string, versionNumber int) (dl *docsysSvc.Download, err error) {
	if err := ValidateID("file_id", fileID); err != nil {
		return nil, err
	}
	if versionNumber < 0 {
		return nil, domain.NewValidationError("version must be positive")
	}

	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.State != models.FileActive && file.State != models.FileSuperseded {
		return nil, domain.NewInvariantError("file %s is %s and cannot be downloaded", file.ID, file.State)
	}
	if versionNumber == 0 {
		versionNumber = file.CurrentVersion
	}
	version, err := s.versionRepo.GetByNumber(ctx, fileID, versionNumber)
	if err != nil {
		return nil, err
	}

	content, err := s.blobs.Open(ctx, version.BlobKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Error("version object missing from blob store",
				"file_id", fileID,
				"version", versionNumber,
				"blob_key", version.BlobKey,
			)
		}
		return nil, blobError("open version", version.ID, err)
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.audit.Record(txCtx, fileEvent(actor, file, &version.ID, &models.DownloadedDetail{
			VersionNumber: version.VersionNumber,
			BlobKey:       version.BlobKey,
		}))
	})
	if err != nil {
		content.Close()
		return nil, err
	}

	return &docsysSvc.Download{File: file, Version: version, Content: content}, nil
}

// MarkFilePurged flips a trashed file to purged inside the caller's
// transaction
func (s *fileService) MarkFilePurged(ctx context.Context, actor models.Actor, id string) (file *models.File, err error) {
	if err := ValidateID("file_id", id); err != nil {
		return nil, err
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		file, err = s.fileRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if file.State == models.FilePurged {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("file %s is already purged", file.ID),
				ResourceType: "file",
				ResourceID:   file.ID,
			}
		}
		if err := requireFileState(file, models.FileTrashed); err != nil {
			return err
		}

		now := time.Now().UTC()
		file.State = models.FilePurged
		file.PurgedBy = &actor.ID
		file.PurgedAt = &now
		file.UpdatedAt = now
		return s.fileRepo.Update(txCtx, file)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// validateUpload checks an upload's name, content and size
func validateUpload(upload *docsysSvc.UploadedFile) (string, error) {
	if err := validateContent(upload); err != nil {
		return "", err
	}
	return ValidateFileName(upload.Filename)
}

func validateContent(upload *docsysSvc.UploadedFile) error {
	if upload == nil || upload.Content == nil {
		return domain.NewValidationError("content is required")
	}
	if upload.Size < 0 || upload.Size > config.MaxUploadSize {
		return domain.NewValidationError("size must be between 0 and %d bytes", config.MaxUploadSize)
	}
	return nil
}
