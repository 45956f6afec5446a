package docsystem

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"docvault/internal/auth"
	"docvault/internal/cache"
	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/repository/memory"
	blobmem "docvault/internal/storage/memory"
)

var (
	editor = models.Actor{ID: "user-editor", ClientIP: "10.0.0.7", UserAgent: "docvault-test"}
	admin  = models.Actor{ID: "user-admin", Privileged: true}
)

// harness wires every service over the in-memory store and blob store
type harness struct {
	store *memory.Store
	blobs *blobmem.BlobStore
	cache *cache.PathCache

	folderRepo  docsysRepo.FolderRepository
	fileRepo    docsysRepo.FileRepository
	versionRepo docsysRepo.VersionRepository

	folders   docsysSvc.FolderService
	files     docsysSvc.FileService
	lifecycle docsysSvc.LifecycleService
	tree      docsysSvc.TreeService
	audit     docsysSvc.AuditLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	blobs := blobmem.NewBlobStore()
	pathCache := cache.NewPathCache(64, time.Minute)

	folderRepo := memory.NewFolderRepository(store)
	fileRepo := memory.NewFileRepository(store)
	versionRepo := memory.NewVersionRepository(store)
	txManager := memory.NewTransactionManager(store)

	auditLog := NewAuditLog(memory.NewAuditRepository(store), logger)
	validator := NewResourceValidator(folderRepo)
	anchors := NewProtectedAnchorRegistry(fileRepo, nil)

	folders := NewFolderService(folderRepo, fileRepo, txManager, blobs, anchors, auditLog, pathCache, validator, logger)
	files := NewFileService(fileRepo, versionRepo, folderRepo, txManager, blobs, auditLog, validator, logger)
	lifecycle := NewLifecycleService(folders, files, folderRepo, fileRepo, versionRepo, txManager, blobs, auditLog,
		auth.NewRoleAuthorizer(nil), pathCache, logger)

	return &harness{
		store:       store,
		blobs:       blobs,
		cache:       pathCache,
		folderRepo:  folderRepo,
		fileRepo:    fileRepo,
		versionRepo: versionRepo,
		folders:     folders,
		files:       files,
		lifecycle:   lifecycle,
		tree:        NewTreeService(folderRepo, fileRepo, logger),
		audit:       auditLog,
	}
}

func (h *harness) folder(t *testing.T, name string, parent *models.Folder) *models.Folder {
	t.Helper()
	req := &docsysSvc.CreateFolderRequest{Name: name}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	f, err := h.folders.CreateFolder(context.Background(), editor, req)
	require.NoError(t, err)
	return f
}

func (h *harness) file(t *testing.T, folder *models.Folder, ownerContext models.OwnerContext, name, content string) *models.File {
	t.Helper()
	req := &docsysSvc.CreateFileRequest{OwnerContext: ownerContext, Upload: upload(name, content)}
	if folder != nil {
		req.FolderID = &folder.ID
	}
	f, err := h.files.CreateFile(context.Background(), editor, req)
	require.NoError(t, err)
	return f
}

func (h *harness) reloadFolder(t *testing.T, id string) *models.Folder {
	t.Helper()
	f, err := h.folderRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return f
}

func (h *harness) reloadFile(t *testing.T, id string) *models.File {
	t.Helper()
	f, err := h.fileRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return f
}

func (h *harness) eventCount() int {
	return len(h.store.AuditEvents())
}

func (h *harness) lastEvent(t *testing.T) models.AuditEvent {
	t.Helper()
	events := h.store.AuditEvents()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func upload(name, content string) *docsysSvc.UploadedFile {
	return &docsysSvc.UploadedFile{
		Filename: name,
		Content:  strings.NewReader(content),
		Size:     int64(len(content)),
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
