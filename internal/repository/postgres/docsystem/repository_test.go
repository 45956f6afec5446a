package docsystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"docvault/internal/auth"
	"docvault/internal/cache"
	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/repository/postgres"
	service "docvault/internal/service/docsystem"
	blobmem "docvault/internal/storage/memory"
)

const testPrefix = "test_"

// setupTestDB starts a Postgres container and applies the migrations.
// Skipped unless TEST_INTEGRATION is set.
func setupTestDB(t *testing.T) *postgres.RepositoryConfig {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("docvault_test"),
		tcpostgres.WithUsername("docvault"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, postgres.Migrate(dsn, testPrefix, logger))
	// Applying twice is a no-op
	require.NoError(t, postgres.Migrate(dsn, testPrefix, logger))

	pool, err := postgres.CreateConnectionPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(testPrefix),
		Logger: logger,
	}
}

func testFolder(name string, parent *models.Folder) *models.Folder {
	now := time.Now().UTC().Truncate(time.Microsecond)
	f := &models.Folder{
		ID:             uuid.NewString(),
		Name:           name,
		State:          models.FolderActive,
		PlaceholderKey: "folders/" + name,
		CreatedBy:      "tester",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if parent == nil {
		f.VirtualPath = models.JoinPath("", name)
	} else {
		f.ParentID = &parent.ID
		f.VirtualPath = models.JoinPath(parent.VirtualPath, name)
	}
	return f
}

func TestFolderRepositoryIntegration(t *testing.T) {
	cfg := setupTestDB(t)
	repo := NewFolderRepository(cfg)
	ctx := context.Background()

	a := testFolder("a_%", nil)
	b := testFolder("b", a)
	c := testFolder("c", b)
	lookalike := testFolder("a_%x", nil)
	for _, f := range []*models.Folder{a, b, c, lookalike} {
		require.NoError(t, repo.Create(ctx, f))
	}

	t.Run("sibling uniqueness", func(t *testing.T) {
		err := repo.Create(ctx, testFolder("b", a))
		assert.ErrorIs(t, err, domain.ErrConflict)

		sib, err := repo.FindSibling(ctx, a.ParentID, "a_%", "")
		require.NoError(t, err)
		require.NotNil(t, sib)
		assert.Equal(t, a.ID, sib.ID)
	})

	t.Run("descendants", func(t *testing.T) {
		ids, err := repo.DescendantIDs(ctx, a.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a.ID, b.ID, c.ID}, ids)
	})

	t.Run("subtree rewrite escapes like patterns", func(t *testing.T) {
		n, err := repo.RewriteSubtreePath(ctx, "/a_%", "/z", time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		got, err := repo.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "/z/b/c", got.VirtualPath)

		untouched, err := repo.GetByID(ctx, lookalike.ID)
		require.NoError(t, err)
		assert.Equal(t, "/a_%x", untouched.VirtualPath)
	})

	t.Run("trash restore purge", func(t *testing.T) {
		n, err := repo.TrashSubtree(ctx, "/z/b", "tester", time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		trashed, err := repo.ListByState(ctx, models.FolderTrashed)
		require.NoError(t, err)
		assert.Len(t, trashed, 2)

		n, err = repo.RestoreSubtree(ctx, "/z", time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		n, err = repo.PurgeSubtree(ctx, "/z", "admin", time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		_, err = repo.GetByPath(ctx, "/z")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		// Purged names are free again
		assert.NoError(t, repo.Create(ctx, testFolder("z", nil)))
	})
}

func TestVersionRepositoryIntegration(t *testing.T) {
	cfg := setupTestDB(t)
	files := NewFileRepository(cfg)
	versions := NewVersionRepository(cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	file := &models.File{
		ID:             uuid.NewString(),
		OwnerContext:   models.ContextGeneral,
		OriginalName:   "a.txt",
		Extension:      ".txt",
		CurrentBlobKey: "k1",
		CurrentVersion: 1,
		State:          models.FileActive,
		UploadedBy:     "tester",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, files.Create(ctx, file))

	v1 := &models.FileVersion{ID: uuid.NewString(), FileID: file.ID, VersionNumber: 1, BlobKey: "k1", UploadedBy: "tester", CreatedAt: now}
	require.NoError(t, versions.Create(ctx, v1))

	err := versions.Create(ctx, &models.FileVersion{ID: uuid.NewString(), FileID: file.ID, VersionNumber: 1, BlobKey: "k2", UploadedBy: "tester", CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrConflict)

	highest, err := versions.MaxVersionNumber(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, highest)

	require.NoError(t, versions.MarkSuperseded(ctx, v1.ID, now))
	require.NoError(t, versions.RelocateBlob(ctx, v1.ID, "trash/k1"))
	got, err := versions.GetByNumber(ctx, file.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "trash/k1", got.BlobKey)
	assert.NotNil(t, got.SupersededAt)
}

// TestServicesOnPostgres runs the end-to-end flows against the real schema
func TestServicesOnPostgres(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	folderRepo := NewFolderRepository(cfg)
	fileRepo := NewFileRepository(cfg)
	versionRepo := NewVersionRepository(cfg)
	txManager := postgres.NewTransactionManager(cfg.Pool, cfg.Logger)
	blobs := blobmem.NewBlobStore()
	pathCache := cache.NewPathCache(16, time.Minute)

	auditLog := service.NewAuditLog(NewAuditRepository(cfg), cfg.Logger)
	validator := service.NewResourceValidator(folderRepo)
	folders := service.NewFolderService(folderRepo, fileRepo, txManager, blobs,
		service.NewProtectedAnchorRegistry(fileRepo, nil), auditLog, pathCache, validator, cfg.Logger)
	fileSvc := service.NewFileService(fileRepo, versionRepo, folderRepo, txManager, blobs, auditLog, validator, cfg.Logger)
	lifecycle := service.NewLifecycleService(folders, fileSvc, folderRepo, fileRepo, versionRepo, txManager, blobs,
		auditLog, auth.NewRoleAuthorizer(nil), pathCache, cfg.Logger)

	actor := models.Actor{ID: "user-1"}
	admin := models.Actor{ID: "admin-1", Privileged: true}

	docs, err := folders.CreateFolder(ctx, actor, &docsysSvc.CreateFolderRequest{Name: "Docs"})
	require.NoError(t, err)
	invoices, err := folders.CreateFolder(ctx, actor, &docsysSvc.CreateFolderRequest{Name: "Invoices", ParentID: &docs.ID})
	require.NoError(t, err)

	_, err = folders.RenameFolder(ctx, actor, docs.ID, "Documentos")
	require.NoError(t, err)
	got, err := folderRepo.GetByID(ctx, invoices.ID)
	require.NoError(t, err)
	assert.Equal(t, "/Documentos/Invoices", got.VirtualPath)

	_, err = folders.MoveFolder(ctx, actor, docs.ID, &invoices.ID)
	assert.ErrorIs(t, err, domain.ErrInvariant)

	content := "first"
	file, err := fileSvc.CreateFile(ctx, actor, &docsysSvc.CreateFileRequest{
		FolderID: &invoices.ID,
		Upload:   &docsysSvc.UploadedFile{Filename: "a.txt", Content: strings.NewReader(content), Size: int64(len(content))},
	})
	require.NoError(t, err)
	_, err = fileSvc.UploadVersion(ctx, actor, file.ID, &docsysSvc.UploadedFile{Filename: "a.txt", Content: strings.NewReader("second"), Size: 6})
	require.NoError(t, err)

	_, err = lifecycle.TrashFolder(ctx, actor, docs.ID)
	require.NoError(t, err)
	_, err = lifecycle.PurgeFolder(ctx, admin, docs.ID)
	require.NoError(t, err)
	assert.Empty(t, blobs.Keys())

	purged, err := fileRepo.GetByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FilePurged, purged.State)

	events, err := auditLog.ListEvents(ctx, docsysRepo.AuditFilter{FolderID: &docs.ID})
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, models.ActionPurged, events[0].Action)
	detail, ok := events[0].Detail.(*models.PurgedDetail)
	require.True(t, ok)
	assert.EqualValues(t, 1, detail.PurgedFiles)
}

// TestConcurrentFolderMovesOnPostgres races cross moves, renames and
// moves-under against each other. Whatever interleaving wins, the tree must
// stay acyclic and every stored path must match its parent chain.
func TestConcurrentFolderMovesOnPostgres(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	folderRepo := NewFolderRepository(cfg)
	fileRepo := NewFileRepository(cfg)
	txManager := postgres.NewTransactionManager(cfg.Pool, cfg.Logger)
	folders := service.NewFolderService(folderRepo, fileRepo, txManager, blobmem.NewBlobStore(),
		service.NewProtectedAnchorRegistry(fileRepo, nil), service.NewAuditLog(NewAuditRepository(cfg), cfg.Logger),
		cache.NewPathCache(16, time.Minute), service.NewResourceValidator(folderRepo), cfg.Logger)
	actor := models.Actor{ID: "user-1"}

	create := func(name string, parent *models.Folder) *models.Folder {
		req := &docsysSvc.CreateFolderRequest{Name: name}
		if parent != nil {
			req.ParentID = &parent.ID
		}
		f, err := folders.CreateFolder(ctx, actor, req)
		require.NoError(t, err)
		return f
	}

	for round := range 10 {
		a := create(fmt.Sprintf("a%d", round), nil)
		b := create(fmt.Sprintf("b%d", round), nil)
		x := create("x", a)
		c := create(fmt.Sprintf("c%d", round), nil)

		ops := []func() error{
			func() error { _, err := folders.MoveFolder(ctx, actor, a.ID, &b.ID); return err },
			func() error { _, err := folders.MoveFolder(ctx, actor, b.ID, &a.ID); return err },
			func() error { _, err := folders.RenameFolder(ctx, actor, a.ID, fmt.Sprintf("r%d", round)); return err },
			func() error { _, err := folders.MoveFolder(ctx, actor, c.ID, &x.ID); return err },
		}

		errs := make(chan error, len(ops))
		var wg sync.WaitGroup
		for _, op := range ops {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- op()
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil && !errors.Is(err, domain.ErrInvariant) {
				t.Errorf("round %d: unexpected error: %v", round, err)
			}
		}
	}

	all, err := folderRepo.ListByState(ctx, models.FolderActive)
	require.NoError(t, err)
	byID := make(map[string]models.Folder, len(all))
	for _, f := range all {
		byID[f.ID] = f
	}

	for _, f := range all {
		if f.ParentID == nil {
			assert.Equal(t, models.JoinPath("", f.Name), f.VirtualPath)
			continue
		}
		parent, ok := byID[*f.ParentID]
		require.True(t, ok, "parent of %s is not active", f.VirtualPath)
		assert.Equal(t, models.JoinPath(parent.VirtualPath, f.Name), f.VirtualPath)

		// Walking up must reach the root
		cur, steps := f, 0
		for cur.ParentID != nil {
			cur = byID[*cur.ParentID]
			steps++
			require.LessOrEqual(t, steps, len(all), "cycle through %s", f.ID)
		}
	}
}
