package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
)

func newFolder(name string, parent *models.Folder) *models.Folder {
	f := &models.Folder{
		ID:        uuid.NewString(),
		Name:      name,
		State:     models.FolderActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if parent == nil {
		f.VirtualPath = models.JoinPath("", name)
	} else {
		f.ParentID = &parent.ID
		f.VirtualPath = models.JoinPath(parent.VirtualPath, name)
	}
	return f
}

func TestExecTxRollsBackOnError(t *testing.T) {
	store := NewStore()
	repo := NewFolderRepository(store)
	tm := NewTransactionManager(store)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tm.ExecTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, repo.Create(txCtx, newFolder("a", nil)))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.Stats()["folders"])
}

func TestExecTxCommitHook(t *testing.T) {
	store := NewStore()
	repo := NewFolderRepository(store)
	tm := NewTransactionManager(store)
	ctx := context.Background()

	calls := 0
	store.SetCommitHook(func(context.Context) error {
		calls++
		return errors.New("commit refused")
	})

	err := tm.ExecTx(ctx, func(txCtx context.Context) error {
		// A nested call joins the outer transaction and does not commit on its own
		return tm.ExecTx(txCtx, func(inner context.Context) error {
			return repo.Create(inner, newFolder("a", nil))
		})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit transaction")
	assert.Equal(t, 1, calls)
	assert.Zero(t, store.Stats()["folders"])

	store.SetCommitHook(nil)
	require.NoError(t, tm.ExecTx(ctx, func(txCtx context.Context) error {
		return repo.Create(txCtx, newFolder("a", nil))
	}))
	assert.Equal(t, 1, store.Stats()["folders"])
}

func TestExecTxCancelledContext(t *testing.T) {
	store := NewStore()
	repo := NewFolderRepository(store)
	tm := NewTransactionManager(store)

	ctx, cancel := context.WithCancel(context.Background())
	err := tm.ExecTx(ctx, func(txCtx context.Context) error {
		cancel()
		return repo.Create(txCtx, newFolder("a", nil))
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Stats()["folders"])
}

func TestFolderRepositorySiblingUniqueness(t *testing.T) {
	store := NewStore()
	repo := NewFolderRepository(store)
	ctx := context.Background()

	a := newFolder("a", nil)
	require.NoError(t, repo.Create(ctx, a))

	err := repo.Create(ctx, newFolder("a", nil))
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Same name under a different parent is fine
	require.NoError(t, repo.Create(ctx, newFolder("a", a)))

	_, err = repo.PurgeSubtree(ctx, "/a", "admin", time.Now())
	require.NoError(t, err)
	assert.NoError(t, repo.Create(ctx, newFolder("a", nil)))
}

func TestFolderRepositorySubtreeOperations(t *testing.T) {
	store := NewStore()
	repo := NewFolderRepository(store)
	ctx := context.Background()

	a := newFolder("a", nil)
	b := newFolder("b", a)
	c := newFolder("c", b)
	ab := newFolder("ab", nil)
	for _, f := range []*models.Folder{a, b, c, ab} {
		require.NoError(t, repo.Create(ctx, f))
	}

	ids, err := repo.DescendantIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID, c.ID}, ids)

	n, err := repo.RewriteSubtreePath(ctx, "/a", "/z", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	got, err := repo.GetByPath(ctx, "/z/b/c")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	got, err = repo.GetByPath(ctx, "/ab")
	require.NoError(t, err)
	assert.Equal(t, ab.ID, got.ID)

	n, err = repo.TrashSubtree(ctx, "/z/b", "u", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	trashed, err := repo.ListByState(ctx, models.FolderTrashed)
	require.NoError(t, err)
	require.Len(t, trashed, 2)
	assert.Equal(t, "/z/b", trashed[0].VirtualPath)

	n, err = repo.RestoreSubtree(ctx, "/z", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestFileRepositoryProtectedContexts(t *testing.T) {
	store := NewStore()
	folders := NewFolderRepository(store)
	files := NewFileRepository(store)
	ctx := context.Background()

	a := newFolder("a", nil)
	b := newFolder("b", a)
	require.NoError(t, folders.Create(ctx, a))
	require.NoError(t, folders.Create(ctx, b))

	file := &models.File{
		ID:           uuid.NewString(),
		FolderID:     &b.ID,
		OwnerContext: models.ContextSignature,
		OriginalName: "sig.png",
		State:        models.FileActive,
	}
	require.NoError(t, files.Create(ctx, file))

	found, err := files.ExistsWithContextUnder(ctx, "/a", models.DefaultProtectedContexts)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = files.ExistsWithContextUnder(ctx, "/a", []models.OwnerContext{models.ContextQuotation})
	require.NoError(t, err)
	assert.False(t, found)

	n, err := files.PurgeInSubtree(ctx, "/a", "admin", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	found, err = files.ExistsWithContextUnder(ctx, "/a", models.DefaultProtectedContexts)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestVersionRepositoryUniqueNumbers(t *testing.T) {
	store := NewStore()
	files := NewFileRepository(store)
	versions := NewVersionRepository(store)
	ctx := context.Background()

	file := &models.File{ID: uuid.NewString(), OriginalName: "a.txt", State: models.FileActive}
	require.NoError(t, files.Create(ctx, file))

	v1 := &models.FileVersion{ID: uuid.NewString(), FileID: file.ID, VersionNumber: 1, BlobKey: "k1"}
	require.NoError(t, versions.Create(ctx, v1))
	err := versions.Create(ctx, &models.FileVersion{ID: uuid.NewString(), FileID: file.ID, VersionNumber: 1, BlobKey: "k2"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	highest, err := versions.MaxVersionNumber(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, highest)

	at := time.Now()
	require.NoError(t, versions.MarkSuperseded(ctx, v1.ID, at))
	require.NoError(t, versions.MarkSuperseded(ctx, v1.ID, at.Add(time.Hour)))
	got, err := versions.GetByID(ctx, v1.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SupersededAt)
	assert.True(t, got.SupersededAt.Equal(at))

	require.NoError(t, versions.RelocateBlob(ctx, v1.ID, "trash/k1"))
	got, err = versions.GetByNumber(ctx, file.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "trash/k1", got.BlobKey)
}
