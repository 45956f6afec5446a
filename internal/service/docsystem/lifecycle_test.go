package docsystem

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/domain"
	models "docvault/internal/domain/models/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/metrics"
)

// trashedTree builds /a/b with a two-version file in /a/b and a replaced
// file in /a, then trashes /a
func trashedTree(t *testing.T, h *harness) (a, b *models.Folder, files []*models.File) {
	t.Helper()
	ctx := context.Background()

	a = h.folder(t, "a", nil)
	b = h.folder(t, "b", a)
	versioned := h.file(t, b, models.ContextGeneral, "minutes.md", "v1")
	_, err := h.files.UploadVersion(ctx, editor, versioned.ID, upload("minutes.md", "v2"))
	require.NoError(t, err)

	old := h.file(t, a, models.ContextGeneral, "old.txt", "old")
	replacement, err := h.files.ReplaceFile(ctx, editor, old.ID, upload("new.txt", "new"))
	require.NoError(t, err)

	_, err = h.lifecycle.TrashFolder(ctx, editor, a.ID)
	require.NoError(t, err)
	return a, b, []*models.File{versioned, old, replacement}
}

func TestPurgeFolder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, b, files := trashedTree(t, h)
	before := h.eventCount()

	purged, err := h.lifecycle.PurgeFolder(ctx, admin, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FolderPurged, purged.State)
	require.NotNil(t, purged.PurgedBy)
	assert.Equal(t, admin.ID, *purged.PurgedBy)

	assert.Equal(t, models.FolderPurged, h.reloadFolder(t, b.ID).State)
	for _, f := range files {
		assert.Equal(t, models.FilePurged, h.reloadFile(t, f.ID).State, f.OriginalName)
	}
	assert.Empty(t, h.blobs.Keys())

	require.Equal(t, before+1, h.eventCount())
	event := h.lastEvent(t)
	assert.Equal(t, models.ActionPurged, event.Action)
	assert.Equal(t, admin.ID, event.ActorID)
	detail := event.Detail.(*models.PurgedDetail)
	assert.EqualValues(t, 2, detail.PurgedFolders)
	assert.EqualValues(t, 3, detail.PurgedFiles)
	// 2 placeholders + 2 versions + the replaced and the replacement file
	assert.Equal(t, 6, detail.DeletedObjects)

	_, err = h.lifecycle.PurgeFolder(ctx, admin, a.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPurgeFolderRequiresPrivilege(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _, _ := trashedTree(t, h)
	keys := h.blobs.Keys()
	before := h.eventCount()

	_, err := h.lifecycle.PurgeFolder(ctx, editor, a.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.lifecycle.PurgeFolder(ctx, models.Actor{}, a.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Equal(t, keys, h.blobs.Keys())
	assert.Equal(t, before, h.eventCount())
	assert.Equal(t, models.FolderTrashed, h.reloadFolder(t, a.ID).State)
}

func TestPurgeFolderRequiresTrashed(t *testing.T) {
	h := newHarness(t)

	a := h.folder(t, "a", nil)

	_, err := h.lifecycle.PurgeFolder(context.Background(), admin, a.ID)
	assert.ErrorIs(t, err, domain.ErrInvariant)
	assert.Equal(t, models.FolderActive, h.reloadFolder(t, a.ID).State)
	assert.True(t, h.blobs.Has(a.PlaceholderKey))
}

func TestPurgeFolderBlobDeleteFailureKeepsTrashed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, b, files := trashedTree(t, h)
	before := h.eventCount()

	h.blobs.SetFault(func(op, key string) error {
		if op == "delete" && !strings.HasPrefix(key, "folders/") {
			return errors.New("access denied")
		}
		return nil
	})

	_, err := h.lifecycle.PurgeFolder(ctx, admin, a.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDependency)
	assert.True(t, domain.IsRetryable(err))

	assert.Equal(t, models.FolderTrashed, h.reloadFolder(t, a.ID).State)
	assert.Equal(t, models.FolderTrashed, h.reloadFolder(t, b.ID).State)
	for _, f := range files {
		assert.NotEqual(t, models.FilePurged, h.reloadFile(t, f.ID).State)
	}
	assert.Equal(t, before, h.eventCount())

	// Retrying once the store recovers completes the purge
	h.blobs.SetFault(nil)
	_, err = h.lifecycle.PurgeFolder(ctx, admin, a.ID)
	require.NoError(t, err)
	assert.Empty(t, h.blobs.Keys())
}

func TestPurgeFolderCommitFailureAfterDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	counter := metrics.ReconciliationInconsistencies.WithLabelValues(metrics.KindPurgeCommitFailed)
	inconsistencies := counterValue(t, counter)

	a, _, _ := trashedTree(t, h)
	before := h.eventCount()

	h.store.SetCommitHook(func(context.Context) error { return errors.New("connection reset by peer") })

	_, err := h.lifecycle.PurgeFolder(ctx, admin, a.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReconciliationRequired)
	assert.False(t, domain.IsRetryable(err))

	// Objects are gone; metadata stayed trashed. The gap is counted, not repaired.
	assert.Empty(t, h.blobs.Keys())
	assert.Equal(t, models.FolderTrashed, h.reloadFolder(t, a.ID).State)
	assert.Equal(t, before, h.eventCount())
	assert.Equal(t, inconsistencies+1, counterValue(t, counter))
}

// restoreDuringDelete installs a blob fault that, on the first object
// delete, starts restore in the background and gives it time to run
func restoreDuringDelete(h *harness, restore func() error) <-chan error {
	done := make(chan error, 1)
	var once sync.Once
	h.blobs.SetFault(func(op, key string) error {
		if op == "delete" {
			once.Do(func() {
				go func() { done <- restore() }()
				time.Sleep(50 * time.Millisecond)
			})
		}
		return nil
	})
	return done
}

func waitFor(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent call did not finish")
		return nil
	}
}

func TestPurgeFolderWinsOverConcurrentRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	counter := metrics.ReconciliationInconsistencies.WithLabelValues(metrics.KindPurgeCommitFailed)
	inconsistencies := counterValue(t, counter)

	a, b, files := trashedTree(t, h)
	done := restoreDuringDelete(h, func() error {
		_, err := h.lifecycle.RestoreFolder(ctx, editor, a.ID)
		return err
	})

	_, err := h.lifecycle.PurgeFolder(ctx, admin, a.ID)
	require.NoError(t, err)

	// The restore waited for the purge and then found nothing to restore
	assert.ErrorIs(t, waitFor(t, done), domain.ErrInvariant)
	assert.Equal(t, models.FolderPurged, h.reloadFolder(t, a.ID).State)
	assert.Equal(t, models.FolderPurged, h.reloadFolder(t, b.ID).State)
	for _, f := range files {
		assert.Equal(t, models.FilePurged, h.reloadFile(t, f.ID).State, f.OriginalName)
	}
	assert.Empty(t, h.blobs.Keys())
	assert.Equal(t, inconsistencies, counterValue(t, counter))
}

func TestPurgeFileWinsOverConcurrentRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	file := h.file(t, nil, models.ContextGeneral, "draft.txt", "draft")
	_, err := h.files.TrashFile(ctx, editor, file.ID)
	require.NoError(t, err)

	done := restoreDuringDelete(h, func() error {
		_, err := h.files.RestoreFile(ctx, editor, file.ID)
		return err
	})

	_, err = h.lifecycle.PurgeFile(ctx, admin, file.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, waitFor(t, done), domain.ErrInvariant)
	assert.Equal(t, models.FilePurged, h.reloadFile(t, file.ID).State)
	assert.Empty(t, h.blobs.Keys())
}

func TestPurgeFolderDeletesPlaceholderAfterRenameAndMove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.folder(t, "a", nil)
	dest := h.folder(t, "dest", nil)
	placeholder := a.PlaceholderKey

	_, err := h.folders.RenameFolder(ctx, editor, a.ID, "renamed")
	require.NoError(t, err)
	_, err = h.folders.MoveFolder(ctx, editor, a.ID, &dest.ID)
	require.NoError(t, err)

	// The placeholder stays at its creation key and the row keeps pointing there
	moved := h.reloadFolder(t, a.ID)
	assert.Equal(t, "/dest/renamed", moved.VirtualPath)
	assert.Equal(t, placeholder, moved.PlaceholderKey)
	assert.True(t, h.blobs.Has(placeholder))

	_, err = h.lifecycle.TrashFolder(ctx, editor, dest.ID)
	require.NoError(t, err)
	_, err = h.lifecycle.PurgeFolder(ctx, admin, dest.ID)
	require.NoError(t, err)
	assert.False(t, h.blobs.Has(placeholder))
	assert.Empty(t, h.blobs.Keys())
}

func TestPurgeFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	folder := h.folder(t, "Docs", nil)
	file := h.file(t, folder, models.ContextGeneral, "a.txt", "one")
	_, err := h.files.UploadVersion(ctx, editor, file.ID, upload("a.txt", "two"))
	require.NoError(t, err)

	_, err = h.lifecycle.PurgeFile(ctx, admin, file.ID)
	assert.ErrorIs(t, err, domain.ErrInvariant)

	_, err = h.files.TrashFile(ctx, editor, file.ID)
	require.NoError(t, err)

	_, err = h.lifecycle.PurgeFile(ctx, editor, file.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	purged, err := h.lifecycle.PurgeFile(ctx, admin, file.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FilePurged, purged.State)
	assert.Equal(t, []string{folder.PlaceholderKey}, h.blobs.Keys())

	event := h.lastEvent(t)
	assert.Equal(t, models.ActionPurged, event.Action)
	assert.Equal(t, file.ID, *event.FileID)
	assert.Equal(t, 2, event.Detail.(*models.PurgedDetail).DeletedObjects)

	_, err = h.lifecycle.PurgeFile(ctx, admin, file.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Versions stay on record after the purge
	versions, err := h.files.ListVersions(ctx, file.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestPurgeFileCommitFailureAfterDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	file := h.file(t, nil, models.ContextGeneral, "a.txt", "one")
	_, err := h.files.TrashFile(ctx, editor, file.ID)
	require.NoError(t, err)

	h.store.SetCommitHook(func(context.Context) error { return errors.New("disk full") })
	_, err = h.lifecycle.PurgeFile(ctx, admin, file.ID)
	assert.ErrorIs(t, err, domain.ErrReconciliationRequired)
	assert.Equal(t, models.FileTrashed, h.reloadFile(t, file.ID).State)
	assert.False(t, h.blobs.Has(file.CurrentBlobKey))
}

func TestEveryMutationRecordsOneEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	count := h.eventCount()
	step := func(name string, err error, wantEvent bool) {
		t.Helper()
		want := count
		if err == nil && wantEvent {
			want++
		}
		assert.Equal(t, want, h.eventCount(), name)
		count = h.eventCount()
	}

	docs, err := h.folders.CreateFolder(ctx, editor, &docsysSvc.CreateFolderRequest{Name: "Docs"})
	step("create folder", err, true)
	_, err = h.folders.CreateFolder(ctx, editor, &docsysSvc.CreateFolderRequest{Name: "Docs"})
	step("duplicate folder", err, true)
	_, err = h.folders.RenameFolder(ctx, editor, docs.ID, "Documents")
	step("rename", err, true)
	file, err := h.files.CreateFile(ctx, editor, &docsysSvc.CreateFileRequest{FolderID: &docs.ID, Upload: upload("a.txt", "1")})
	step("create file", err, true)
	_, err = h.files.UploadVersion(ctx, editor, file.ID, upload("a.txt", "2"))
	step("upload version", err, true)
	_, err = h.files.TrashFile(ctx, editor, file.ID)
	step("trash file", err, true)
	_, err = h.files.TrashFile(ctx, editor, file.ID)
	step("trash file twice", err, true)
	_, err = h.files.RestoreFile(ctx, editor, file.ID)
	step("restore file", err, true)
	_, err = h.lifecycle.TrashFolder(ctx, editor, docs.ID)
	step("trash folder", err, true)
	_, err = h.lifecycle.PurgeFolder(ctx, editor, docs.ID)
	step("purge denied", err, true)
	_, err = h.lifecycle.RestoreFolder(ctx, editor, docs.ID)
	step("restore folder", err, true)

	for _, e := range h.store.AuditEvents() {
		assert.NotEmpty(t, e.ActorID)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.OccurredAt.IsZero())
		require.NotNil(t, e.Detail)
		assert.Equal(t, e.Action, e.Detail.Action())
	}
}
