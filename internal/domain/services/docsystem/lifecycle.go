package docsystem

import (
	"context"

	"docvault/internal/domain/models/docsystem"
)

// LifecycleService coordinates the two-stage delete across folders, files
// and the blob store. Trash is metadata-only; purge removes objects first
// and only then marks metadata purged.
type LifecycleService interface {
	TrashFolder(ctx context.Context, actor docsystem.Actor, id string) (*docsystem.Folder, error)
	RestoreFolder(ctx context.Context, actor docsystem.Actor, id string) (*docsystem.Folder, error)

	// PurgeFolder irreversibly deletes a trashed folder subtree (privileged)
	PurgeFolder(ctx context.Context, actor docsystem.Actor, id string) (*docsystem.Folder, error)

	// PurgeFile irreversibly deletes a trashed file and all its versions (privileged)
	PurgeFile(ctx context.Context, actor docsystem.Actor, id string) (*docsystem.File, error)
}
