package docsystem

import (
	"context"

	"docvault/internal/domain/models/docsystem"
)

// FolderService maintains the folder tree and its materialized paths
type FolderService interface {
	// CreateFolder creates a folder under an active parent (nil = root)
	CreateFolder(ctx context.Context, actor docsystem.Actor, req *CreateFolderRequest) (*docsystem.Folder, error)

	// GetFolder retrieves a folder by ID
	GetFolder(ctx context.Context, id string) (*docsystem.Folder, error)

	// GetFolderByPath retrieves the non-purged folder at a virtual path
	GetFolderByPath(ctx context.Context, virtualPath string) (*docsystem.Folder, error)

	// ListChildren lists child folders and files of a folder in a state
	ListChildren(ctx context.Context, parentID *string, state docsystem.FolderState) (*FolderContents, error)

	// RenameFolder renames a folder and rewrites its subtree paths
	RenameFolder(ctx context.Context, actor docsystem.Actor, id, newName string) (*docsystem.Folder, error)

	// MoveFolder reparents a folder (nil = root) and rewrites its subtree paths
	MoveFolder(ctx context.Context, actor docsystem.Actor, id string, newParentID *string) (*docsystem.Folder, error)

	// UpdateFolder applies a rename and/or a move in one transaction
	UpdateFolder(ctx context.Context, actor docsystem.Actor, id string, req *UpdateFolderRequest) (*docsystem.Folder, error)

	// TrashFolder soft-deletes a folder and its subtree (metadata only)
	TrashFolder(ctx context.Context, actor docsystem.Actor, id string) (*docsystem.Folder, error)

	// RestoreFolder brings a trashed subtree back, falling back to the root
	// when the original parent is no longer active
	RestoreFolder(ctx context.Context, actor docsystem.Actor, id string) (*docsystem.Folder, error)

	// MarkFolderPurged is the metadata step of a purge. It must run inside
	// the caller's transaction after the blob objects are gone.
	MarkFolderPurged(ctx context.Context, actor docsystem.Actor, id string) (*PurgeSummary, error)
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"` // nil for root
}

// UpdateFolderRequest renames and/or moves a folder. ParentID is only read
// when Move is set; a nil ParentID then moves to the root.
type UpdateFolderRequest struct {
	Name     *string
	ParentID *string
	Move     bool
}

// FolderContents represents a folder with its children
type FolderContents struct {
	Folder  *docsystem.Folder  `json:"folder,omitempty"` // null for root
	Folders []docsystem.Folder `json:"folders"`
	Files   []docsystem.File   `json:"files"`
}

// PurgeSummary reports what a metadata purge touched
type PurgeSummary struct {
	Folder        *docsystem.Folder
	PurgedFolders int64
	PurgedFiles   int64
}
