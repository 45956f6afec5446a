package docsystem

import (
	"context"
	"io"

	"docvault/internal/domain/models/docsystem"
)

// FileService owns file records and their version history
type FileService interface {
	// CreateFile stores the first version of a new file
	CreateFile(ctx context.Context, actor docsystem.Actor, req *CreateFileRequest) (*docsystem.File, error)

	// GetFile retrieves a file by ID
	GetFile(ctx context.Context, id string) (*docsystem.File, error)

	// UploadVersion stores a new content revision and makes it current
	UploadVersion(ctx context.Context, actor docsystem.Actor, fileID string, upload *UploadedFile) (*docsystem.FileVersion, error)

	// RestoreVersion points the file's current content back at an older version
	RestoreVersion(ctx context.Context, actor docsystem.Actor, versionID string) (*docsystem.File, error)

	// ListVersions lists every version of a file in version order
	ListVersions(ctx context.Context, fileID string) ([]docsystem.FileVersion, error)

	// ReplaceFile supersedes a file with a newly uploaded one in the same
	// folder and owner context
	ReplaceFile(ctx context.Context, actor docsystem.Actor, fileID string, upload *UploadedFile) (*docsystem.File, error)

	// TrashFile soft-deletes a file (metadata only)
	TrashFile(ctx context.Context, actor docsystem.Actor, id string) (*docsystem.File, error)

	// RestoreFile brings a trashed file back
	RestoreFile(ctx context.Context, actor docsystem.Actor, id string) (*docsystem.File, error)

	// OpenDownload opens the content of a version (0 = current) and records the read
	OpenDownload(ctx context.Context, actor docsystem.Actor, fileID string, versionNumber int) (*Download, error)

	// MarkFilePurged is the metadata step of a file purge, run inside the
	// caller's transaction after the blob objects are gone
	MarkFilePurged(ctx context.Context, actor docsystem.Actor, id string) (*docsystem.File, error)
}

// CreateFileRequest represents a file creation request
type CreateFileRequest struct {
	FolderID     *string                `json:"folder_id,omitempty"`
	OwnerContext docsystem.OwnerContext `json:"owner_context"`
	Upload       *UploadedFile          `json:"-"`
}

// Download is an open content stream of one file version
type Download struct {
	File    *docsystem.File
	Version *docsystem.FileVersion
	Content io.ReadCloser
}
