package docsystem

import (
	"context"
	"time"

	"docvault/internal/domain/models/docsystem"
)

// FileRepository defines data access operations for files
type FileRepository interface {
	// Create inserts a file record
	Create(ctx context.Context, file *docsystem.File) error

	// GetByID retrieves a file by ID in any state
	GetByID(ctx context.Context, id string) (*docsystem.File, error)

	// GetByIDForUpdate retrieves and locks a file row
	GetByIDForUpdate(ctx context.Context, id string) (*docsystem.File, error)

	// Update writes the mutable columns of a file (state, current pointer,
	// size, replacement and lifecycle stamps)
	Update(ctx context.Context, file *docsystem.File) error

	// ListByFolder lists files directly in a folder (nil = root) in the given state
	ListByFolder(ctx context.Context, folderID *string, state docsystem.FileState) ([]docsystem.File, error)

	// ListByState lists every file in the given state (flat)
	ListByState(ctx context.Context, state docsystem.FileState) ([]docsystem.File, error)

	// ListInSubtree lists non-purged files whose folder is at or under virtualPath
	ListInSubtree(ctx context.Context, virtualPath string) ([]docsystem.File, error)

	// PurgeInSubtree marks every non-purged file under virtualPath as purged
	PurgeInSubtree(ctx context.Context, virtualPath, actorID string, at time.Time) (int64, error)

	// ExistsWithContextUnder reports whether a non-purged file with one of the
	// given owner contexts sits in a folder at or under virtualPath
	ExistsWithContextUnder(ctx context.Context, virtualPath string, contexts []docsystem.OwnerContext) (bool, error)
}
