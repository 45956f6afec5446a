package docsystem

import (
	"context"
	"time"

	"docvault/internal/domain/models/docsystem"
)

// VersionRepository defines data access operations for file versions
type VersionRepository interface {
	// Create inserts a version. Returns a ConflictError if the version
	// number is already taken for the file.
	Create(ctx context.Context, version *docsystem.FileVersion) error

	// GetByID retrieves a version by ID
	GetByID(ctx context.Context, id string) (*docsystem.FileVersion, error)

	// GetByNumber retrieves a file's version by its number
	GetByNumber(ctx context.Context, fileID string, number int) (*docsystem.FileVersion, error)

	// ListByFile lists all versions of a file ordered by version number
	ListByFile(ctx context.Context, fileID string) ([]docsystem.FileVersion, error)

	// MaxVersionNumber returns the highest version number of a file (0 if none)
	MaxVersionNumber(ctx context.Context, fileID string) (int, error)

	// MarkSuperseded stamps superseded_at on a version if not already set
	MarkSuperseded(ctx context.Context, id string, at time.Time) error

	// RelocateBlob rewrites the object key of a version after its object was
	// moved to the trash prefix
	RelocateBlob(ctx context.Context, id, newKey string) error
}
